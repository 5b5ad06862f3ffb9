package checkout

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

// Order is what the buyer submits at checkout.
type Order struct {
	CPF      string `json:"cpf"`
	Phone    string `json:"phone"`
	Quantity int    `json:"quantity"`
}

var hundred = decimal.NewFromInt(100)

// Amount returns round(quantity × unitPrice × 100) in minor units.  The
// product is computed in decimal, so prices like 2.99 do not drift.
func Amount(quantity int, unitPrice decimal.Decimal) int64 {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Mul(hundred).Round(0).IntPart()
}

// digits strips everything but ASCII digits, so "123.456.789-01" and
// "(11) 99999-9999" are accepted as typed.
func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeCPF returns the 11 digits of a CPF or a validation error.
func NormalizeCPF(raw string) (string, error) {
	cpf := digits(raw)
	if cpf == "" {
		return "", apperr.Validation("cpf is required")
	}
	if len(cpf) != 11 {
		return "", apperr.Validation("cpf must have 11 digits")
	}
	return cpf, nil
}

// NormalizePhone returns a Brazilian phone number with DDD (10 or 11 digits).
func NormalizePhone(raw string) (string, error) {
	phone := digits(raw)
	if phone == "" {
		return "", apperr.Validation("phone is required")
	}
	if len(phone) < 10 || len(phone) > 11 {
		return "", apperr.Validation("phone must have 10 or 11 digits including area code")
	}
	return phone, nil
}

// Normalize checks the buyer fields that need no promotion data.
func (o Order) Normalize() (Order, error) {
	cpf, err := NormalizeCPF(o.CPF)
	if err != nil {
		return o, err
	}
	phone, err := NormalizePhone(o.Phone)
	if err != nil {
		return o, err
	}
	return Order{CPF: cpf, Phone: phone, Quantity: o.Quantity}, nil
}

// Validate normalises the order and checks the quantity against the
// promotion bounds.  It makes no external call.
func (o Order) Validate(promo model.PromotionConfig) (Order, error) {
	n, err := o.Normalize()
	if err != nil {
		return o, err
	}
	if err := ValidateQuantity(n.Quantity, promo); err != nil {
		return o, err
	}
	return n, nil
}

// ValidateQuantity checks min <= q <= max.
func ValidateQuantity(q int, promo model.PromotionConfig) error {
	if q < promo.MinQty || q > promo.MaxQty {
		return apperr.Validation(fmt.Sprintf("quantity must be between %d and %d", promo.MinQty, promo.MaxQty))
	}
	return nil
}
