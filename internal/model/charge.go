package model

import "time"

// ChargeStatus is the gateway-owned status of a Pix charge.
type ChargeStatus string

const (
	ChargePending   ChargeStatus = "pending"
	ChargePaid      ChargeStatus = "paid"
	ChargeConfirmed ChargeStatus = "confirmed"
	ChargeExpired   ChargeStatus = "expired"
	ChargeFailed    ChargeStatus = "failed"
)

// IsPaid reports whether the status is terminal-paid.
func (s ChargeStatus) IsPaid() bool { return s == ChargePaid || s == ChargeConfirmed }

// IsTerminal reports whether no further status change is expected.
func (s ChargeStatus) IsTerminal() bool {
	switch s {
	case ChargePaid, ChargeConfirmed, ChargeExpired, ChargeFailed:
		return true
	}
	return false
}

// PaymentCharge is a Pix charge as reported by the gateway.  The gateway is
// authoritative for Status, CreatedAt and ExpireSeconds; ExpiresAt is always
// derived from those two.  Fields holds the raw gateway payload so status
// responses can pass it through.
type PaymentCharge struct {
	ID            string         `json:"id"`
	Amount        int64          `json:"amount"`
	Status        ChargeStatus   `json:"status"`
	QRPayload     string         `json:"qrCode"`
	QRImage       string         `json:"qrImage,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	ExpireSeconds int            `json:"expire"`
	ExpiresAt     time.Time      `json:"expiresAt"`
	Fields        map[string]any `json:"-"`
}

// ComputeExpiresAt returns createdAt + expireSeconds.
func ComputeExpiresAt(createdAt time.Time, expireSeconds int) time.Time {
	return createdAt.Add(time.Duration(expireSeconds) * time.Second)
}

// ExpiredAt reports whether a still-pending charge has outlived its window.
func (c PaymentCharge) ExpiredAt(now time.Time) bool {
	return c.Status == ChargePending && !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// PendingPayment is the server-side correlation of a charge awaiting
// confirmation: it links the gateway payment id to the attendance protocol.
// It lives until the charge is claimed for confirmation or its deadline
// (plus a grace period) passes.
type PendingPayment struct {
	PaymentID   string    `json:"paymentId"`
	Protocol    string    `json:"protocol"`
	AmountCents int64     `json:"amountCents"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
