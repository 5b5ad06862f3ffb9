package gateway

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

// chargeFromFields normalises a gateway payload.  Field names vary between
// gateway versions, so each value is looked up under its known aliases.
func chargeFromFields(f map[string]any) (model.PaymentCharge, error) {
	ch := model.PaymentCharge{
		ID:            firstString(f, "id", "paymentId", "txid"),
		Status:        NormalizeStatus(firstString(f, "status")),
		QRPayload:     firstString(f, "qrCode", "emv", "brCode", "pixCopiaECola"),
		QRImage:       firstString(f, "qrImage", "qrCodeBase64"),
		Amount:        cast.ToInt64(cast.ToString(f["amount"])),
		ExpireSeconds: cast.ToInt(cast.ToString(firstValue(f, "expire", "expiresIn"))),
		Fields:        f,
	}
	created, err := parseTimestamp(firstValue(f, "createdAt", "created_at"))
	if err != nil {
		return model.PaymentCharge{}, fmt.Errorf("gateway: createdAt: %v: %w", err, apperr.ErrUnexpectedResponse)
	}
	ch.CreatedAt = created
	if !created.IsZero() && ch.ExpireSeconds > 0 {
		ch.ExpiresAt = model.ComputeExpiresAt(created, ch.ExpireSeconds)
	}
	return ch, nil
}

// NormalizeStatus maps gateway status spellings onto model.ChargeStatus.
// Unknown values are treated as pending so polling continues.
func NormalizeStatus(s string) model.ChargeStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paid", "concluida", "completed", "approved":
		return model.ChargePaid
	case "confirmed":
		return model.ChargeConfirmed
	case "expired", "expirada":
		return model.ChargeExpired
	case "failed", "canceled", "cancelled", "removida_pelo_psp", "refused":
		return model.ChargeFailed
	default:
		return model.ChargePending
	}
}

func firstValue(f map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := f[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(f map[string]any, keys ...string) string {
	return cast.ToString(firstValue(f, keys...))
}

// parseTimestamp accepts RFC 3339 strings and unix timestamps in seconds or
// milliseconds.  A missing value yields the zero time without error.
func parseTimestamp(v any) (time.Time, error) {
	if v == nil {
		return time.Time{}, nil
	}
	s := cast.ToString(v)
	if s == "" {
		return time.Time{}, nil
	}
	if n, err := cast.ToInt64E(s); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	t, err := cast.ToTimeE(s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
