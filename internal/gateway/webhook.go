package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

// WebhookEvent is the part of a gateway push the checkout cares about.
type WebhookEvent struct {
	Type      string
	PaymentID string
	Status    model.ChargeStatus
}

type webhookBody struct {
	Event struct {
		Type string `json:"type"`
		Data struct {
			Pix map[string]any `json:"pix"`
		} `json:"data"`
	} `json:"event"`
}

// ParseWebhook decodes {event:{type:'pix', data:{pix:{id|paymentId, status}}}}.
// Non-pix events decode without error and with an empty PaymentID so the
// caller can acknowledge and ignore them.
func ParseWebhook(body []byte) (WebhookEvent, error) {
	var wb webhookBody
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&wb); err != nil {
		return WebhookEvent{}, fmt.Errorf("gateway: webhook body: %v: %w", err, apperr.ErrValidation)
	}
	ev := WebhookEvent{Type: strings.ToLower(wb.Event.Type)}
	if ev.Type != "pix" {
		return ev, nil
	}
	pix := wb.Event.Data.Pix
	ev.PaymentID = firstString(pix, "id", "paymentId")
	ev.Status = NormalizeStatus(cast.ToString(pix["status"]))
	if ev.PaymentID == "" {
		return WebhookEvent{}, apperr.Validation("webhook without payment id")
	}
	return ev, nil
}
