package handler

import (
	"context"
	"io"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pix-raffle-checkout/internal/gateway"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

// WebhookReceiver applies a gateway status push.
type WebhookReceiver interface {
	HandleWebhook(ctx context.Context, paymentID string, status model.ChargeStatus) error
}

// WebhookHandler serves POST /webhook/gateway.  Authentication is done by
// the JWT middleware on the route.
type WebhookHandler struct {
	Receiver WebhookReceiver
}

func NewWebhookHandler(r WebhookReceiver) *WebhookHandler {
	if r == nil {
		panic("nil WebhookReceiver passed to NewWebhookHandler")
	}
	return &WebhookHandler{Receiver: r}
}

// Gateway acknowledges every well-formed push.  A store failure answers 502
// so the gateway redelivers; confirming twice is prevented by the claim.
func (h *WebhookHandler) Gateway(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 64<<10))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ev, err := gateway.ParseWebhook(body)
	if err != nil {
		return respondError(c, err)
	}
	if ev.PaymentID == "" {
		return c.JSON(http.StatusAccepted, echo.Map{"ignored": ev.Type})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Receiver.HandleWebhook(ctx, ev.PaymentID, ev.Status); err != nil {
		log.Printf("webhook: payment %s status %s: %v", ev.PaymentID, ev.Status, err)
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
