package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pix-raffle-checkout/internal/checkout"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

// CheckoutService is the purchase flow the buyer endpoints drive.
type CheckoutService interface {
	Attend(ctx context.Context, order checkout.Order) (checkout.Session, error)
	Purchase(ctx context.Context, req checkout.PurchaseRequest) (checkout.Session, error)
	Checkout(ctx context.Context, order checkout.Order) (checkout.Session, error)
	PaymentStatus(ctx context.Context, paymentID string) (checkout.Session, error)
	ConfirmProtocol(ctx context.Context, protocol string) (bool, error)
}

// CheckoutHandler serves the buyer-facing purchase endpoints.
type CheckoutHandler struct {
	Svc CheckoutService
}

func NewCheckoutHandler(svc CheckoutService) *CheckoutHandler {
	if svc == nil {
		panic("nil CheckoutService passed to NewCheckoutHandler")
	}
	return &CheckoutHandler{Svc: svc}
}

// ----- DTOs -----

type orderReq struct {
	CPF      string `json:"cpf"`
	Phone    string `json:"phone"`
	Quantity int    `json:"quantity"`
}

func (r orderReq) order() checkout.Order {
	return checkout.Order{CPF: r.CPF, Phone: r.Phone, Quantity: r.Quantity}
}

type purchaseReq struct {
	Amount   int64  `json:"amount"`
	CPF      string `json:"cpf"`
	Protocol string `json:"protocol"`
}

type confirmReq struct {
	Protocol string `json:"protocol"`
}

type attendResp struct {
	Protocol string         `json:"protocol"`
	Quantity int            `json:"quantity"`
	State    checkout.State `json:"state"`
}

type chargeResp struct {
	ID        string             `json:"id"`
	PaymentID string             `json:"paymentId"`
	Amount    int64              `json:"amount"`
	QRCode    string             `json:"qrCode"`
	Status    model.ChargeStatus `json:"status"`
	QRImage   string             `json:"qrImage"`
	ExpiresAt time.Time          `json:"expiresAt"`
	Protocol  string             `json:"protocol,omitempty"`
	State     checkout.State     `json:"state"`
}

func toChargeResp(s checkout.Session) chargeResp {
	ch := s.Charge
	return chargeResp{
		ID:        ch.ID,
		PaymentID: ch.ID,
		Amount:    ch.Amount,
		QRCode:    ch.QRPayload,
		Status:    ch.Status,
		QRImage:   ch.QRImage,
		ExpiresAt: ch.ExpiresAt,
		Protocol:  s.Attendance.Protocol,
		State:     s.State,
	}
}

// Attend registers the order with the catalog and returns its protocol.
func (h *CheckoutHandler) Attend(c echo.Context) error {
	var req orderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Svc.Attend(ctx, req.order())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, attendResp{Protocol: s.Attendance.Protocol, Quantity: s.Attendance.Quantity, State: s.State})
}

// Purchase creates the Pix charge for a registered attendance.
func (h *CheckoutHandler) Purchase(c echo.Context) error {
	var req purchaseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Svc.Purchase(ctx, checkout.PurchaseRequest{
		Protocol: strings.TrimSpace(req.Protocol),
		CPF:      req.CPF,
		Amount:   req.Amount,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toChargeResp(s))
}

// Checkout registers the attendance and creates its charge in one call.
func (h *CheckoutHandler) Checkout(c echo.Context) error {
	var req orderReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Svc.Checkout(ctx, req.order())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toChargeResp(s))
}

// PaymentStatus passes the gateway's view of a charge through, adding the
// rendered QR image, the derived expiresAt and the checkout state.
func (h *CheckoutHandler) PaymentStatus(c echo.Context) error {
	id := strings.TrimSpace(c.QueryParam("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "payment id is required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	s, err := h.Svc.PaymentStatus(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	out := make(echo.Map, len(s.Charge.Fields)+5)
	for k, v := range s.Charge.Fields {
		out[k] = v
	}
	out["id"] = s.Charge.ID
	out["status"] = s.Charge.Status
	out["qrImage"] = s.Charge.QRImage
	out["expiresAt"] = s.Charge.ExpiresAt
	out["state"] = s.State
	return c.JSON(http.StatusOK, out)
}

// Confirm confirms a paid attendance.  Repeating it is harmless.
func (h *CheckoutHandler) Confirm(c echo.Context) error {
	var req confirmReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	protocol := strings.TrimSpace(req.Protocol)
	done, err := h.Svc.ConfirmProtocol(ctx, protocol)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"protocol": protocol, "status": "confirmed", "alreadyConfirmed": !done})
}
