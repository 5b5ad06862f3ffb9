package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pix-raffle-checkout/internal/config"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
	"github.com/iliyamo/pix-raffle-checkout/internal/repository"
	"github.com/iliyamo/pix-raffle-checkout/internal/utils"
)

// PurchaseLister reads ledger rows by status.
type PurchaseLister interface {
	ListByStatus(ctx context.Context, status string, limit int) ([]model.Purchase, error)
}

// ConfirmationRetrier re-runs a failed attendance confirmation.
type ConfirmationRetrier interface {
	RetryConfirmation(ctx context.Context, paymentID string) error
}

// AdminHandler serves operator login and reconciliation of purchases whose
// payment succeeded but whose confirmation did not.
type AdminHandler struct {
	Cfg       config.Config
	Purchases PurchaseLister
	Retrier   ConfirmationRetrier
}

func NewAdminHandler(cfg config.Config, p PurchaseLister, r ConfirmationRetrier) *AdminHandler {
	if p == nil || r == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Cfg: cfg, Purchases: p, Retrier: r}
}

type adminLoginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges the operator credentials for an ADMIN access token.
func (h *AdminHandler) Login(c echo.Context) error {
	var req adminLoginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Username) != h.Cfg.AdminUser || !utils.VerifyPassword(h.Cfg.AdminPasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	at, err := utils.NewAccessToken(h.Cfg.JWTSecret, h.Cfg.AdminUser, utils.RoleAdmin, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"access": at})
}

// Reconciliation lists CONFIRM_FAILED purchases (or ?status=).
func (h *AdminHandler) Reconciliation(c echo.Context) error {
	status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	if status == "" {
		status = model.PurchaseConfirmFailed
	}
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 100
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	rows, err := h.Purchases.ListByStatus(ctx, status, limit)
	if err != nil {
		c.Logger().Errorf("reconciliation list: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": status, "purchases": rows})
}

// Retry re-confirms one purchase.
func (h *AdminHandler) Retry(c echo.Context) error {
	id := strings.TrimSpace(c.Param("paymentId"))
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	err := h.Retrier.RetryConfirmation(ctx, id)
	if errors.Is(err, repository.ErrPurchaseNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "purchase not found"})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"paymentId": id, "status": model.PurchaseConfirmed})
}
