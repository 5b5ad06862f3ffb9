package router // package router registers the HTTP routes of the checkout API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pix-raffle-checkout/internal/handler"
	"github.com/iliyamo/pix-raffle-checkout/internal/middleware"
	"github.com/iliyamo/pix-raffle-checkout/internal/utils"
)

// RegisterRoutes registers the unauthenticated health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterCheckout registers the buyer purchase flow.  Every route that can
// reach the catalog or the gateway goes through the rate limiter.
func RegisterCheckout(e *echo.Echo, h *handler.CheckoutHandler, limit echo.MiddlewareFunc) {
	e.POST("/attend", h.Attend, limit)
	e.POST("/purchase", h.Purchase, limit)
	e.POST("/checkout", h.Checkout, limit)
	e.GET("/payment-status", h.PaymentStatus, limit)
	e.POST("/confirm", h.Confirm, limit)
}

// RegisterCatalog registers the read-only catalog routes.  GETs are served
// through the response cache; coupon lookups are POSTs keyed by CPF and are
// rate limited instead.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, cache, limit echo.MiddlewareFunc) {
	e.GET("/promotion", h.Promotion, cache)
	e.GET("/promo-results", h.Results, cache)
	e.GET("/promo-results/:id", h.Result, cache)
	e.GET("/draw", h.Draw, cache)
	e.POST("/coupons/:page/:limit", h.Coupons, limit)
}

// RegisterWebhook registers the gateway push endpoint.  The gateway
// authenticates with a GATEWAY token signed with its own secret.
func RegisterWebhook(e *echo.Echo, h *handler.WebhookHandler, webhookSecret string) {
	e.POST("/webhook/gateway", h.Gateway,
		middleware.JWTAuth(webhookSecret),
		middleware.RequireRole(utils.RoleGateway),
	)
}

// RegisterAdmin registers operator login and the reconciliation routes.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	e.POST("/admin/login", h.Login)

	g := e.Group("/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleAdmin),
	)
	g.GET("/reconciliation", h.Reconciliation)
	g.POST("/reconciliation/:paymentId/retry", h.Retry)
}
