package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pix-raffle-checkout/internal/checkout"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

// CatalogReader is the read side of the catalog service.
type CatalogReader interface {
	Promotion(ctx context.Context) (model.PromotionConfig, error)
	Coupons(ctx context.Context, cpf string, page, pageSize int, products []string) (map[string][]model.Coupon, error)
	Results(ctx context.Context) ([]model.PromotionSummary, error)
	Result(ctx context.Context, promotionID string) ([]model.Draw, error)
	Draw(ctx context.Context) (model.DrawInfo, error)
}

// CatalogHandler exposes promotion, coupon and draw data.
type CatalogHandler struct {
	Catalog CatalogReader
}

func NewCatalogHandler(r CatalogReader) *CatalogHandler {
	if r == nil {
		panic("nil CatalogReader passed to NewCatalogHandler")
	}
	return &CatalogHandler{Catalog: r}
}

const maxCouponPage = 100

type couponsReq struct {
	CPF      string   `json:"cpf"`
	Products []string `json:"products"`
}

// Promotion returns the promotion on sale.
func (h *CatalogHandler) Promotion(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	p, err := h.Catalog.Promotion(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Coupons lists a buyer's titles grouped by product.  A CPF without
// purchases is a 404 with a user message, not a failure.
func (h *CatalogHandler) Coupons(c echo.Context) error {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid page"})
	}
	limit, err := strconv.Atoi(c.Param("limit"))
	if err != nil || limit < 1 || limit > maxCouponPage {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be between 1 and 100"})
	}
	var req couponsReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	cpf, err := checkout.NormalizeCPF(req.CPF)
	if err != nil {
		return respondError(c, err)
	}
	products := req.Products[:0:0]
	for _, p := range req.Products {
		if p = strings.TrimSpace(p); p != "" {
			products = append(products, p)
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	out, err := h.Catalog.Coupons(ctx, cpf, page, limit, products)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Results lists past promotions, newest draw first.
func (h *CatalogHandler) Results(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	out, err := h.Catalog.Results(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Result returns the draws of one promotion.
func (h *CatalogHandler) Result(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "promotion id is required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	out, err := h.Catalog.Result(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "draws": out})
}

// Draw returns the live draw page data.
func (h *CatalogHandler) Draw(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()
	out, err := h.Catalog.Draw(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
