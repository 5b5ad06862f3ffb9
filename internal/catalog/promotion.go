package catalog

import (
	"context"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

type promotionResp struct {
	ID       any    `json:"idPromocao"`
	Title    string `json:"tituloPromocao"`
	Banner   string `json:"banner"`
	Price    any    `json:"valorPromocao"`
	DrawDate string `json:"dataSorteioPrincipal"`
	Config   struct {
		MultiProduct struct {
			MinCoupons any   `json:"qtdMinimaCupons"`
			MaxCoupons any   `json:"qtdMaximaCupons"`
			Buttons    []any `json:"botoesQtd"`
		} `json:"multiProduto"`
	} `json:"config"`
}

// Promotion returns the configuration of the promotion on sale.
func (c *Client) Promotion(ctx context.Context) (model.PromotionConfig, error) {
	path := "/v1/promocao"
	if c.promotionID != "" {
		path += "/" + url.PathEscape(c.promotionID)
	}
	var resp promotionResp
	if err := c.do(ctx, "GET", path, nil, &resp); err != nil {
		return model.PromotionConfig{}, err
	}
	price, err := decimal.NewFromString(cast.ToString(resp.Price))
	if err != nil {
		return model.PromotionConfig{}, fmt.Errorf("catalog: promotion price %q: %w", cast.ToString(resp.Price), apperr.ErrUnexpectedResponse)
	}
	mp := resp.Config.MultiProduct
	cfg := model.PromotionConfig{
		ID:        cast.ToString(resp.ID),
		Title:     resp.Title,
		Banner:    resp.Banner,
		UnitPrice: price,
		MinQty:    cast.ToInt(cast.ToString(mp.MinCoupons)),
		MaxQty:    cast.ToInt(cast.ToString(mp.MaxCoupons)),
		DrawDate:  parseCatalogDate(resp.DrawDate),
	}
	for _, b := range mp.Buttons {
		if n := cast.ToInt(cast.ToString(b)); n > 0 {
			cfg.QuickAddSteps = append(cfg.QuickAddSteps, n)
		}
	}
	if cfg.MinQty < 1 {
		cfg.MinQty = 1
	}
	if cfg.MaxQty < cfg.MinQty {
		return model.PromotionConfig{}, fmt.Errorf("catalog: quantity bounds [%d,%d]: %w", cfg.MinQty, cfg.MaxQty, apperr.ErrUnexpectedResponse)
	}
	return cfg, nil
}
