package catalog

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

type couponsReq struct {
	CPF      string   `json:"cpf"`
	Products []string `json:"produtos,omitempty"`
}

type couponResp struct {
	ID       any    `json:"idTitulo"`
	Bought   string `json:"dataCompra"`
	AuthCode string `json:"codigoAutenticacao"`
	Numbers  []any  `json:"dezenas"`
}

// Coupons lists the buyer's coupons grouped by product name.  A CPF with no
// purchase history yields apperr.ErrNotFound, whether the catalog answers 404
// or an empty listing.  A body of the wrong shape yields
// apperr.ErrUnexpectedResponse instead.
func (c *Client) Coupons(ctx context.Context, cpf string, page, pageSize int, products []string) (map[string][]model.Coupon, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	var resp map[string][]couponResp
	path := fmt.Sprintf("/v1/consulta/titulos/%d/%d", page, pageSize)
	if err := c.do(ctx, "POST", path, couponsReq{CPF: cpf, Products: products}, &resp); err != nil {
		return nil, err
	}
	out := make(map[string][]model.Coupon, len(resp))
	total := 0
	for product, list := range resp {
		coupons := make([]model.Coupon, 0, len(list))
		for _, cr := range list {
			coupons = append(coupons, model.Coupon{
				ID:                 cast.ToString(cr.ID),
				PurchaseTimestamp:  parseCatalogDate(cr.Bought),
				AuthenticationCode: cr.AuthCode,
				DrawNumbers:        cast.ToStringSlice(cr.Numbers),
			})
		}
		total += len(coupons)
		out[product] = coupons
	}
	if total == 0 && page == 1 {
		return nil, fmt.Errorf("catalog: no coupons for buyer: %w", apperr.ErrNotFound)
	}
	return out, nil
}
