package catalog

import (
	"context"
	"net/url"
	"sort"

	"github.com/spf13/cast"

	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

type resultsResp struct {
	Values []struct {
		ID       any    `json:"id"`
		Title    string `json:"titulo"`
		DrawDate string `json:"dataSorteioPrincipal"`
	} `json:"values"`
}

// Results lists past promotions, most recent draw first.
func (c *Client) Results(ctx context.Context) ([]model.PromotionSummary, error) {
	var resp resultsResp
	if err := c.do(ctx, "GET", "/v1/resultados", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]model.PromotionSummary, 0, len(resp.Values))
	for _, v := range resp.Values {
		out = append(out, model.PromotionSummary{
			ID:       cast.ToString(v.ID),
			Title:    v.Title,
			DrawDate: parseCatalogDate(v.DrawDate),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DrawDate.After(out[j].DrawDate) })
	return out, nil
}

type resultResp struct {
	Draws []struct {
		Order       any    `json:"ordem"`
		Description string `json:"descricao"`
		Winners     []struct {
			Name   string `json:"nome"`
			City   string `json:"cidade"`
			Coupon any    `json:"titulo"`
		} `json:"ganhadores"`
	} `json:"sorteios"`
}

// Result returns the draws of one promotion ordered by draw order.
func (c *Client) Result(ctx context.Context, promotionID string) ([]model.Draw, error) {
	var resp resultResp
	if err := c.do(ctx, "GET", "/v1/resultados/"+url.PathEscape(promotionID), nil, &resp); err != nil {
		return nil, err
	}
	out := make([]model.Draw, 0, len(resp.Draws))
	for _, d := range resp.Draws {
		draw := model.Draw{
			Order:       cast.ToInt(cast.ToString(d.Order)),
			Description: d.Description,
			Winners:     make([]model.Winner, 0, len(d.Winners)),
		}
		for _, w := range d.Winners {
			draw.Winners = append(draw.Winners, model.Winner{Name: w.Name, City: w.City, Coupon: cast.ToString(w.Coupon)})
		}
		out = append(out, draw)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

// Draw returns the current draw banner.  The catalog has used three field
// names for it over time.
func (c *Client) Draw(ctx context.Context) (model.DrawInfo, error) {
	var resp map[string]any
	if err := c.do(ctx, "GET", "/v1/sorteio", nil, &resp); err != nil {
		return model.DrawInfo{}, err
	}
	for _, k := range []string{"banner", "imagem", "urlImagem"} {
		if s := cast.ToString(resp[k]); s != "" {
			return model.DrawInfo{Banner: s}, nil
		}
	}
	return model.DrawInfo{}, nil
}
