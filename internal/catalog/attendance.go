package catalog

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

type attendReq struct {
	CPF       string `json:"cpf"`
	Phone     string `json:"celular"`
	Quantity  int    `json:"qtdeTitulos"`
	ClientKey string `json:"chaveCliente"`
}

type attendResp struct {
	Protocol any `json:"protocolo"`
}

// Register reserves quantity coupons for the buyer before payment.  A fresh
// client key is generated per attempt so retried checkouts never collide
// with an earlier reservation.
func (c *Client) Register(ctx context.Context, cpf, phone string, quantity int) (model.AttendanceRecord, error) {
	rec := model.AttendanceRecord{
		CPF:               cpf,
		Phone:             phone,
		Quantity:          quantity,
		ExternalClientKey: uuid.NewString(),
	}
	var resp attendResp
	err := c.do(ctx, "POST", "/v1/atendimento", attendReq{
		CPF:       cpf,
		Phone:     phone,
		Quantity:  quantity,
		ClientKey: rec.ExternalClientKey,
	}, &resp)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	rec.Protocol = cast.ToString(resp.Protocol)
	if rec.Protocol == "" {
		return model.AttendanceRecord{}, fmt.Errorf("catalog: attendance without protocol: %w", apperr.ErrUnexpectedResponse)
	}
	return rec, nil
}

// Confirm finalises the reservation identified by protocol.  The catalog
// treats repeated confirmations of one protocol as a no-op, but callers
// still claim the protocol first so the call is made once.
func (c *Client) Confirm(ctx context.Context, protocol string) error {
	if protocol == "" {
		return apperr.Validation("protocol is required")
	}
	return c.do(ctx, "POST", "/v1/atendimento/"+url.PathEscape(protocol)+"/confirmar", struct{}{}, nil)
}
