// Package gateway is the client of the Pix payment gateway.  The gateway is
// authoritative for charge status, creation time and expiry; this package
// reads and normalises what it reports and never retries on its own.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

// DefaultExpiry is the Pix payment window requested for every charge.
const DefaultExpiry = 300 * time.Second

// Client creates and polls Pix charges.
type Client struct {
	baseURL    string
	apiKey     string
	expiry     time.Duration
	httpClient *http.Client
	newID      func() string
}

// New returns a gateway client.  expiry is the payment window requested on
// each charge; zero means DefaultExpiry.
func New(baseURL, apiKey string, expiry, timeout time.Duration) *Client {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		expiry:     expiry,
		httpClient: &http.Client{Timeout: timeout},
		newID:      uuid.NewString,
	}
}

type payer struct {
	Document string `json:"document"`
}

type chargeReq struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Expire int    `json:"expire"`
	Payer  payer  `json:"payer"`
}

// CreateCharge requests a Pix charge of amount minor units.  The payment id
// is a random UUID, unrelated to amount or payer, and doubles as the
// gateway idempotency key.  The returned charge carries a rendered QR image.
func (c *Client) CreateCharge(ctx context.Context, amount int64, payerDocument string) (model.PaymentCharge, error) {
	if amount <= 0 {
		return model.PaymentCharge{}, apperr.Validation("amount must be positive")
	}
	id := c.newID()
	body := chargeReq{
		ID:     id,
		Amount: amount,
		Expire: int(c.expiry / time.Second),
		Payer:  payer{Document: payerDocument},
	}
	fields, err := c.do(ctx, http.MethodPost, "/v1/pix/charges", id, body)
	if err != nil {
		return model.PaymentCharge{}, err
	}
	ch, err := chargeFromFields(fields)
	if err != nil {
		return model.PaymentCharge{}, err
	}
	if ch.ID == "" {
		ch.ID = id
	}
	if ch.Amount == 0 {
		ch.Amount = amount
	}
	if ch.QRImage == "" && ch.QRPayload != "" {
		img, err := RenderQR(ch.QRPayload)
		if err != nil {
			return model.PaymentCharge{}, fmt.Errorf("gateway: render qr: %w", err)
		}
		ch.QRImage = img
	}
	return ch, nil
}

// ChargeStatus fetches the current state of a charge.  ExpiresAt is
// recomputed from the gateway's createdAt and expire fields so local clock
// skew never moves the deadline.
func (c *Client) ChargeStatus(ctx context.Context, id string) (model.PaymentCharge, error) {
	if id == "" {
		return model.PaymentCharge{}, apperr.Validation("payment id is required")
	}
	fields, err := c.do(ctx, http.MethodGet, "/v1/pix/charges/"+url.PathEscape(id), "", nil)
	if err != nil {
		return model.PaymentCharge{}, err
	}
	ch, err := chargeFromFields(fields)
	if err != nil {
		return model.PaymentCharge{}, err
	}
	if ch.ID == "" {
		ch.ID = id
	}
	if ch.QRImage == "" && ch.QRPayload != "" {
		if img, err := RenderQR(ch.QRPayload); err == nil {
			ch.QRImage = img
		}
	}
	return ch, nil
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body any) (map[string]any, error) {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("gateway: marshal request: %w", err)
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("gateway: %s %s: %v: %w", method, path, err, apperr.ErrGatewayTimeout)
		}
		return nil, fmt.Errorf("gateway: %s %s: %v: %w", method, path, err, apperr.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("gateway: read body: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("gateway: %s %s: %w", method, path, apperr.ErrNotFound)
	case resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout:
		return nil, fmt.Errorf("gateway: %s %s status %d: %w", method, path, resp.StatusCode, apperr.ErrGatewayTimeout)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("gateway: %s %s rejected (%d): %w", method, path, resp.StatusCode,
			apperr.Validation("payment request rejected"))
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("gateway: %s %s status %d: %w", method, path, resp.StatusCode, apperr.ErrUpstreamUnavailable)
	}

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("gateway: decode %s: %v: %w", path, err, apperr.ErrUnexpectedResponse)
	}
	// some gateway versions wrap the charge in {"data": {...}}
	if inner, ok := fields["data"].(map[string]any); ok {
		fields = inner
	}
	return fields, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
