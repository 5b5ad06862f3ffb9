// Package buyer is the client half of the checkout: it talks to the
// checkout API, keeps the in-flight payment in a local session so a
// restarted client resumes instead of paying twice, polls the payment with a
// single cancellable task and asks before abandoning a purchase the buyer
// walked away from.
package buyer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
	"github.com/iliyamo/pix-raffle-checkout/internal/checkout"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

// API is an HTTP client of the checkout server.
type API struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPI returns a client for the server at baseURL.
func NewAPI(baseURL string, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &API{baseURL: strings.TrimRight(baseURL, "/"), httpClient: &http.Client{Timeout: timeout}}
}

// Charge is the server's answer to /purchase and /checkout.
type Charge struct {
	ID        string             `json:"id"`
	PaymentID string             `json:"paymentId"`
	Amount    int64              `json:"amount"`
	QRCode    string             `json:"qrCode"`
	Status    model.ChargeStatus `json:"status"`
	QRImage   string             `json:"qrImage"`
	ExpiresAt time.Time          `json:"expiresAt"`
	Protocol  string             `json:"protocol"`
	State     checkout.State     `json:"state"`
}

// PaymentStatus is the subset of /payment-status the client acts on.
type PaymentStatus struct {
	ID        string             `json:"id"`
	Status    model.ChargeStatus `json:"status"`
	QRImage   string             `json:"qrImage"`
	ExpiresAt time.Time          `json:"expiresAt"`
	State     checkout.State     `json:"state"`
}

// Terminal reports whether polling should stop.
func (s PaymentStatus) Terminal() bool {
	switch s.State {
	case checkout.StateCompleted, checkout.StateExpired, checkout.StateAbandoned:
		return true
	}
	return s.Status.IsTerminal()
}

type attendResp struct {
	Protocol string `json:"protocol"`
	Quantity int    `json:"quantity"`
}

func (a *API) Promotion(ctx context.Context) (model.PromotionConfig, error) {
	var p model.PromotionConfig
	err := a.do(ctx, http.MethodGet, "/promotion", nil, &p)
	return p, err
}

// Attend registers the order and returns its protocol.
func (a *API) Attend(ctx context.Context, o checkout.Order) (string, error) {
	var out attendResp
	if err := a.do(ctx, http.MethodPost, "/attend", o, &out); err != nil {
		return "", err
	}
	return out.Protocol, nil
}

// Purchase creates the charge for protocol.  amount is the client's own
// computation; the server rejects it when it disagrees.
func (a *API) Purchase(ctx context.Context, protocol, cpf string, amount int64) (Charge, error) {
	var ch Charge
	body := map[string]any{"protocol": protocol, "cpf": cpf, "amount": amount}
	err := a.do(ctx, http.MethodPost, "/purchase", body, &ch)
	return ch, err
}

func (a *API) PaymentStatus(ctx context.Context, id string) (PaymentStatus, error) {
	var st PaymentStatus
	err := a.do(ctx, http.MethodGet, "/payment-status?id="+url.QueryEscape(id), nil, &st)
	return st, err
}

// Confirm asks the server to confirm protocol.  Repeats are no-ops.
func (a *API) Confirm(ctx context.Context, protocol string) error {
	return a.do(ctx, http.MethodPost, "/confirm", map[string]string{"protocol": protocol}, nil)
}

func (a *API) Coupons(ctx context.Context, cpf string, page, limit int, products []string) (map[string][]model.Coupon, error) {
	var out map[string][]model.Coupon
	body := map[string]any{"cpf": cpf, "products": products}
	err := a.do(ctx, http.MethodPost, fmt.Sprintf("/coupons/%d/%d", page, limit), body, &out)
	return out, err
}

func (a *API) Results(ctx context.Context) ([]model.PromotionSummary, error) {
	var out []model.PromotionSummary
	err := a.do(ctx, http.MethodGet, "/promo-results", nil, &out)
	return out, err
}

func (a *API) Result(ctx context.Context, id string) ([]model.Draw, error) {
	var out struct {
		Draws []model.Draw `json:"draws"`
	}
	err := a.do(ctx, http.MethodGet, "/promo-results/"+url.PathEscape(id), nil, &out)
	return out.Draws, err
}

// do maps the server's status codes back onto the shared error kinds so the
// poller can tell a transient timeout from a hard failure.
func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("checkout server: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("checkout server: read: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &e)
		switch {
		case resp.StatusCode == http.StatusBadRequest:
			return apperr.Validation(e.Error)
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%s: %w", e.Error, apperr.ErrNotFound)
		case resp.StatusCode == http.StatusGatewayTimeout:
			return fmt.Errorf("%s: %w", e.Error, apperr.ErrGatewayTimeout)
		default:
			return fmt.Errorf("%s (%d): %w", e.Error, resp.StatusCode, apperr.ErrUpstreamUnavailable)
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("checkout server: decode %s: %v: %w", path, err, apperr.ErrUnexpectedResponse)
	}
	return nil
}
