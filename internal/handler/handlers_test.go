package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
	"github.com/iliyamo/pix-raffle-checkout/internal/checkout"
	"github.com/iliyamo/pix-raffle-checkout/internal/config"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
	"github.com/iliyamo/pix-raffle-checkout/internal/repository"
	"github.com/iliyamo/pix-raffle-checkout/internal/utils"
)

// MockCheckout implements CheckoutService and WebhookReceiver.
type MockCheckout struct {
	AttendFunc        func(ctx context.Context, o checkout.Order) (checkout.Session, error)
	PurchaseFunc      func(ctx context.Context, r checkout.PurchaseRequest) (checkout.Session, error)
	CheckoutFunc      func(ctx context.Context, o checkout.Order) (checkout.Session, error)
	PaymentStatusFunc func(ctx context.Context, id string) (checkout.Session, error)
	ConfirmFunc       func(ctx context.Context, protocol string) (bool, error)
	WebhookFunc       func(ctx context.Context, id string, status model.ChargeStatus) error
}

func (m *MockCheckout) Attend(ctx context.Context, o checkout.Order) (checkout.Session, error) {
	return m.AttendFunc(ctx, o)
}

func (m *MockCheckout) Purchase(ctx context.Context, r checkout.PurchaseRequest) (checkout.Session, error) {
	return m.PurchaseFunc(ctx, r)
}

func (m *MockCheckout) Checkout(ctx context.Context, o checkout.Order) (checkout.Session, error) {
	return m.CheckoutFunc(ctx, o)
}

func (m *MockCheckout) PaymentStatus(ctx context.Context, id string) (checkout.Session, error) {
	return m.PaymentStatusFunc(ctx, id)
}

func (m *MockCheckout) ConfirmProtocol(ctx context.Context, protocol string) (bool, error) {
	return m.ConfirmFunc(ctx, protocol)
}

func (m *MockCheckout) HandleWebhook(ctx context.Context, id string, status model.ChargeStatus) error {
	return m.WebhookFunc(ctx, id, status)
}

// MockCatalog implements CatalogReader.
type MockCatalog struct {
	CouponsFunc func(ctx context.Context, cpf string, page, size int, products []string) (map[string][]model.Coupon, error)
}

func (m *MockCatalog) Promotion(context.Context) (model.PromotionConfig, error) {
	return model.PromotionConfig{ID: "promo", MinQty: 1, MaxQty: 10}, nil
}

func (m *MockCatalog) Coupons(ctx context.Context, cpf string, page, size int, products []string) (map[string][]model.Coupon, error) {
	return m.CouponsFunc(ctx, cpf, page, size, products)
}

func (m *MockCatalog) Results(context.Context) ([]model.PromotionSummary, error) {
	return []model.PromotionSummary{{ID: "p1", Title: "Summer"}}, nil
}

func (m *MockCatalog) Result(_ context.Context, id string) ([]model.Draw, error) {
	if id == "missing" {
		return nil, apperr.ErrNotFound
	}
	return []model.Draw{{Order: 1, Description: "1st"}}, nil
}

func (m *MockCatalog) Draw(context.Context) (model.DrawInfo, error) {
	return model.DrawInfo{Banner: "b.png"}, nil
}

func do(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func checkoutServer(m *MockCheckout) *echo.Echo {
	e := echo.New()
	h := NewCheckoutHandler(m)
	e.POST("/attend", h.Attend)
	e.POST("/purchase", h.Purchase)
	e.POST("/checkout", h.Checkout)
	e.GET("/payment-status", h.PaymentStatus)
	e.POST("/confirm", h.Confirm)
	e.POST("/webhook/gateway", NewWebhookHandler(m).Gateway)
	return e
}

func TestPurchaseReturnsChargeShape(t *testing.T) {
	expires := time.Date(2026, 1, 1, 12, 5, 0, 0, time.UTC)
	m := &MockCheckout{PurchaseFunc: func(_ context.Context, r checkout.PurchaseRequest) (checkout.Session, error) {
		if r.Protocol != "P1" || r.Amount != 500 {
			t.Errorf("unexpected request %+v", r)
		}
		return checkout.Session{
			State:      checkout.StatePolling,
			Attendance: model.AttendanceRecord{Protocol: "P1"},
			Charge: model.PaymentCharge{
				ID: "pay-1", Amount: 500, Status: model.ChargePending,
				QRPayload: "000201", QRImage: "data:image/png;base64,xx", ExpiresAt: expires,
			},
		}, nil
	}}
	rec := do(t, checkoutServer(m), http.MethodPost, "/purchase", `{"amount":500,"cpf":"12345678901","protocol":"P1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)
	for _, k := range []string{"id", "paymentId", "amount", "qrCode", "status", "qrImage", "expiresAt"} {
		if _, ok := out[k]; !ok {
			t.Fatalf("missing field %q in %v", k, out)
		}
	}
	if out["paymentId"] != "pay-1" || out["amount"].(float64) != 500 || out["expiresAt"] != "2026-01-01T12:05:00Z" {
		t.Fatalf("unexpected body %v", out)
	}
}

func TestPaymentStatusRequiresID(t *testing.T) {
	called := false
	m := &MockCheckout{PaymentStatusFunc: func(context.Context, string) (checkout.Session, error) {
		called = true
		return checkout.Session{}, nil
	}}
	rec := do(t, checkoutServer(m), http.MethodGet, "/payment-status", "")
	if rec.Code != http.StatusBadRequest || called {
		t.Fatalf("expected 400 without a call, got %d called=%v", rec.Code, called)
	}
}

func TestPaymentStatusPassesGatewayFieldsThrough(t *testing.T) {
	m := &MockCheckout{PaymentStatusFunc: func(_ context.Context, id string) (checkout.Session, error) {
		return checkout.Session{
			State: checkout.StatePolling,
			Charge: model.PaymentCharge{
				ID: id, Status: model.ChargePending, QRImage: "img",
				ExpiresAt: time.Unix(1700000300, 0).UTC(),
				Fields:    map[string]any{"txid": "abc", "status": "ATIVA"},
			},
		}, nil
	}}
	rec := do(t, checkoutServer(m), http.MethodGet, "/payment-status?id=pay-9", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	out := decode(t, rec)
	if out["txid"] != "abc" || out["status"] != "pending" || out["qrImage"] != "img" || out["state"] != "polling" {
		t.Fatalf("unexpected body %v", out)
	}
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		code int
		msg  string
	}{
		{apperr.Validation("quantity must be between 1 and 10"), http.StatusBadRequest, "quantity must be between 1 and 10"},
		{apperr.ErrNotFound, http.StatusNotFound, "nothing found for this request"},
		{apperr.ErrGatewayTimeout, http.StatusGatewayTimeout, ""},
		{errors.New("catalog: POST /v1/atendimento status 503: upstream unavailable: " + apperr.ErrUpstreamUnavailable.Error()), http.StatusInternalServerError, "internal error"},
		{apperr.ErrUpstreamUnavailable, http.StatusBadGateway, "service temporarily unavailable, please try again"},
	}
	for _, c := range cases {
		err := c.err
		m := &MockCheckout{AttendFunc: func(context.Context, checkout.Order) (checkout.Session, error) {
			return checkout.Session{}, err
		}}
		rec := do(t, checkoutServer(m), http.MethodPost, "/attend", `{"cpf":"1","phone":"2","quantity":1}`)
		if rec.Code != c.code {
			t.Fatalf("%v: expected %d, got %d", c.err, c.code, rec.Code)
		}
		if c.msg != "" && decode(t, rec)["error"] != c.msg {
			t.Fatalf("%v: unexpected message %s", c.err, rec.Body.String())
		}
		if strings.Contains(rec.Body.String(), "atendimento") {
			t.Fatalf("upstream detail leaked: %s", rec.Body.String())
		}
	}
}

func TestConfirmReportsRepeat(t *testing.T) {
	calls := 0
	m := &MockCheckout{ConfirmFunc: func(_ context.Context, p string) (bool, error) {
		calls++
		return calls == 1, nil
	}}
	e := checkoutServer(m)
	first := decode(t, do(t, e, http.MethodPost, "/confirm", `{"protocol":"P1"}`))
	second := decode(t, do(t, e, http.MethodPost, "/confirm", `{"protocol":"P1"}`))
	if first["alreadyConfirmed"] != false || second["alreadyConfirmed"] != true {
		t.Fatalf("unexpected bodies %v %v", first, second)
	}
}

func TestWebhookRoutesPixEvents(t *testing.T) {
	var gotID string
	var gotStatus model.ChargeStatus
	m := &MockCheckout{WebhookFunc: func(_ context.Context, id string, s model.ChargeStatus) error {
		gotID, gotStatus = id, s
		return nil
	}}
	e := checkoutServer(m)

	rec := do(t, e, http.MethodPost, "/webhook/gateway", `{"event":{"type":"pix","data":{"pix":{"paymentId":"pay-3","status":"PAID"}}}}`)
	if rec.Code != http.StatusOK || gotID != "pay-3" || gotStatus != model.ChargePaid {
		t.Fatalf("got %d id=%q status=%q", rec.Code, gotID, gotStatus)
	}

	gotID = ""
	rec = do(t, e, http.MethodPost, "/webhook/gateway", `{"event":{"type":"boleto","data":{}}}`)
	if rec.Code != http.StatusAccepted || gotID != "" {
		t.Fatalf("non-pix event must be ignored, got %d id=%q", rec.Code, gotID)
	}

	rec = do(t, e, http.MethodPost, "/webhook/gateway", `{"event":{"type":"pix","data":{"pix":{}}}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing id must be 400, got %d", rec.Code)
	}
}

func TestCouponsValidatesBeforeCalling(t *testing.T) {
	called := false
	cat := &MockCatalog{CouponsFunc: func(_ context.Context, cpf string, page, size int, products []string) (map[string][]model.Coupon, error) {
		called = true
		if cpf != "12345678901" || page != 1 || size != 20 || len(products) != 1 {
			t.Errorf("unexpected call %s %d %d %v", cpf, page, size, products)
		}
		return map[string][]model.Coupon{"promo": {{ID: "T1", DrawNumbers: []string{"01", "02"}}}}, nil
	}}
	e := echo.New()
	h := NewCatalogHandler(cat)
	e.POST("/coupons/:page/:limit", h.Coupons)
	e.GET("/promo-results/:id", h.Result)

	if rec := do(t, e, http.MethodPost, "/coupons/0/20", `{"cpf":"12345678901"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("page 0 must be rejected, got %d", rec.Code)
	}
	if rec := do(t, e, http.MethodPost, "/coupons/1/20", `{"cpf":"123"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("short cpf must be rejected, got %d", rec.Code)
	}
	if called {
		t.Fatalf("catalog called for invalid input")
	}
	rec := do(t, e, http.MethodPost, "/coupons/1/20", `{"cpf":"123.456.789-01","products":["promo"," "]}`)
	if rec.Code != http.StatusOK || !called {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := do(t, e, http.MethodGet, "/promo-results/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

// MockLedger implements PurchaseLister and ConfirmationRetrier.
type MockLedger struct {
	rows    []model.Purchase
	retried []string
}

func (m *MockLedger) ListByStatus(_ context.Context, status string, _ int) ([]model.Purchase, error) {
	var out []model.Purchase
	for _, r := range m.rows {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MockLedger) RetryConfirmation(_ context.Context, id string) error {
	for _, r := range m.rows {
		if r.PaymentID == id {
			m.retried = append(m.retried, id)
			return nil
		}
	}
	return repository.ErrPurchaseNotFound
}

func TestAdminLoginAndReconciliation(t *testing.T) {
	hash, err := utils.HashPassword("pw", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cfg := config.Config{AdminUser: "ops", AdminPasswordHash: hash, JWTSecret: "k", AccessTTLMin: 5}
	ledger := &MockLedger{rows: []model.Purchase{
		{PaymentID: "pay-1", Status: model.PurchaseConfirmFailed},
		{PaymentID: "pay-2", Status: model.PurchaseConfirmed},
	}}
	h := NewAdminHandler(cfg, ledger, ledger)
	e := echo.New()
	e.POST("/admin/login", h.Login)
	e.GET("/admin/reconciliation", h.Reconciliation)
	e.POST("/admin/reconciliation/:paymentId/retry", h.Retry)

	if rec := do(t, e, http.MethodPost, "/admin/login", `{"username":"ops","password":"nope"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password must be 401, got %d", rec.Code)
	}
	rec := do(t, e, http.MethodPost, "/admin/login", `{"username":"ops","password":"pw"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"token"`) {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}

	out := decode(t, do(t, e, http.MethodGet, "/admin/reconciliation", ""))
	if rows := out["purchases"].([]any); len(rows) != 1 {
		t.Fatalf("expected one CONFIRM_FAILED row, got %v", rows)
	}
	if rec := do(t, e, http.MethodPost, "/admin/reconciliation/pay-1/retry", ""); rec.Code != http.StatusOK {
		t.Fatalf("retry: %d", rec.Code)
	}
	if rec := do(t, e, http.MethodPost, "/admin/reconciliation/pay-x/retry", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown retry must be 404, got %d", rec.Code)
	}
}
