package buyer_test

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/pix-raffle-checkout/internal/buyer"
	"github.com/iliyamo/pix-raffle-checkout/internal/checkout"
	"github.com/iliyamo/pix-raffle-checkout/internal/handler"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
	"github.com/iliyamo/pix-raffle-checkout/internal/repository"
)

// upstream fakes the catalog and the Pix gateway behind the server.
type upstream struct {
	mu          sync.Mutex
	attendQty   []int
	chargeAmts  []int64
	statusCalls int
	confirmed   []string
}

func (u *upstream) Promotion(context.Context) (model.PromotionConfig, error) {
	return model.PromotionConfig{ID: "promo", UnitPrice: decimal.RequireFromString("2.50"), MinQty: 1, MaxQty: 50}, nil
}

func (u *upstream) Register(_ context.Context, cpf, phone string, q int) (model.AttendanceRecord, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.attendQty = append(u.attendQty, q)
	return model.AttendanceRecord{Protocol: "PROTO-42", CPF: cpf, Phone: phone, Quantity: q}, nil
}

func (u *upstream) Confirm(_ context.Context, protocol string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.confirmed = append(u.confirmed, protocol)
	return nil
}

func (u *upstream) CreateCharge(_ context.Context, amount int64, _ string) (model.PaymentCharge, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.chargeAmts = append(u.chargeAmts, amount)
	now := time.Now()
	return model.PaymentCharge{ID: "pay-42", Amount: amount, Status: model.ChargePending, QRPayload: "000201",
		CreatedAt: now, ExpireSeconds: 300, ExpiresAt: model.ComputeExpiresAt(now, 300)}, nil
}

func (u *upstream) ChargeStatus(_ context.Context, id string) (model.PaymentCharge, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.statusCalls++
	status := model.ChargePending
	if u.statusCalls > 3 {
		status = model.ChargePaid
	}
	created := time.Now().Add(-time.Minute)
	return model.PaymentCharge{ID: id, Amount: 500, Status: status,
		CreatedAt: created, ExpireSeconds: 300, ExpiresAt: model.ComputeExpiresAt(created, 300)}, nil
}

func TestEndToEndPurchase(t *testing.T) {
	store, err := repository.OpenBoltPendingStore(filepath.Join(t.TempDir(), "pending.db"), time.Minute)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	up := &upstream{}
	orc := checkout.New(checkout.Deps{Catalog: up, Attendance: up, Gateway: up, Pending: store}, checkout.Options{})
	e := echo.New()
	h := handler.NewCheckoutHandler(orc)
	e.GET("/promotion", func(c echo.Context) error {
		p, _ := up.Promotion(c.Request().Context())
		return c.JSON(200, p)
	})
	e.POST("/attend", h.Attend)
	e.POST("/purchase", h.Purchase)
	e.GET("/payment-status", h.PaymentStatus)
	e.POST("/confirm", h.Confirm)
	srv := httptest.NewServer(e)
	defer srv.Close()

	var statuses []model.ChargeStatus
	flow := &buyer.Flow{
		Server:       buyer.NewAPI(srv.URL, 5*time.Second),
		Store:        buyer.NewFileStore(filepath.Join(t.TempDir(), "session.json")),
		PollInterval: 5 * time.Millisecond,
		OnStatus:     func(s buyer.PaymentStatus) { statuses = append(statuses, s.Status) },
	}
	st, err := flow.Run(context.Background(), checkout.Order{CPF: "12345678901", Phone: "11999999999", Quantity: 2})
	if err != nil || st != checkout.StateCompleted {
		t.Fatalf("run: %s %v", st, err)
	}

	up.mu.Lock()
	defer up.mu.Unlock()
	if len(up.attendQty) != 1 || up.attendQty[0] != 2 {
		t.Fatalf("expected one attend with quantity 2, got %v", up.attendQty)
	}
	if len(up.chargeAmts) != 1 || up.chargeAmts[0] != 500 {
		t.Fatalf("expected one charge of 500, got %v", up.chargeAmts)
	}
	want := []model.ChargeStatus{model.ChargePending, model.ChargePending, model.ChargePending, model.ChargePaid}
	if len(statuses) != len(want) {
		t.Fatalf("expected statuses %v, got %v", want, statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("expected statuses %v, got %v", want, statuses)
		}
	}
	if len(up.confirmed) != 1 || up.confirmed[0] != "PROTO-42" {
		t.Fatalf("expected exactly one confirm of PROTO-42, got %v", up.confirmed)
	}
}
