package buyer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

func TestPollerStopsOnTerminalStatus(t *testing.T) {
	var calls int32
	p := NewPoller(func(_ context.Context, id string) (PaymentStatus, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return PaymentStatus{}, apperr.ErrGatewayTimeout
		}
		if n < 4 {
			return PaymentStatus{ID: id, Status: model.ChargePending}, nil
		}
		return PaymentStatus{ID: id, Status: model.ChargePaid}, nil
	}, 5*time.Millisecond)

	var seen []model.ChargeStatus
	for st := range p.Start(context.Background(), "pay-1") {
		seen = append(seen, st.Status)
	}
	if len(seen) != 3 || seen[2] != model.ChargePaid {
		t.Fatalf("unexpected statuses %v", seen)
	}
	before := atomic.LoadInt32(&calls)
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&calls) != before {
		t.Fatalf("poller kept polling after a terminal status")
	}
}

func TestPollerStopCancelsAndMakesNoFurtherCalls(t *testing.T) {
	var calls int32
	p := NewPoller(func(context.Context, string) (PaymentStatus, error) {
		atomic.AddInt32(&calls, 1)
		return PaymentStatus{Status: model.ChargePending}, nil
	}, 2*time.Millisecond)

	updates := p.Start(context.Background(), "pay-1")
	<-updates
	p.Stop()
	after := atomic.LoadInt32(&calls)
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&calls) != after {
		t.Fatalf("requests made after Stop")
	}
	for range updates {
	}
	p.Stop() // idempotent
}

func TestPollerKeepsOneActivePoll(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	p := NewPoller(func(_ context.Context, id string) (PaymentStatus, error) {
		mu.Lock()
		seen[id]++
		mu.Unlock()
		return PaymentStatus{Status: model.ChargePending}, nil
	}, 2*time.Millisecond)

	first := p.Start(context.Background(), "old")
	<-first
	second := p.Start(context.Background(), "new")
	for range first {
	}
	mu.Lock()
	oldCalls := seen["old"]
	mu.Unlock()
	<-second
	<-second
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	if seen["old"] != oldCalls {
		t.Fatalf("previous poll still running")
	}
	if seen["new"] < 2 {
		t.Fatalf("new poll not running")
	}
}

func TestPollerEndsOnHardError(t *testing.T) {
	p := NewPoller(func(context.Context, string) (PaymentStatus, error) {
		return PaymentStatus{}, apperr.ErrNotFound
	}, time.Millisecond)
	for range p.Start(context.Background(), "pay-1") {
		t.Fatalf("no status expected")
	}
	if !errors.Is(p.Err(), apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", p.Err())
	}
}

func TestPollerChecksImmediately(t *testing.T) {
	p := NewPoller(func(_ context.Context, id string) (PaymentStatus, error) {
		return PaymentStatus{ID: id, Status: model.ChargePaid}, nil
	}, time.Hour)
	defer p.Stop()

	select {
	case st := <-p.Start(context.Background(), "pay-1"):
		if st.Status != model.ChargePaid {
			t.Fatalf("unexpected status %s", st.Status)
		}
	case <-time.After(time.Second):
		t.Fatalf("first check waited for the interval")
	}
}
