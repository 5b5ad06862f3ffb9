package buyer

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
)

// StatusFunc reads the current status of a payment.
type StatusFunc func(ctx context.Context, paymentID string) (PaymentStatus, error)

// Poller owns the status poll of one payment.  Starting a new poll cancels
// the previous one, so at most one is ever active; after Stop returns no
// further request is made.
type Poller struct {
	interval time.Duration
	check    StatusFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	errMu sync.Mutex
	err   error
}

// NewPoller polls with check every interval (5s when zero).
func NewPoller(check StatusFunc, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Poller{interval: interval, check: check}
}

// Start checks paymentID at once and then every interval, returning a
// channel of observed statuses.  The channel is closed when a terminal status is seen, a
// non-transient error occurs, ctx ends or the poll is stopped.  Timeouts and
// unavailable upstreams are transient: the poll keeps going.
func (p *Poller) Start(ctx context.Context, paymentID string) <-chan PaymentStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	out := make(chan PaymentStatus, 1)
	p.cancel, p.done = cancel, done
	p.setErr(nil)

	go func() {
		defer close(done)
		defer close(out)
		t := time.NewTicker(p.interval)
		defer t.Stop()
		for first := true; ; first = false {
			if !first {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
				}
			}
			st, err := p.check(ctx, paymentID)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if errors.Is(err, apperr.ErrGatewayTimeout) || errors.Is(err, apperr.ErrUpstreamUnavailable) {
					log.Printf("buyer: poll %s: %v (retrying)", paymentID, err)
					continue
				}
				log.Printf("buyer: poll %s stopped: %v", paymentID, err)
				p.setErr(err)
				return
			}
			select {
			case out <- st:
			case <-ctx.Done():
				return
			}
			if st.Terminal() {
				return
			}
		}
	}()
	return out
}

// Stop cancels the active poll, if any, and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// stopLocked runs with mu held; the poll goroutine never takes mu.
func (p *Poller) stopLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel, p.done = nil, nil
}

// Err returns the error that ended the last poll, if it was not a terminal
// status, cancellation or Stop.
func (p *Poller) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

func (p *Poller) setErr(err error) {
	p.errMu.Lock()
	p.err = err
	p.errMu.Unlock()
}
