package buyer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
	"github.com/iliyamo/pix-raffle-checkout/internal/checkout"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

// Server is the part of the checkout API the flow drives.
type Server interface {
	Promotion(ctx context.Context) (model.PromotionConfig, error)
	Attend(ctx context.Context, o checkout.Order) (string, error)
	Purchase(ctx context.Context, protocol, cpf string, amount int64) (Charge, error)
	PaymentStatus(ctx context.Context, id string) (PaymentStatus, error)
	Confirm(ctx context.Context, protocol string) error
}

// Flow runs one purchase from the buyer's side.
type Flow struct {
	Server       Server
	Store        SessionStore
	PollInterval time.Duration
	OnCharge     func(ClientSession) // show the QR code
	OnStatus     func(PaymentStatus)
	Now          func() time.Time

	mu        sync.Mutex
	abandonCh chan struct{}
	abandoned bool
}

func (f *Flow) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// Run resumes the stored payment when it is still within its window, or
// else clears it and buys order afresh.  It returns the terminal state
// reached: Completed, Expired or Abandoned.  When ctx ends first the
// session is kept so a later Run resumes it.
func (f *Flow) Run(ctx context.Context, order checkout.Order) (checkout.State, error) {
	sess, ok, err := f.Store.Load()
	if err != nil {
		return checkout.StateIdle, fmt.Errorf("buyer: load session: %w", err)
	}
	if ok && sess.Expired(f.now()) {
		log.Printf("buyer: stored payment %s expired at %s; starting over", sess.ID, sess.ExpiresAt.Format(time.RFC3339))
		if err := f.Store.Clear(); err != nil {
			return checkout.StateIdle, fmt.Errorf("buyer: clear session: %w", err)
		}
		ok = false
	}
	if !ok {
		if sess, err = f.buy(ctx, order); err != nil {
			return checkout.StateIdle, err
		}
	} else {
		log.Printf("buyer: resuming payment %s", sess.ID)
	}
	if f.OnCharge != nil {
		f.OnCharge(sess)
	}
	return f.await(ctx, sess)
}

// Resume awaits a stored payment without ever creating a charge.  It
// reports false when there is nothing to resume.
func (f *Flow) Resume(ctx context.Context) (checkout.State, bool, error) {
	sess, ok, err := f.Store.Load()
	if err != nil || !ok {
		return checkout.StateIdle, false, err
	}
	if sess.Expired(f.now()) {
		return checkout.StateExpired, true, f.Store.Clear()
	}
	if f.OnCharge != nil {
		f.OnCharge(sess)
	}
	st, err := f.await(ctx, sess)
	return st, true, err
}

// buy validates locally, registers the attendance and creates the charge.
func (f *Flow) buy(ctx context.Context, order checkout.Order) (ClientSession, error) {
	if _, err := order.Normalize(); err != nil {
		return ClientSession{}, err
	}
	promo, err := f.Server.Promotion(ctx)
	if err != nil {
		return ClientSession{}, err
	}
	valid, err := order.Validate(promo)
	if err != nil {
		return ClientSession{}, err
	}
	protocol, err := f.Server.Attend(ctx, valid)
	if err != nil {
		return ClientSession{}, err
	}
	ch, err := f.Server.Purchase(ctx, protocol, valid.CPF, checkout.Amount(valid.Quantity, promo.UnitPrice))
	if err != nil {
		return ClientSession{}, err
	}
	sess := ClientSession{
		ID:        ch.ID,
		QRImage:   ch.QRImage,
		QRCode:    ch.QRCode,
		Status:    ch.Status,
		ExpiresAt: ch.ExpiresAt,
		Protocol:  protocol,
	}
	if err := f.Store.Save(sess); err != nil {
		// the charge exists; losing the session only costs resumability
		log.Printf("buyer: save session %s: %v", sess.ID, err)
	}
	return sess, nil
}

// Abandon gives up the payment being awaited.  It has no effect once the
// payment reached a terminal state.
func (f *Flow) Abandon() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.abandonCh != nil && !f.abandoned {
		f.abandoned = true
		close(f.abandonCh)
	}
}

func (f *Flow) armAbandon() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abandonCh = make(chan struct{})
	f.abandoned = false
	return f.abandonCh
}

func (f *Flow) disarmAbandon() {
	f.mu.Lock()
	f.abandonCh = nil
	f.mu.Unlock()
}

func (f *Flow) await(ctx context.Context, sess ClientSession) (checkout.State, error) {
	abandon := f.armAbandon()
	defer f.disarmAbandon()

	poller := NewPoller(f.Server.PaymentStatus, f.PollInterval)
	defer poller.Stop()
	updates := poller.Start(ctx, sess.ID)

	// the payment window closes locally even when the server cannot be
	// reached or never reports the expiry
	var deadline <-chan time.Time
	if !sess.ExpiresAt.IsZero() {
		timer := time.NewTimer(sess.ExpiresAt.Sub(f.now()))
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return checkout.StatePolling, ctx.Err()

		case <-deadline:
			poller.Stop()
			log.Printf("buyer: payment %s window closed at %s", sess.ID, sess.ExpiresAt.Format(time.RFC3339))
			return checkout.StateExpired, f.Store.Clear()

		case <-abandon:
			poller.Stop()
			log.Printf("buyer: payment %s abandoned", sess.ID)
			return checkout.StateAbandoned, f.Store.Clear()

		case st, ok := <-updates:
			if !ok {
				if ctx.Err() != nil {
					return checkout.StatePolling, ctx.Err()
				}
				err := poller.Err()
				if errors.Is(err, apperr.ErrNotFound) {
					_ = f.Store.Clear()
				}
				if err == nil {
					err = errors.New("buyer: polling stopped")
				}
				return checkout.StatePolling, err
			}
			if f.OnStatus != nil {
				f.OnStatus(st)
			}
			switch {
			case st.Status.IsPaid() || st.State == checkout.StateCompleted:
				f.disarmAbandon()
				if sess.Protocol != "" {
					if err := f.Server.Confirm(ctx, sess.Protocol); err != nil {
						// the server confirms on its own; this call is a safety net
						log.Printf("buyer: confirm %s: %v", sess.Protocol, err)
					}
				}
				return checkout.StateCompleted, f.Store.Clear()
			case st.Status == model.ChargeExpired || st.Status == model.ChargeFailed || st.State == checkout.StateExpired:
				return checkout.StateExpired, f.Store.Clear()
			}
		}
	}
}
