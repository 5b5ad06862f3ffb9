// Package checkout drives a raffle purchase from order intake to attendance
// confirmation.  It ties together the catalog (promotion, attendance), the
// Pix gateway and the pending confirmation store.  Each HTTP request is
// handled independently; the only state shared between buyers lives in the
// pending store, whose claim operations are atomic.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/pix-raffle-checkout/internal/apperr"
	"github.com/iliyamo/pix-raffle-checkout/internal/model"
	"github.com/iliyamo/pix-raffle-checkout/internal/queue"
	"github.com/iliyamo/pix-raffle-checkout/internal/repository"
)

// PromotionCatalog reads the authoritative promotion configuration.
type PromotionCatalog interface {
	Promotion(ctx context.Context) (model.PromotionConfig, error)
}

// AttendanceService reserves and confirms coupons in the catalog.
type AttendanceService interface {
	Register(ctx context.Context, cpf, phone string, quantity int) (model.AttendanceRecord, error)
	Confirm(ctx context.Context, protocol string) error
}

// PaymentGateway creates and reads Pix charges.
type PaymentGateway interface {
	CreateCharge(ctx context.Context, amount int64, payerDocument string) (model.PaymentCharge, error)
	ChargeStatus(ctx context.Context, id string) (model.PaymentCharge, error)
}

// PendingStore is the server-held correlation between payments and
// attendances.  Claim and ClaimProtocol must be atomic: among concurrent
// callers exactly one observes ok=true.
type PendingStore interface {
	SaveAttendance(ctx context.Context, rec model.AttendanceRecord, ttl time.Duration) error
	Attendance(ctx context.Context, protocol string) (model.AttendanceRecord, error)
	Track(ctx context.Context, p model.PendingPayment) error
	PaymentFor(ctx context.Context, protocol string) (string, bool, error)
	Claim(ctx context.Context, paymentID string) (model.PendingPayment, bool, error)
	ClaimProtocol(ctx context.Context, protocol string, ttl time.Duration) (bool, error)
	Forget(ctx context.Context, paymentID string) error
}

// Ledger records attempts for reconciliation.  Optional.
type Ledger interface {
	Create(ctx context.Context, p model.Purchase) error
	UpdateStatus(ctx context.Context, paymentID, status, lastErr string) error
	Get(ctx context.Context, paymentID string) (model.Purchase, error)
}

// EventPublisher announces confirmed purchases.  Optional.
type EventPublisher interface {
	PublishPurchaseConfirmed(ctx context.Context, ev queue.PurchaseConfirmedEvent) error
}

// Deps are the collaborators of an Orchestrator.  Ledger and Events may be
// nil.
type Deps struct {
	Catalog    PromotionCatalog
	Attendance AttendanceService
	Gateway    PaymentGateway
	Pending    PendingStore
	Ledger     Ledger
	Events     EventPublisher
}

// Options tune timing.  Zero values take the defaults noted per field.
type Options struct {
	AttendanceTTL time.Duration // how long a registered attendance may be charged (30m)
	ClaimTTL      time.Duration // lifetime of the per-protocol confirm marker (72h)
	SideEffectTTL time.Duration // bound on ledger/event writes (5s)
	ChargeExpiry  time.Duration // payment window when the gateway omits one (300s)
	Now           func() time.Time
}

// Orchestrator implements the purchase state machine.
type Orchestrator struct {
	catalog    PromotionCatalog
	attendance AttendanceService
	gateway    PaymentGateway
	pending    PendingStore
	ledger     Ledger
	events     EventPublisher
	opts       Options
}

// New builds an Orchestrator.  It panics when a required collaborator is
// missing.
func New(d Deps, opts Options) *Orchestrator {
	if d.Catalog == nil || d.Attendance == nil || d.Gateway == nil || d.Pending == nil {
		panic("nil dependency passed to checkout.New")
	}
	if opts.AttendanceTTL <= 0 {
		opts.AttendanceTTL = 30 * time.Minute
	}
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = 72 * time.Hour
	}
	if opts.SideEffectTTL <= 0 {
		opts.SideEffectTTL = 5 * time.Second
	}
	if opts.ChargeExpiry <= 0 {
		opts.ChargeExpiry = 300 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		catalog:    d.Catalog,
		attendance: d.Attendance,
		gateway:    d.Gateway,
		pending:    d.Pending,
		ledger:     d.Ledger,
		events:     d.Events,
		opts:       opts,
	}
}

// Promotion passes the catalog promotion through.
func (o *Orchestrator) Promotion(ctx context.Context) (model.PromotionConfig, error) {
	return o.catalog.Promotion(ctx)
}

// Attend moves Idle -> AttendanceRegistered.  CPF and phone are checked
// before any upstream call and the quantity against the live promotion
// before the catalog is asked for a reservation; on any failure the
// session stays Idle and no charge exists.
func (o *Orchestrator) Attend(ctx context.Context, order Order) (Session, error) {
	sess := Session{State: StateIdle, Order: order}
	if _, err := order.Normalize(); err != nil {
		return sess, err
	}
	promo, err := o.catalog.Promotion(ctx)
	if err != nil {
		return sess, err
	}
	valid, err := order.Validate(promo)
	if err != nil {
		return sess, err
	}
	sess.Order = valid

	rec, err := o.attendance.Register(ctx, valid.CPF, valid.Phone, valid.Quantity)
	if err != nil {
		log.Printf("checkout: attendance register failed cpf=%s qty=%d: %v", maskCPF(valid.CPF), valid.Quantity, err)
		return sess, err
	}
	if err := o.pending.SaveAttendance(ctx, rec, o.opts.AttendanceTTL); err != nil {
		// the reservation exists upstream but cannot be charged from here;
		// it is left unconfirmed for the catalog to expire
		log.Printf("checkout: save attendance %s failed: %v", rec.Protocol, err)
		return sess, fmt.Errorf("checkout: save attendance: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}
	sess.Attendance = rec
	return sess.Advance(StateAttendanceRegistered)
}

// PurchaseRequest asks for a charge against a registered attendance.
// Amount is optional; when present it must equal the server-side price.
type PurchaseRequest struct {
	Protocol string
	CPF      string
	Amount   int64
}

// Purchase moves AttendanceRegistered -> ChargeCreated -> Polling.  The
// amount is recomputed from the reserved quantity and the catalog price; a
// protocol this server never registered is rejected, so no charge is ever
// created without a reservation.  Repeating a purchase for a protocol that
// already has a charge returns that charge instead of creating another.
func (o *Orchestrator) Purchase(ctx context.Context, req PurchaseRequest) (Session, error) {
	sess := Session{State: StateIdle}
	if req.Protocol == "" {
		return sess, apperr.Validation("protocol is required")
	}
	rec, err := o.pending.Attendance(ctx, req.Protocol)
	if errors.Is(err, repository.ErrAttendanceNotFound) {
		return sess, apperr.Validation("unknown or expired attendance protocol")
	}
	if err != nil {
		return sess, fmt.Errorf("checkout: load attendance: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}
	if req.CPF != "" {
		if cpf, err := NormalizeCPF(req.CPF); err != nil || cpf != rec.CPF {
			return sess, apperr.Validation("cpf does not match the attendance")
		}
	}
	sess = Session{
		State:      StateAttendanceRegistered,
		Order:      Order{CPF: rec.CPF, Phone: rec.Phone, Quantity: rec.Quantity},
		Attendance: rec,
	}

	paymentID, ok, err := o.pending.PaymentFor(ctx, rec.Protocol)
	if err != nil {
		return sess, fmt.Errorf("checkout: load payment for %s: %v: %w", rec.Protocol, err, apperr.ErrUpstreamUnavailable)
	}
	if ok {
		ch, err := o.gateway.ChargeStatus(ctx, paymentID)
		if err != nil {
			return sess, err
		}
		sess.Charge = ch
		sess.State = stateForCharge(ch.Status)
		return sess, nil
	}

	promo, err := o.catalog.Promotion(ctx)
	if err != nil {
		return sess, err
	}
	if err := ValidateQuantity(rec.Quantity, promo); err != nil {
		return sess, err
	}
	amount := Amount(rec.Quantity, promo.UnitPrice)
	if req.Amount != 0 && req.Amount != amount {
		return sess, apperr.Validation("amount does not match the promotion price")
	}

	ch, err := o.gateway.CreateCharge(ctx, amount, rec.CPF)
	if err != nil {
		// the attendance stays unconfirmed; no automatic retry
		log.Printf("checkout: create charge failed protocol=%s amount=%d: %v", rec.Protocol, amount, err)
		return sess, err
	}
	if sess, err = sess.Advance(StateChargeCreated); err != nil {
		return sess, err
	}
	sess.Charge = ch
	if ch.ExpiresAt.IsZero() {
		ch.ExpiresAt = o.opts.Now().Add(o.opts.ChargeExpiry)
		sess.Charge.ExpiresAt = ch.ExpiresAt
	}

	pp := model.PendingPayment{PaymentID: ch.ID, Protocol: rec.Protocol, AmountCents: amount, ExpiresAt: ch.ExpiresAt}
	if err := o.pending.Track(ctx, pp); err != nil {
		// no confirm path can find an untracked payment, so the QR code is
		// withheld and the unpaid charge lapses at the gateway
		log.Printf("checkout: track payment %s failed: %v", ch.ID, err)
		withheld := Session{State: StateAttendanceRegistered, Order: sess.Order, Attendance: rec}
		return withheld, fmt.Errorf("checkout: track payment: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}
	o.record(model.Purchase{
		PaymentID:   ch.ID,
		Protocol:    rec.Protocol,
		CPF:         rec.CPF,
		Quantity:    rec.Quantity,
		AmountCents: amount,
		Status:      model.PurchaseChargeCreated,
	})
	return sess.Advance(StatePolling)
}

// Checkout runs Attend and Purchase in one call.
func (o *Orchestrator) Checkout(ctx context.Context, order Order) (Session, error) {
	sess, err := o.Attend(ctx, order)
	if err != nil {
		return sess, err
	}
	return o.Purchase(ctx, PurchaseRequest{Protocol: sess.Attendance.Protocol, CPF: sess.Order.CPF})
}

// PaymentStatus polls the gateway once.  A paid charge is confirmed
// (at most once, however many pollers and webhooks race); a pending charge
// past its deadline is reported as expired and its pending entry dropped.
func (o *Orchestrator) PaymentStatus(ctx context.Context, paymentID string) (Session, error) {
	sess := Session{State: StatePolling}
	if paymentID == "" {
		return sess, apperr.Validation("payment id is required")
	}
	ch, err := o.gateway.ChargeStatus(ctx, paymentID)
	if err != nil {
		return sess, err
	}
	sess.Charge = ch

	switch {
	case ch.Status.IsPaid():
		sess.State = StatePaid
		if _, err := o.completePayment(ctx, paymentID, &ch, "poll"); err != nil {
			return sess, err
		}
		sess.State = StateCompleted
	case ch.Status == model.ChargeExpired || ch.Status == model.ChargeFailed || ch.ExpiredAt(o.opts.Now()):
		sess.State = StateExpired
		sess.Charge.Status = model.ChargeExpired
		if ch.Status == model.ChargeFailed {
			sess.Charge.Status = model.ChargeFailed
		}
		o.drop(ctx, paymentID, sess.Charge.Status)
	}
	return sess, nil
}

// HandleWebhook reacts to a gateway push.  Unknown or already confirmed
// payments are acknowledged without effect.
func (o *Orchestrator) HandleWebhook(ctx context.Context, paymentID string, status model.ChargeStatus) error {
	switch {
	case status.IsPaid():
		_, err := o.completePayment(ctx, paymentID, nil, "webhook")
		return err
	case status == model.ChargeExpired || status == model.ChargeFailed:
		o.drop(ctx, paymentID, status)
	}
	return nil
}

// ConfirmProtocol confirms the attendance behind protocol once its charge
// is paid.  It reports whether this call performed the confirmation.
func (o *Orchestrator) ConfirmProtocol(ctx context.Context, protocol string) (bool, error) {
	if protocol == "" {
		return false, apperr.Validation("protocol is required")
	}
	paymentID, ok, err := o.pending.PaymentFor(ctx, protocol)
	if err != nil {
		return false, fmt.Errorf("checkout: lookup payment: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}
	if !ok {
		return false, apperr.Validation("no payment for this protocol")
	}
	ch, err := o.gateway.ChargeStatus(ctx, paymentID)
	if err != nil {
		return false, err
	}
	if !ch.Status.IsPaid() {
		return false, apperr.Validation("payment not confirmed yet")
	}
	return o.completePayment(ctx, paymentID, &ch, "confirm")
}

// completePayment performs Paid -> Confirming -> Completed.  The payment
// claim and the protocol claim together make the catalog confirm call
// happen once per protocol.  A failed confirm is logged and recorded for
// reconciliation; the buyer still sees the payment as complete.
func (o *Orchestrator) completePayment(ctx context.Context, paymentID string, ch *model.PaymentCharge, source string) (bool, error) {
	pp, ok, err := o.pending.Claim(ctx, paymentID)
	if err != nil {
		return false, fmt.Errorf("checkout: claim payment: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}
	if !ok {
		return false, nil
	}
	first, err := o.pending.ClaimProtocol(ctx, pp.Protocol, o.opts.ClaimTTL)
	if err != nil {
		// put the entry back so the next poll or webhook can retry the claim
		if terr := o.pending.Track(ctx, pp); terr != nil {
			log.Printf("checkout: restore pending %s failed: %v", paymentID, terr)
		}
		return false, fmt.Errorf("checkout: claim protocol: %v: %w", err, apperr.ErrUpstreamUnavailable)
	}
	if !first {
		return false, nil
	}
	o.setStatus(paymentID, model.PurchasePaid, "")

	if err := o.attendance.Confirm(ctx, pp.Protocol); err != nil {
		log.Printf("checkout: CONFIRMATION FAILURE payment=%s protocol=%s source=%s: %v", paymentID, pp.Protocol, source, err)
		o.setStatus(paymentID, model.PurchaseConfirmFailed, err.Error())
		return true, nil
	}
	o.setStatus(paymentID, model.PurchaseConfirmed, "")

	amount := pp.AmountCents
	if ch != nil && ch.Amount > 0 {
		amount = ch.Amount
	}
	o.publish(ctx, pp, amount, source)
	return true, nil
}

// RetryConfirmation is the operator path for CONFIRM_FAILED purchases.  It
// bypasses the claims, which were consumed by the failed attempt.
func (o *Orchestrator) RetryConfirmation(ctx context.Context, paymentID string) error {
	if o.ledger == nil {
		return errors.New("checkout: reconciliation requires the purchase ledger")
	}
	p, err := o.ledger.Get(ctx, paymentID)
	if err != nil {
		return err
	}
	if p.Status == model.PurchaseConfirmed {
		return nil
	}
	if p.Status != model.PurchaseConfirmFailed && p.Status != model.PurchasePaid {
		return apperr.Validation("purchase is not awaiting confirmation")
	}
	if err := o.attendance.Confirm(ctx, p.Protocol); err != nil {
		o.setStatus(paymentID, model.PurchaseConfirmFailed, err.Error())
		return fmt.Errorf("checkout: retry confirm: %v: %w", err, apperr.ErrConfirmation)
	}
	o.setStatus(paymentID, model.PurchaseConfirmed, "")
	o.publish(ctx, model.PendingPayment{PaymentID: p.PaymentID, Protocol: p.Protocol}, p.AmountCents, "reconcile")
	return nil
}

// drop forgets a payment that can no longer be confirmed.  Its attendance
// is abandoned unconfirmed.
func (o *Orchestrator) drop(ctx context.Context, paymentID string, status model.ChargeStatus) {
	if err := o.pending.Forget(ctx, paymentID); err != nil {
		log.Printf("checkout: forget %s failed: %v", paymentID, err)
	}
	ledgerStatus := model.PurchaseExpired
	if status == model.ChargeFailed {
		ledgerStatus = model.PurchaseFailed
	}
	o.setStatus(paymentID, ledgerStatus, "")
}

func (o *Orchestrator) record(p model.Purchase) {
	if o.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.SideEffectTTL)
	defer cancel()
	if err := o.ledger.Create(ctx, p); err != nil {
		log.Printf("checkout: ledger create %s failed: %v", p.PaymentID, err)
	}
}

func (o *Orchestrator) setStatus(paymentID, status, lastErr string) {
	if o.ledger == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.SideEffectTTL)
	defer cancel()
	err := o.ledger.UpdateStatus(ctx, paymentID, status, lastErr)
	if err != nil && !errors.Is(err, repository.ErrPurchaseNotFound) {
		log.Printf("checkout: ledger %s -> %s failed: %v", paymentID, status, err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, pp model.PendingPayment, amount int64, source string) {
	if o.events == nil {
		return
	}
	ev := queue.PurchaseConfirmedEvent{
		PaymentID:   pp.PaymentID,
		Protocol:    pp.Protocol,
		AmountCents: amount,
		Source:      source,
		ConfirmedAt: o.opts.Now().UTC().Format(time.RFC3339),
	}
	if rec, err := o.pending.Attendance(ctx, pp.Protocol); err == nil {
		ev.CPF = rec.CPF
		ev.Quantity = rec.Quantity
	}
	pctx, cancel := context.WithTimeout(context.Background(), o.opts.SideEffectTTL)
	defer cancel()
	_ = o.events.PublishPurchaseConfirmed(pctx, ev) // publisher logs its own failures
}

// maskCPF keeps the last two digits only, for logs.
func maskCPF(cpf string) string {
	if len(cpf) < 2 {
		return "***"
	}
	return "*********" + cpf[len(cpf)-2:]
}
