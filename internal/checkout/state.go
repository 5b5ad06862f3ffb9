package checkout

import (
	"fmt"

	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

// State is a step of the purchase lifecycle.
type State string

const (
	StateIdle                 State = "idle"
	StateAttendanceRegistered State = "attendance_registered"
	StateChargeCreated        State = "charge_created"
	StatePolling              State = "polling"
	StatePaid                 State = "paid"
	StateConfirming           State = "confirming"
	StateCompleted            State = "completed"
	StateExpired              State = "expired"
	StateAbandoned            State = "abandoned"
)

// transitions lists the states reachable in one step.  Completed is only
// reachable through Paid -> Confirming.  Once paid, a purchase can no
// longer be abandoned.
var transitions = map[State][]State{
	StateIdle:                 {StateAttendanceRegistered, StateIdle},
	StateAttendanceRegistered: {StateChargeCreated, StateAbandoned},
	StateChargeCreated:        {StatePolling, StateAbandoned},
	StatePolling:              {StatePolling, StatePaid, StateExpired, StateAbandoned},
	StatePaid:                 {StateConfirming},
	StateConfirming:           {StateCompleted},
}

// Next returns the states reachable from s in one step.
func Next(s State) []State {
	return append([]State(nil), transitions[s]...)
}

// CanTransition reports whether to is reachable from from in one step.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s State) Terminal() bool { return len(transitions[s]) == 0 }

// Session is the explicit state of one checkout attempt.  It is a value:
// every transition returns a new Session and nothing is kept in package
// state.
type Session struct {
	State      State                  `json:"state"`
	Order      Order                  `json:"order"`
	Attendance model.AttendanceRecord `json:"attendance"`
	Charge     model.PaymentCharge    `json:"charge"`
}

// Advance returns a copy of s moved to the given state, or an error when
// the step is not allowed.
func (s Session) Advance(to State) (Session, error) {
	from := s.State
	if from == "" {
		from = StateIdle
	}
	if !CanTransition(from, to) {
		return s, fmt.Errorf("checkout: illegal transition %s -> %s", from, to)
	}
	s.State = to
	return s, nil
}

// stateForCharge maps a gateway status onto the session state a poller
// should be in after observing it.
func stateForCharge(status model.ChargeStatus) State {
	switch {
	case status.IsPaid():
		return StatePaid
	case status == model.ChargeExpired || status == model.ChargeFailed:
		return StateExpired
	default:
		return StatePolling
	}
}
