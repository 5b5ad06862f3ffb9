package checkout

import "testing"

func reachable(from State) map[State]bool {
	seen := map[State]bool{from: true}
	queue := []State{from}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, n := range Next(s) {
			if !seen[n] {
				seen[n] = true
				queue = append(queue, n)
			}
		}
	}
	return seen
}

func TestEveryStateReachableFromIdle(t *testing.T) {
	seen := reachable(StateIdle)
	for _, s := range []State{
		StateAttendanceRegistered, StateChargeCreated, StatePolling, StatePaid,
		StateConfirming, StateCompleted, StateExpired, StateAbandoned,
	} {
		if !seen[s] {
			t.Errorf("%s not reachable from idle", s)
		}
	}
}

func TestCompletedOnlyThroughConfirming(t *testing.T) {
	for s, next := range transitions {
		for _, n := range next {
			if n == StateCompleted && s != StateConfirming {
				t.Errorf("%s -> completed should not be allowed", s)
			}
		}
	}
	if !CanTransition(StatePaid, StateConfirming) || CanTransition(StatePaid, StateCompleted) {
		t.Fatal("paid must go through confirming")
	}
}

func TestNoAbandonAfterPaid(t *testing.T) {
	for _, s := range []State{StatePaid, StateConfirming, StateCompleted} {
		if CanTransition(s, StateAbandoned) {
			t.Errorf("%s -> abandoned should not be allowed", s)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []State{StateCompleted, StateExpired, StateAbandoned} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if StatePolling.Terminal() {
		t.Fatal("polling is not terminal")
	}
}

func TestAdvanceRejectsIllegalStep(t *testing.T) {
	var s Session
	if _, err := s.Advance(StatePaid); err == nil {
		t.Fatal("idle -> paid should fail")
	}
	s, err := s.Advance(StateAttendanceRegistered)
	if err != nil {
		t.Fatal(err)
	}
	if s.State != StateAttendanceRegistered {
		t.Fatalf("state = %s", s.State)
	}
	// Next returns a copy.
	n := Next(StatePolling)
	n[0] = StateCompleted
	if CanTransition(StatePolling, StateCompleted) {
		t.Fatal("Next leaked the transition table")
	}
}
