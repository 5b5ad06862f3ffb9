package buyer

import (
	"testing"
	"time"
)

func TestAbandonPromptThreshold(t *testing.T) {
	cases := []struct {
		away    time.Duration
		prompts int
	}{
		{29 * time.Second, 0},
		{30 * time.Second, 0},
		{31 * time.Second, 1},
	}
	for _, c := range cases {
		prompts := 0
		v := NewVisibilityTracker(30*time.Second, func(time.Duration) bool { prompts++; return false }, nil)
		v.Activate()
		t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		v.Hidden(t0)
		v.Visible(t0.Add(c.away))
		// a second visibility event for the same return must not prompt again
		v.Visible(t0.Add(c.away + time.Second))
		if prompts != c.prompts {
			t.Fatalf("away %s: expected %d prompts, got %d", c.away, c.prompts, prompts)
		}
	}
}

func TestAbandonOnlyAfterConfirmation(t *testing.T) {
	t0 := time.Now()
	abandoned := 0
	answer := false
	v := NewVisibilityTracker(30*time.Second, func(time.Duration) bool { return answer }, func() { abandoned++ })
	v.Activate()

	v.Hidden(t0)
	if !v.Visible(t0.Add(40 * time.Second)) {
		t.Fatalf("expected a prompt")
	}
	if abandoned != 0 {
		t.Fatalf("declined prompt must not abandon")
	}

	answer = true
	v.Hidden(t0.Add(time.Minute))
	v.Visible(t0.Add(2 * time.Minute))
	if abandoned != 1 {
		t.Fatalf("confirmed prompt must abandon once, got %d", abandoned)
	}
}

func TestInactiveTrackerNeverPrompts(t *testing.T) {
	t0 := time.Now()
	v := NewVisibilityTracker(0, func(time.Duration) bool { t.Fatalf("unexpected prompt"); return false }, nil)
	v.Hidden(t0)
	v.Visible(t0.Add(time.Hour))

	v.Activate()
	v.Hidden(t0)
	v.Deactivate()
	v.Visible(t0.Add(time.Hour))
}
