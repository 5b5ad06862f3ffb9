package buyer

import (
	"sync"
	"time"
)

// DefaultAbandonThreshold is how long the buyer may be away before being
// asked whether to give up the purchase.
const DefaultAbandonThreshold = 30 * time.Second

// VisibilityTracker watches hidden/visible transitions of the client.  When
// the client comes back after being hidden for longer than the threshold
// it asks Confirm once; only a positive answer abandons the purchase.
type VisibilityTracker struct {
	threshold time.Duration
	confirm   func(away time.Duration) bool
	abandon   func()

	mu       sync.Mutex
	hiddenAt time.Time
	active   bool
}

// NewVisibilityTracker returns an inactive tracker.  confirm asks the buyer;
// abandon runs when they agree.
func NewVisibilityTracker(threshold time.Duration, confirm func(away time.Duration) bool, abandon func()) *VisibilityTracker {
	if threshold <= 0 {
		threshold = DefaultAbandonThreshold
	}
	return &VisibilityTracker{threshold: threshold, confirm: confirm, abandon: abandon}
}

// Activate arms the tracker while a payment is being awaited.
func (v *VisibilityTracker) Activate() {
	v.mu.Lock()
	v.active, v.hiddenAt = true, time.Time{}
	v.mu.Unlock()
}

// Deactivate disarms it once the payment reached a terminal state.
func (v *VisibilityTracker) Deactivate() {
	v.mu.Lock()
	v.active, v.hiddenAt = false, time.Time{}
	v.mu.Unlock()
}

// Hidden records that the client went to the background at at.
func (v *VisibilityTracker) Hidden(at time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.active && v.hiddenAt.IsZero() {
		v.hiddenAt = at
	}
}

// Visible records the return to the foreground and reports whether the
// buyer was prompted.  A hidden span prompts at most once.
func (v *VisibilityTracker) Visible(at time.Time) bool {
	v.mu.Lock()
	hiddenAt := v.hiddenAt
	v.hiddenAt = time.Time{}
	active := v.active
	v.mu.Unlock()

	if !active || hiddenAt.IsZero() {
		return false
	}
	away := at.Sub(hiddenAt)
	if away <= v.threshold {
		return false
	}
	if v.confirm != nil && v.confirm(away) && v.abandon != nil {
		v.abandon()
	}
	return true
}
