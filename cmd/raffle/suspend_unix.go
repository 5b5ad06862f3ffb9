//go:build unix

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/pix-raffle-checkout/internal/buyer"
)

// watchSuspend treats a stopped process (Ctrl-Z, then fg) the way a browser
// treats a hidden tab.  A heartbeat marks the last moment the process was
// running; SIGCONT, or a heartbeat arriving late, reports the span since
// then to the tracker.
func watchSuspend(ctx context.Context, t *buyer.VisibilityTracker) {
	cont := make(chan os.Signal, 1)
	signal.Notify(cont, syscall.SIGCONT)
	defer signal.Stop(cont)

	const every = 500 * time.Millisecond
	last := time.Now()
	beat := time.NewTicker(every)
	defer beat.Stop()

	resumed := func(now time.Time) {
		t.Hidden(last)
		t.Visible(now)
		last = time.Now() // the prompt may have blocked
	}
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-beat.C:
			if now.Sub(last) > 4*every {
				resumed(now)
			} else {
				last = now
			}
		case <-cont:
			resumed(time.Now())
		}
	}
}
