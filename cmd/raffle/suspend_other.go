//go:build !unix

package main

import (
	"context"

	"github.com/iliyamo/pix-raffle-checkout/internal/buyer"
)

// watchSuspend is a no-op where job control signals do not exist.
func watchSuspend(ctx context.Context, _ *buyer.VisibilityTracker) { <-ctx.Done() }
