package mmio

import (
	"context"
	"fmt"

	"github.com/ardnew/mcuhal/pkg"
)

// Wait spins until cond returns true or ctx is done. The returned error
// wraps both [pkg.ErrTimeout] and the context error.
func Wait(ctx context.Context, cond func() bool) error {
	done := ctx.Done()
	for !cond() {
		select {
		case <-done:
			return fmt.Errorf("%w: %w", pkg.ErrTimeout, ctx.Err())
		default:
		}
	}
	return nil
}

// WaitBits spins until every bit in mask is set in r.
func WaitBits(ctx context.Context, r *U32, mask uint32) error {
	return Wait(ctx, func() bool { return r.HasBits(mask) })
}

// WaitClear spins until every bit in mask is clear in r.
func WaitClear(ctx context.Context, r *U32, mask uint32) error {
	return Wait(ctx, func() bool { return !r.HasAny(mask) })
}
