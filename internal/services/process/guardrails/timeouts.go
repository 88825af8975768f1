// Package guardrails holds time budgets for one input of a process run
package guardrails

import (
	"context"
	"time"
)

// Timeouts is an optional budget bundle for a single input.
// Zero values mean no extra timeout at that level
type Timeouts struct {
	// Input is the overall budget for one archive, retries included
	Input time.Duration

	// Fetch caps opening the archive (download or cache lookup)
	Fetch time.Duration

	// Read caps decoding and routing every record of the archive
	Read time.Duration

	// Ledger caps each ledger write
	Ledger time.Duration
}

// WithInput returns a context limited by the input budget without extending any parent deadline
func WithInput(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Input)
}

// ForFetch returns a sub context for the fetch phase
func ForFetch(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Fetch)
}

// ForRead returns a sub context for the read phase
func ForRead(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Read)
}

// ForLedger returns a sub context for one ledger write
func ForLedger(parent context.Context, t Timeouts) (context.Context, context.CancelFunc) {
	return withChildTimeout(parent, t.Ledger)
}

// Remaining returns the time until the deadline on ctx or zero when none is set or already expired
func Remaining(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
	}
	return 0
}

// withChildTimeout takes the tighter of d and the parent remainder. Zero d only adds cancelation
func withChildTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	if rem := Remaining(parent); rem > 0 && rem < d {
		return context.WithTimeout(parent, rem)
	}
	return context.WithTimeout(parent, d)
}
