package types

import (
	"context"
	"time"
)

// Notifier delivers a rendered alert to the single configured destination.
// Send never panics; on any transport failure it logs and returns false so
// callers can apply their own retry/skip policy. Delivery is fire-and-forget
// beyond the boolean.
type Notifier interface {
	Send(ctx context.Context, text string) bool
}

// Source is a polled external account/feed capable of producing new
// payment-related events (an exchange account, a mailbox).
//
// Enabled is computed once at construction from presence of the required
// credentials; a disabled source stays disabled for the process lifetime.
// Poll returns the currently visible events in upstream order; the scheduler
// applies dedup filtering, so Poll may legitimately return events that were
// already alerted. Format renders one event with the source's own formatter
// and must never panic.
type Source interface {
	Name() string
	Enabled() bool
	Interval() time.Duration
	Poll(ctx context.Context) ([]PaymentEvent, error)
	Format(ev PaymentEvent) string
}

// Ledger is the per-source record of already-alerted event identifiers.
// An ID present in the ledger is never re-alerted; the set only grows, or is
// pruned by age. Implementations must be safe for concurrent use by
// independent polling loops.
type Ledger interface {
	// Seen reports whether the (source, id) pair has already been alerted.
	Seen(ctx context.Context, source, id string) (bool, error)

	// Mark records the (source, id) pair as alerted. Marking an already
	// marked pair is a no-op, not an error.
	Mark(ctx context.Context, source, id string) error

	// Prune removes entries older than the cutoff and returns how many
	// were removed.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }
