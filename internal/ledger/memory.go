// Package ledger provides the dedup ledger implementations behind
// types.Ledger: an in-process map for the default configuration and a
// PostgreSQL table when durability across restarts is wanted.
//
// The ledger is correctness-critical only in one direction: an ID must never
// be marked before its alert was delivered. Losing the ledger entirely is
// tolerable (the upstream accounts are authoritative and re-queryable), so
// persistence stays optional.
package ledger

import (
	"context"
	"sync"
	"time"

	"payrelay/internal/types"
)

// Compile-time assertion that Memory satisfies types.Ledger.
var _ types.Ledger = (*Memory)(nil)

// Memory is an in-process ledger. Entries survive for the process lifetime
// unless pruned by age. Safe for concurrent use by independent polling loops.
type Memory struct {
	mu      sync.Mutex
	entries map[string]time.Time
	clock   types.Clock
}

// NewMemory creates an empty in-process ledger.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]time.Time),
		clock:   types.RealClock{},
	}
}

// SetClock overrides the clock for testing.
func (m *Memory) SetClock(c types.Clock) {
	m.clock = c
}

// key joins source and id with a separator that cannot occur in either.
func key(source, id string) string {
	return source + "\x00" + id
}

// Seen reports whether the (source, id) pair has already been alerted.
func (m *Memory) Seen(_ context.Context, source, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key(source, id)]
	return ok, nil
}

// Mark records the (source, id) pair as alerted. Re-marking is a no-op.
func (m *Memory) Mark(_ context.Context, source, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(source, id)
	if _, ok := m.entries[k]; !ok {
		m.entries[k] = m.clock.Now()
	}
	return nil
}

// Prune removes entries marked before the cutoff and returns how many were
// removed.
func (m *Memory) Prune(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, markedAt := range m.entries {
		if markedAt.Before(cutoff) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed, nil
}
