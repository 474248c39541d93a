// Package poller drives the payment sources. Each enabled source runs on
// its own ticker loop; a failing or panicking source never takes down the
// others or the process.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"payrelay/internal/types"
)

// pruneInterval is how often the dedup ledger is swept for old entries.
const pruneInterval = time.Hour

// Scheduler runs every enabled source until its context is cancelled.
type Scheduler struct {
	sources   []types.Source
	notifier  types.Notifier
	ledger    types.Ledger
	retention time.Duration
	logger    *slog.Logger
	clock     types.Clock
}

// NewScheduler creates a Scheduler. Disabled sources and sources with a
// non-positive poll interval are filtered out and logged so a missing
// credential or bad interval shows up at startup, not as silence.
func NewScheduler(
	sources []types.Source,
	notifier types.Notifier,
	ledger types.Ledger,
	retention time.Duration,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		notifier:  notifier,
		ledger:    ledger,
		retention: retention,
		logger:    logger,
		clock:     types.RealClock{},
	}
	for _, src := range sources {
		if !src.Enabled() {
			logger.Warn("source disabled, skipping", "source", src.Name())
			continue
		}
		if src.Interval() <= 0 {
			// time.NewTicker panics on a non-positive interval; a
			// misconfigured source must not take the process down.
			logger.Warn("source has invalid poll interval, skipping",
				"source", src.Name(),
				"interval", src.Interval(),
			)
			continue
		}
		s.sources = append(s.sources, src)
	}
	return s
}

// SetClock overrides the clock. Intended for tests.
func (s *Scheduler) SetClock(c types.Clock) { s.clock = c }

// Run blocks until ctx is cancelled. Every source polls once immediately,
// then on its configured interval. Run always returns ctx's error; source
// failures are logged per iteration and never propagate.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	// Block until cancellation even when every source is disabled; the
	// webhook ingress still serves in that configuration.
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	for _, src := range s.sources {
		g.Go(func() error {
			s.runSource(ctx, src)
			return nil
		})
	}

	if s.retention > 0 {
		g.Go(func() error {
			s.runPruner(ctx)
			return nil
		})
	}

	_ = g.Wait()
	return ctx.Err()
}

func (s *Scheduler) runSource(ctx context.Context, src types.Source) {
	logger := s.logger.With("source", src.Name())
	logger.Info("source started", "interval", src.Interval())

	ticker := time.NewTicker(src.Interval())
	defer ticker.Stop()

	s.pollOnce(ctx, src, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info("source stopped")
			return
		case <-ticker.C:
			s.pollOnce(ctx, src, logger)
		}
	}
}

// pollOnce runs a single poll-and-relay cycle. Events already recorded in
// the ledger are skipped; an event is recorded only after the notifier
// accepted it, so a failed delivery is retried on the next cycle.
func (s *Scheduler) pollOnce(ctx context.Context, src types.Source, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("source poll panicked",
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()

	events, err := src.Poll(ctx)
	if err != nil {
		logger.Error("poll failed", "error", err)
		return
	}

	for _, ev := range events {
		seen, err := s.ledger.Seen(ctx, src.Name(), ev.ID)
		if err != nil {
			// Delivery is preferred over strict dedup when the ledger
			// is unreachable.
			logger.Error("ledger lookup failed", "event_id", ev.ID, "error", err)
		}
		if seen {
			continue
		}

		if !s.notifier.Send(ctx, src.Format(ev)) {
			logger.Warn("delivery failed, will retry next cycle", "event_id", ev.ID)
			continue
		}

		if err := s.ledger.Mark(ctx, src.Name(), ev.ID); err != nil {
			logger.Error("ledger mark failed", "event_id", ev.ID, "error", err)
			continue
		}
		logger.Info("event relayed", "event_id", ev.ID, "kind", ev.Kind)
	}
}

func (s *Scheduler) runPruner(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := s.clock.Now().Add(-s.retention)
			removed, err := s.ledger.Prune(ctx, cutoff)
			if err != nil {
				s.logger.Error("ledger prune failed", "error", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("ledger pruned", "removed", removed)
			}
		}
	}
}
