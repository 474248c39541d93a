package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payrelay/internal/ledger"
	"payrelay/internal/types"
)

type fakeSource struct {
	name     string
	enabled  bool
	interval time.Duration
	poll     func(ctx context.Context) ([]types.PaymentEvent, error)
}

func (s *fakeSource) Name() string            { return s.name }
func (s *fakeSource) Enabled() bool           { return s.enabled }
func (s *fakeSource) Interval() time.Duration { return s.interval }
func (s *fakeSource) Poll(ctx context.Context) ([]types.PaymentEvent, error) {
	return s.poll(ctx)
}
func (s *fakeSource) Format(ev types.PaymentEvent) string { return "alert:" + ev.ID }

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []string
	result bool
}

func (n *fakeNotifier) Send(_ context.Context, text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	return n.result
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func event(id string) types.PaymentEvent {
	return types.PaymentEvent{ID: id, Kind: types.EventKindDeposit}
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPollOnce_DeliversAndDedups(t *testing.T) {
	notifier := &fakeNotifier{result: true}
	led := ledger.NewMemory()
	src := &fakeSource{
		name:    "exchange",
		enabled: true,
		poll: func(context.Context) ([]types.PaymentEvent, error) {
			return []types.PaymentEvent{event("tx-1"), event("tx-2")}, nil
		},
	}
	s := NewScheduler([]types.Source{src}, notifier, led, 0, testLogger())

	s.pollOnce(context.Background(), src, testLogger())
	assert.Equal(t, 2, notifier.count())

	// The same events on the next cycle must not alert again.
	s.pollOnce(context.Background(), src, testLogger())
	assert.Equal(t, 2, notifier.count())
}

func TestPollOnce_FailedDeliveryRetriesNextCycle(t *testing.T) {
	notifier := &fakeNotifier{result: false}
	led := ledger.NewMemory()
	src := &fakeSource{
		name:    "exchange",
		enabled: true,
		poll: func(context.Context) ([]types.PaymentEvent, error) {
			return []types.PaymentEvent{event("tx-1")}, nil
		},
	}
	s := NewScheduler([]types.Source{src}, notifier, led, 0, testLogger())

	s.pollOnce(context.Background(), src, testLogger())
	require.Equal(t, 1, notifier.count())

	seen, err := led.Seen(context.Background(), "exchange", "tx-1")
	require.NoError(t, err)
	assert.False(t, seen, "failed delivery must not be marked")

	// Delivery recovers; the event is retried and then marked.
	notifier.result = true
	s.pollOnce(context.Background(), src, testLogger())
	assert.Equal(t, 2, notifier.count())

	s.pollOnce(context.Background(), src, testLogger())
	assert.Equal(t, 2, notifier.count())
}

func TestPollOnce_PollErrorIsContained(t *testing.T) {
	notifier := &fakeNotifier{result: true}
	src := &fakeSource{
		name:    "exchange",
		enabled: true,
		poll: func(context.Context) ([]types.PaymentEvent, error) {
			return nil, errors.New("upstream down")
		},
	}
	s := NewScheduler([]types.Source{src}, notifier, ledger.NewMemory(), 0, testLogger())

	s.pollOnce(context.Background(), src, testLogger())
	assert.Zero(t, notifier.count())
}

func TestPollOnce_PanicIsContained(t *testing.T) {
	notifier := &fakeNotifier{result: true}
	src := &fakeSource{
		name:    "exchange",
		enabled: true,
		poll: func(context.Context) ([]types.PaymentEvent, error) {
			panic("poll exploded")
		},
	}
	s := NewScheduler([]types.Source{src}, notifier, ledger.NewMemory(), 0, testLogger())

	assert.NotPanics(t, func() {
		s.pollOnce(context.Background(), src, testLogger())
	})
}

func TestNewScheduler_SkipsDisabledSources(t *testing.T) {
	polled := false
	disabled := &fakeSource{
		name:    "mailbox",
		enabled: false,
		poll: func(context.Context) ([]types.PaymentEvent, error) {
			polled = true
			return nil, nil
		},
	}
	s := NewScheduler([]types.Source{disabled}, &fakeNotifier{result: true}, ledger.NewMemory(), 0, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, polled, "disabled source must never be polled")
}

func TestNewScheduler_SkipsNonPositiveInterval(t *testing.T) {
	polled := false
	zeroInterval := &fakeSource{
		name:    "exchange",
		enabled: true,
		poll: func(context.Context) ([]types.PaymentEvent, error) {
			polled = true
			return nil, nil
		},
	}
	s := NewScheduler([]types.Source{zeroInterval}, &fakeNotifier{result: true}, ledger.NewMemory(), 0, testLogger())

	// A zero interval would make the ticker panic and kill the process;
	// the source must be dropped at construction instead.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, polled, "source with invalid interval must never be polled")
}

func TestRun_SurvivesInvalidIntervalAlongsideHealthySource(t *testing.T) {
	notifier := &fakeNotifier{result: true}
	misconfigured := &fakeSource{
		name:    "mailbox",
		enabled: true,
		poll: func(context.Context) ([]types.PaymentEvent, error) {
			return []types.PaymentEvent{event("never")}, nil
		},
	}
	healthy := &fakeSource{
		name:     "exchange",
		enabled:  true,
		interval: 5 * time.Millisecond,
		poll: func(context.Context) ([]types.PaymentEvent, error) {
			return []types.PaymentEvent{event("tx-1")}, nil
		},
	}
	s := NewScheduler([]types.Source{misconfigured, healthy}, notifier, ledger.NewMemory(), 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return notifier.count() >= 1 },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
	assert.Equal(t, []string{"alert:tx-1"}, notifier.sent[:1])
}

func TestRun_FailureIsolation(t *testing.T) {
	notifier := &fakeNotifier{result: true}
	broken := &fakeSource{
		name:     "mailbox",
		enabled:  true,
		interval: 5 * time.Millisecond,
		poll: func(context.Context) ([]types.PaymentEvent, error) {
			panic("mailbox exploded")
		},
	}
	var mu sync.Mutex
	next := 0
	healthy := &fakeSource{
		name:     "exchange",
		enabled:  true,
		interval: 5 * time.Millisecond,
		poll: func(context.Context) ([]types.PaymentEvent, error) {
			mu.Lock()
			defer mu.Unlock()
			next++
			return []types.PaymentEvent{event(string(rune('a' + next)))}, nil
		},
	}
	s := NewScheduler([]types.Source{broken, healthy}, notifier, ledger.NewMemory(), 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	// The healthy source keeps delivering while the broken one panics every
	// cycle.
	require.Eventually(t, func() bool { return notifier.count() >= 3 },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
