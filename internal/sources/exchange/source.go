// Package exchange polls a crypto exchange account for settled inbound
// payments: on-chain deposits that reached success status and completed
// P2P buy orders. Each poll looks back over a fixed window; the dedup
// ledger keeps overlapping windows from producing duplicate alerts.
package exchange

import (
	"context"
	"log/slog"
	"time"

	"payrelay/internal/config"
	"payrelay/internal/external"
	"payrelay/internal/types"
)

// SourceName identifies this source in logs and the dedup ledger.
const SourceName = "exchange"

// exchangeAPI is the subset of the exchange client the source needs.
type exchangeAPI interface {
	DepositHistory(ctx context.Context, since time.Time) ([]external.Deposit, error)
	CompletedP2POrders(ctx context.Context, since time.Time) ([]external.P2POrder, error)
}

// Source polls the exchange account and emits payment events.
type Source struct {
	client exchangeAPI
	cfg    config.ExchangeConfig
	logger *slog.Logger
	clock  types.Clock
}

var _ types.Source = (*Source)(nil)

// NewSource creates an exchange Source.
func NewSource(client *external.ExchangeClient, cfg config.ExchangeConfig, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		client: client,
		cfg:    cfg,
		logger: logger,
		clock:  types.RealClock{},
	}
}

// SetClock overrides the clock. Intended for tests.
func (s *Source) SetClock(c types.Clock) { s.clock = c }

func (s *Source) Name() string { return SourceName }

func (s *Source) Enabled() bool { return s.cfg.Enabled() }

func (s *Source) Interval() time.Duration { return s.cfg.PollInterval }

// Poll fetches successful deposits and completed P2P buy orders within the
// lookback window. Deposit events are keyed by transaction ID, P2P events
// by order number, so repeated observations of the same settlement are
// collapsed by the ledger.
func (s *Source) Poll(ctx context.Context) ([]types.PaymentEvent, error) {
	since := s.clock.Now().Add(-s.cfg.Lookback)
	var events []types.PaymentEvent

	deposits, err := s.client.DepositHistory(ctx, since)
	if err != nil {
		return nil, err
	}
	for _, d := range deposits {
		events = append(events, depositEvent(d))
	}

	orders, err := s.client.CompletedP2POrders(ctx, since)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		events = append(events, p2pEvent(o))
	}

	s.logger.Debug("exchange poll complete",
		"deposits", len(deposits),
		"p2p_orders", len(orders),
	)
	return events, nil
}

func depositEvent(d external.Deposit) types.PaymentEvent {
	return types.PaymentEvent{
		ID:       "deposit:" + d.TxID,
		Kind:     types.EventKindDeposit,
		Amount:   d.Amount,
		Currency: d.Coin,
		Detail:   d.Network,
		Occurred: time.UnixMilli(d.InsertTime).UTC(),
		Extra: map[string]string{
			"tx_id": d.TxID,
		},
	}
}

func p2pEvent(o external.P2POrder) types.PaymentEvent {
	return types.PaymentEvent{
		ID:       "p2p:" + o.OrderNumber,
		Kind:     types.EventKindP2POrder,
		Amount:   o.TotalPrice,
		Currency: o.Fiat,
		Detail:   o.Amount + " " + o.Asset,
		Occurred: time.UnixMilli(o.CreateTime).UTC(),
		Extra: map[string]string{
			"order_number": o.OrderNumber,
		},
	}
}
