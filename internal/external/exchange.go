package external

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"payrelay/internal/config"
	"payrelay/internal/types"
)

// exchangeAPIBase is the default exchange REST API base URL (Binance-compatible).
// Overridable in tests via ExchangeConfig.BaseURL.
const exchangeAPIBase = "https://api.binance.com"

// depositStatusSuccess is the deposit history status value for a credited
// deposit. Pending (0) and rejected (6) records are not alert-worthy.
const depositStatusSuccess = 1

// p2pOrderStatusCompleted marks a settled peer-to-peer trade order.
const p2pOrderStatusCompleted = "COMPLETED"

// exchangeMaxErrorBody limits how much of an error response body is read
// for error messages.
const exchangeMaxErrorBody = 4096

// Deposit is one record from the deposit history endpoint.
type Deposit struct {
	Amount     string `json:"amount"`
	Coin       string `json:"coin"`
	Network    string `json:"network"`
	Status     int    `json:"status"`
	TxID       string `json:"txId"`
	InsertTime int64  `json:"insertTime"` // unix millis
}

// P2POrder is one record from the C2C order history endpoint.
type P2POrder struct {
	OrderNumber string `json:"orderNumber"`
	Asset       string `json:"asset"`
	Fiat        string `json:"fiat"`
	Amount      string `json:"amount"`     // crypto amount
	TotalPrice  string `json:"totalPrice"` // fiat amount
	OrderStatus string `json:"orderStatus"`
	CreateTime  int64  `json:"createTime"` // unix millis
}

// p2pOrderHistoryResponse is the envelope the C2C endpoint wraps its
// records in.
type p2pOrderHistoryResponse struct {
	Code    string     `json:"code"`
	Message string     `json:"message"`
	Data    []P2POrder `json:"data"`
}

// ExchangeClient talks to a Binance-compatible account REST API using
// HMAC-SHA256 signed queries. Every signed request carries the full query
// string digest in a trailing "signature" parameter and authenticates via
// the X-MBX-APIKEY header.
type ExchangeClient struct {
	base    *BaseClient
	apiKey  string
	secret  types.SecretString
	baseURL string
	logger  *slog.Logger
	clock   types.Clock
}

// NewExchangeClient creates an ExchangeClient from configuration.
func NewExchangeClient(cfg config.ExchangeConfig, logger *slog.Logger) *ExchangeClient {
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		&http.Client{Timeout: 15 * time.Second},
		"exchange",
		DefaultRetryPolicy(),
		"payrelay/1.0",
	)

	return newExchangeClient(base, cfg, logger)
}

// NewExchangeClientWithBase creates an ExchangeClient with a pre-configured
// BaseClient, for testing against an httptest server.
func NewExchangeClientWithBase(base *BaseClient, cfg config.ExchangeConfig, logger *slog.Logger) *ExchangeClient {
	if logger == nil {
		logger = slog.Default()
	}
	return newExchangeClient(base, cfg, logger)
}

func newExchangeClient(base *BaseClient, cfg config.ExchangeConfig, logger *slog.Logger) *ExchangeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = exchangeAPIBase
	}
	return &ExchangeClient{
		base:    base,
		apiKey:  cfg.APIKey,
		secret:  cfg.APISecret,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
		clock:   types.RealClock{},
	}
}

// SetClock overrides the clock for testing.
func (e *ExchangeClient) SetClock(c types.Clock) {
	e.clock = c
}

// DepositHistory returns credited deposits inserted since the given time.
// Pending and rejected deposits are filtered out before returning.
func (e *ExchangeClient) DepositHistory(ctx context.Context, since time.Time) ([]Deposit, error) {
	params := url.Values{}
	params.Set("startTime", strconv.FormatInt(since.UnixMilli(), 10))

	body, err := e.signedGet(ctx, "/sapi/v1/capital/deposit/hisrec", params)
	if err != nil {
		return nil, err
	}

	var deposits []Deposit
	if err := json.Unmarshal(body, &deposits); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamExchange,
			"failed to decode deposit history response",
			err,
		)
	}

	credited := deposits[:0]
	for _, d := range deposits {
		if d.Status == depositStatusSuccess {
			credited = append(credited, d)
		}
	}
	return credited, nil
}

// CompletedP2POrders returns settled buy-side peer-to-peer trade orders
// created since the given time.
func (e *ExchangeClient) CompletedP2POrders(ctx context.Context, since time.Time) ([]P2POrder, error) {
	params := url.Values{}
	params.Set("tradeType", "BUY")
	params.Set("startTimestamp", strconv.FormatInt(since.UnixMilli(), 10))

	body, err := e.signedGet(ctx, "/sapi/v1/c2c/orderMatch/listUserOrderHistory", params)
	if err != nil {
		return nil, err
	}

	var resp p2pOrderHistoryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamExchange,
			"failed to decode order history response",
			err,
		)
	}

	completed := make([]P2POrder, 0, len(resp.Data))
	for _, o := range resp.Data {
		if o.OrderStatus == p2pOrderStatusCompleted {
			completed = append(completed, o)
		}
	}
	return completed, nil
}

// signedGet executes an authenticated GET against the given path. The
// signature is an HMAC-SHA256 hex digest of the final query string
// (including the timestamp), keyed by the API secret -- the outbound mirror
// of the inbound webhook verification scheme.
func (e *ExchangeClient) signedGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("timestamp", strconv.FormatInt(e.clock.Now().UnixMilli(), 10))

	query := params.Encode()
	mac := hmac.New(sha256.New, []byte(e.secret.Unmask()))
	mac.Write([]byte(query))
	query += "&signature=" + hex.EncodeToString(mac.Sum(nil))

	reqURL := e.baseURL + path + "?" + query
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to build exchange request",
			err,
		)
	}
	req.Header.Set("X-MBX-APIKEY", e.apiKey)

	resp, err := e.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, exchangeMaxErrorBody))
		return nil, types.NewAppError(
			types.ErrCodeUpstreamExchange,
			fmt.Sprintf("exchange returned %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody))),
			nil,
		)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamExchange,
			"failed to read exchange response",
			err,
		)
	}
	return body, nil
}
