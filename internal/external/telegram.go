package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"payrelay/internal/config"
	"payrelay/internal/types"
)

// telegramAPIBase is the default Telegram Bot API base URL.
// Overridable in tests via TelegramConfig.BaseURL.
const telegramAPIBase = "https://api.telegram.org"

// telegramMaxErrorBody limits how much of an error response body is read
// for log messages.
const telegramMaxErrorBody = 4096

// Compile-time assertion that TelegramClient satisfies types.Notifier.
var _ types.Notifier = (*TelegramClient)(nil)

// TelegramClient delivers rendered alerts to a single configured chat via
// the Telegram Bot API sendMessage method, routed through BaseClient for
// circuit breaking and retries.
//
// The bot command surface (/start, /help, /status) is deliberately not
// implemented here; this client is outbound-only.
type TelegramClient struct {
	base    *BaseClient
	token   types.SecretString
	chatID  string
	baseURL string
	logger  *slog.Logger
}

// NewTelegramClient creates a TelegramClient from configuration.
func NewTelegramClient(cfg config.TelegramConfig, logger *slog.Logger) *TelegramClient {
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		&http.Client{Timeout: cfg.Timeout},
		"telegram",
		DefaultRetryPolicy(),
		"payrelay/1.0",
	)

	return newTelegramClient(base, cfg, logger)
}

// NewTelegramClientWithBase creates a TelegramClient with a pre-configured
// BaseClient. This exists for testing against an httptest server with
// retries disabled.
func NewTelegramClientWithBase(base *BaseClient, cfg config.TelegramConfig, logger *slog.Logger) *TelegramClient {
	if logger == nil {
		logger = slog.Default()
	}
	return newTelegramClient(base, cfg, logger)
}

func newTelegramClient(base *BaseClient, cfg config.TelegramConfig, logger *slog.Logger) *TelegramClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = telegramAPIBase
	}
	return &TelegramClient{
		base:    base,
		token:   cfg.BotToken,
		chatID:  cfg.ChatID,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// sendMessageRequest is the Bot API sendMessage payload.
type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// sendMessageResponse is the subset of the Bot API response envelope the
// client inspects. The Bot API reports soft failures as HTTP 200 with
// "ok": false, so the flag must be checked in addition to the status code.
type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers the text to the configured chat as Markdown. It never
// panics; on any transport or API failure it logs at error level and
// returns false so callers can apply their own retry/skip policy.
func (t *TelegramClient) Send(ctx context.Context, text string) bool {
	payload := sendMessageRequest{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: "Markdown",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		t.logger.ErrorContext(ctx, "failed to marshal sendMessage payload",
			"error", err,
		)
		return false
	}

	reqURL := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token.Unmask())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		t.logger.ErrorContext(ctx, "failed to build sendMessage request",
			"error", err,
		)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.base.Do(req)
	if err != nil {
		t.logger.ErrorContext(ctx, "telegram delivery failed",
			"chat_id", t.chatID,
			"error", err,
		)
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, telegramMaxErrorBody))

	var apiResp sendMessageResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil || !apiResp.OK {
		t.logger.ErrorContext(ctx, "telegram rejected message",
			"chat_id", t.chatID,
			"status", resp.StatusCode,
			"description", apiResp.Description,
		)
		return false
	}

	t.logger.InfoContext(ctx, "message sent",
		"chat_id", t.chatID,
	)
	return true
}
