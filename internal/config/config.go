// Package config defines the global configuration structure for the payrelay
// process. Configuration is loaded once at startup and is immutable thereafter.
// It follows 12-Factor App principles by strictly separating code from
// configuration: every value comes from the environment (optionally seeded
// from a .env file).
//
// Any missing required value or invalid format aborts the process before
// serving (fail fast). Optional per-source credential sets merely disable
// that source with a logged warning.
package config

import (
	"time"

	"payrelay/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the relay.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Server   ServerConfig
	GitHub   GitHubConfig
	Telegram TelegramConfig
	Exchange ExchangeConfig
	Mailbox  MailboxConfig
	Ledger   LedgerConfig
}

// ServerConfig holds the ingress endpoint bind address.
type ServerConfig struct {
	Host string `envconfig:"RELAY_HOST" default:"0.0.0.0"`
	Port string `envconfig:"RELAY_PORT" default:"5000"`
}

// GitHubConfig holds the webhook shared secret. An empty secret disables
// signature enforcement entirely (insecure fallback, logged at startup).
type GitHubConfig struct {
	WebhookSecret SecretString `envconfig:"GITHUB_WEBHOOK_SECRET"`
}

// TelegramConfig holds the notification transport credentials and the single
// destination chat. Both values are required to start.
type TelegramConfig struct {
	BotToken SecretString `envconfig:"TELEGRAM_BOT_TOKEN" validate:"required"`
	ChatID   string       `envconfig:"TELEGRAM_CHAT_ID" validate:"required"`
	// BaseURL override exists for tests; defaults to the public Bot API.
	BaseURL string        `envconfig:"TELEGRAM_API_BASE_URL"`
	Timeout time.Duration `envconfig:"TELEGRAM_TIMEOUT" default:"10s"`
}

// ExchangeConfig holds the exchange account credentials. The source is
// enabled only when both key and secret are present.
type ExchangeConfig struct {
	APIKey       string        `envconfig:"EXCHANGE_API_KEY"`
	APISecret    SecretString  `envconfig:"EXCHANGE_API_SECRET"`
	BaseURL      string        `envconfig:"EXCHANGE_API_BASE_URL"`
	PollInterval time.Duration `envconfig:"EXCHANGE_POLL_INTERVAL" default:"300s"`
	// Lookback bounds how far back each poll queries deposit/order history.
	Lookback time.Duration `envconfig:"EXCHANGE_LOOKBACK" default:"24h"`
}

// Enabled reports whether the exchange source has complete credentials.
func (c ExchangeConfig) Enabled() bool {
	return c.APIKey != "" && c.APISecret.IsSet()
}

// MailboxConfig holds the IMAP account credentials and message filters.
// The source is enabled only when host, user, and password are all present.
type MailboxConfig struct {
	Host         string        `envconfig:"IMAP_HOST"`
	Port         int           `envconfig:"IMAP_PORT" default:"993"`
	User         string        `envconfig:"IMAP_USER"`
	Password     SecretString  `envconfig:"IMAP_PASSWORD"`
	Mailbox      string        `envconfig:"IMAP_MAILBOX" default:"INBOX"`
	PollInterval time.Duration `envconfig:"MAILBOX_POLL_INTERVAL" default:"600s"`

	// SenderFilters narrows which senders are considered payment notices
	// (substring match, case-insensitive). Empty means any sender.
	SenderFilters []string `envconfig:"IMAP_SENDER_FILTERS"`
	// KeywordFilters narrows by subject/body keywords. Empty means the
	// built-in payment keyword set.
	KeywordFilters []string `envconfig:"IMAP_KEYWORD_FILTERS"`
}

// Enabled reports whether the mailbox source has complete credentials.
func (c MailboxConfig) Enabled() bool {
	return c.Host != "" && c.User != "" && c.Password.IsSet()
}

// LedgerConfig selects the dedup ledger backend. With an empty DatabaseURL
// the relay keeps delivered-event IDs in process memory only; the upstream
// accounts remain the authoritative, re-queryable source of truth.
type LedgerConfig struct {
	DatabaseURL SecretString  `envconfig:"LEDGER_DATABASE_URL"`
	Retention   time.Duration `envconfig:"LEDGER_RETENTION" default:"720h"`
}
