// Package main is the entry point for the payrelay process.
//
// It loads configuration, builds the notification transport, the webhook
// ingress server, and the polling scheduler, then runs the server and the
// scheduler side by side until a shutdown signal arrives.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"payrelay/internal/api/handlers"
	"payrelay/internal/config"
	"payrelay/internal/core"
	"payrelay/internal/external"
	"payrelay/internal/ledger"
	"payrelay/internal/poller"
	exchangesource "payrelay/internal/sources/exchange"
	"payrelay/internal/sources/mailbox"
	"payrelay/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("payrelay starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	if !cfg.GitHub.WebhookSecret.IsSet() {
		logger.Warn("GITHUB_WEBHOOK_SECRET not set, webhook signature verification is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifier := external.NewTelegramClient(cfg.Telegram, logger)

	eventLedger, cleanup, err := buildLedger(ctx, cfg.Ledger, logger)
	if err != nil {
		return fmt.Errorf("initializing ledger: %w", err)
	}
	defer cleanup()

	sources := buildSources(cfg, eventLedger, logger)
	scheduler := poller.NewScheduler(sources, notifier, eventLedger, cfg.Ledger.Retention, logger)

	srv, err := core.NewServer(logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	webhookHandler := handlers.NewGitHubWebhookHandler(
		&external.GitHubVerifier{},
		notifier,
		cfg.GitHub.WebhookSecret,
		logger,
	)
	srv.RouteRegistrars = append(srv.RouteRegistrars, func(r chi.Router) {
		webhookHandler.RegisterRoutes(r)
	})
	srv.MountRoutes()

	if notifier.Send(ctx, "🚀 Payment relay started") {
		logger.Info("startup notification delivered")
	} else {
		logger.Warn("startup notification failed")
	}

	return runUntilShutdown(ctx, cfg, srv, scheduler, logger)
}

// runUntilShutdown runs the HTTP server and the poll scheduler until the
// context is cancelled by a signal, then shuts the server down gracefully.
func runUntilShutdown(
	ctx context.Context,
	cfg *config.Config,
	srv *core.Server,
	scheduler *poller.Scheduler,
	logger *slog.Logger,
) error {
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return scheduler.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("initiating graceful shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("payrelay stopped")
	return nil
}

// buildLedger selects the dedup ledger backend: Postgres when a database
// URL is configured, process memory otherwise.
func buildLedger(ctx context.Context, cfg config.LedgerConfig, logger *slog.Logger) (types.Ledger, func(), error) {
	if !cfg.DatabaseURL.IsSet() {
		logger.Info("using in-memory dedup ledger")
		return ledger.NewMemory(), func() {}, nil
	}

	pg, pool, err := ledger.Connect(ctx, cfg.DatabaseURL.Unmask())
	if err != nil {
		return nil, nil, err
	}
	logger.Info("using postgres dedup ledger")
	return pg, pool.Close, nil
}

// buildSources constructs every polling source. Sources with incomplete
// credentials are still returned; the scheduler logs and skips them.
func buildSources(cfg *config.Config, delivered types.Ledger, logger *slog.Logger) []types.Source {
	exClient := external.NewExchangeClient(cfg.Exchange, logger)
	return []types.Source{
		exchangesource.NewSource(exClient, cfg.Exchange, logger),
		mailbox.NewSource(cfg.Mailbox, delivered, logger),
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
