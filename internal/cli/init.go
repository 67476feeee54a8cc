// Package cli provides common CLI initialization utilities shared by
// cmd/conti and cmd/conti-worker.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"conti/internal/amqp"
	"conti/internal/backend"
	"conti/internal/cache"
	"conti/internal/config"
	"conti/internal/core"
	applog "conti/internal/log"
	"conti/internal/services"
)

// SetupLogger initializes structured logging and sets it as the default
// logger. Unknown levels fall back to info.
func SetupLogger(level, format string) *slog.Logger {
	lvl, err := applog.ParseLevel(level)
	logger := slog.New(applog.NewHandler(os.Stdout, format, lvl))
	slog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info log level", "error", err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration, sets up logging from it and
// validates it. Exits the process on validation failure.
func LoadAndValidateConfig() (*config.Config, *slog.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitBackend creates the configured storage backend.
// Returns the backend or exits the process on failure.
func InitBackend(ctx context.Context, logger *slog.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", bcfg.Type)
		os.Exit(1)
	}
	return res
}

// InitAMQP connects to the broker when one is configured. A nil client
// means events are not published.
func InitAMQP(logger *slog.Logger, cfg *config.Config) *amqp.Client {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP not configured, ledger events disabled")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	logger.Info("Initialized AMQP client", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// Services bundles the application services built on one backend.
type Services struct {
	Groups      *services.GroupService
	Expenses    *services.ExpenseService
	Settlements *services.SettlementService
	Balances    *services.BalanceService
	// Cache must be stopped on shutdown.
	Cache *cache.Manager
}

// BuildServices wires the services over store. publisher may be nil.
func BuildServices(store backend.Backend, publisher services.EventPublisher, cfg *config.Config) Services {
	manager := cache.NewManager()
	var reports *cache.LRUCache[core.GroupID, core.GroupReport]
	if cfg.CacheEnabled() {
		reports = cache.NewLRUCache[core.GroupID, core.GroupReport](cfg.BalanceCacheSize, cfg.BalanceCacheTTL)
		manager.Register(reports)
		manager.StartCleanup(cfg.BalanceCacheTTL)
	}
	balances := services.NewBalanceService(store, reports)
	return Services{
		Groups:      services.NewGroupService(store, balances, publisher),
		Expenses:    services.NewExpenseService(store, balances, publisher),
		Settlements: services.NewSettlementService(store, balances, publisher),
		Balances:    balances,
		Cache:       manager,
	}
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that is closed once cleanup has finished.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		finished := make(chan struct{})
		go func() {
			if cleanup != nil {
				cleanup(shutdownCtx)
			}
			close(finished)
		}()

		select {
		case <-finished:
			logger.Info("Shutdown complete")
		case <-shutdownCtx.Done():
			logger.Warn("Shutdown timeout reached")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
