package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"conti/internal/cli"
	apphttp "conti/internal/http"
	"conti/internal/middleware/ratelimit"
	"conti/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	res := cli.InitBackend(context.Background(), logger, cfg)

	var publisher services.EventPublisher
	amqpClient := cli.InitAMQP(logger, cfg)
	if amqpClient != nil {
		publisher = amqpClient
	}

	svc := cli.BuildServices(res.Backend, publisher, cfg)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Groups:      svc.Groups,
		Expenses:    svc.Expenses,
		Settlements: svc.Settlements,
		Balances:    svc.Balances,
		Ready:       res.Ping,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		Logger: logger,
	})
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		svc.Cache.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if res.Cleanup != nil {
			if err := res.Cleanup(); err != nil {
				logger.Error("Backend cleanup error", "error", err)
			}
		}
	})

	logger.Info("Starting conti server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
