package main

import (
	"context"
	"errors"
	"os"
	"time"

	"conti/internal/cli"
	gsheet "conti/internal/sheets/google"
	"conti/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	logger.Info("Starting conti-worker")

	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("conti-worker requires GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}
	if cfg.DataBackend == "memory" {
		logger.Warn("Memory backend only sees this process's data; use sqlite to share the ledger with conti")
	}

	res := cli.InitBackend(context.Background(), logger, cfg)

	exporter, err := gsheet.NewFromEnv(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	// The worker never publishes, it only consumes.
	svc := cli.BuildServices(res.Backend, nil, cfg)
	reports := worker.NewReportWorker(res.Backend, svc.Balances, exporter, cfg.ExportConcurrency)

	amqpClient := cli.InitAMQP(logger, cfg)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
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

	// Catch up on anything missed while the worker was down.
	logger.Info("Performing startup export...")
	if n, err := reports.ExportAll(ctx); err != nil {
		logger.Error("Startup export failed", "error", err, "exported", n)
	}

	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeLedgerEvents(ctx, reports.HandleLedgerEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	} else {
		logger.Info("Skipping AMQP consumption, relying on periodic export")
	}

	go reports.Run(ctx, cfg.ExportInterval)

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
