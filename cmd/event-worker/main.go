package main

import (
	"context"
	"errors"
	"os"

	"networth/internal/cli"
	"networth/internal/core"
	"networth/internal/log"
	gsheets "networth/internal/sheets/google"
	"networth/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting event-worker", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the event-worker")
		os.Exit(1)
	}

	store := cli.OpenStore(context.Background(), logger, cfg)
	defer store.Close()

	amqpClient := cli.ConnectAMQP(logger, cfg)
	if amqpClient == nil {
		logger.Error("Failed to initialize AMQP client")
		os.Exit(1)
	}
	defer amqpClient.Close()

	hooks := []worker.EventHook{func(ctx context.Context, e core.LedgerEvent) {
		logger.DebugContext(ctx, "Ledger event recorded",
			"event_id", e.ID,
			"event_kind", e.Kind,
			"transaction_id", e.TransactionID)
	}}
	if cfg.SheetsSpreadsheetID != "" {
		journal, err := gsheets.New(context.Background(), gsheets.Options{
			SpreadsheetID:  cfg.SheetsSpreadsheetID,
			JournalSheet:   cfg.SheetsJournalName,
			DashboardSheet: cfg.SheetsDashboardName,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets journal", "error", err)
			os.Exit(1)
		}
		hooks = append(hooks, worker.JournalHook(journal))
		logger.Info("Mirroring ledger events to Google Sheets", "sheet", cfg.SheetsJournalName)
	}

	eventWorker := worker.NewEventWorker(store, hooks...)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(context.Context) {
		recorded, duplicates := eventWorker.Stats()
		logger.Info("Event totals", "recorded", recorded, "duplicates", duplicates)
	})

	err := amqpClient.ConsumeLedgerEvents(ctx, eventWorker.HandleLedgerEvent)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", "error", err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Event-worker shutdown complete")
}
