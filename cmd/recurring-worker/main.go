package main

import (
	"context"

	"networth/internal/cli"
	"networth/internal/log"
	"networth/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentScheduler)
	logger.Info("Starting recurring-worker",
		"driver", cfg.DBDriver,
		"claim_lease", cfg.RecurringClaimLease,
		"run_on_start", cfg.RecurringRunOnStart)

	store := cli.OpenStore(context.Background(), logger, cfg)
	defer store.Close()

	// Materialized children publish ledger events like any other create
	var publisher services.EventPublisher
	if amqpClient := cli.ConnectAMQP(logger, cfg); amqpClient != nil {
		publisher = amqpClient
		defer amqpClient.Close()
	}

	transactions := services.NewTransactionService(store, publisher)
	processor := services.NewRecurringProcessor(store, transactions, cfg.RecurringClaimLease)

	schedulerCfg := services.DefaultSchedulerConfig()
	schedulerCfg.RunOnStart = cfg.RecurringRunOnStart
	schedulerCfg.RunTimeout = cfg.RecurringRunTimeout
	scheduler := services.NewScheduler(processor, schedulerCfg)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := scheduler.Stop(ctx); err != nil {
			logger.Warn("Scheduler did not stop cleanly", "error", err)
		}
	})

	if err := scheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		return
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Recurring-worker shutdown complete")
}
