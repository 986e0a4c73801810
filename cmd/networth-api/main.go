package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"networth/internal/cache"
	"networth/internal/cli"
	apphttp "networth/internal/http"
	"networth/internal/log"
	"networth/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	logger.Info("Starting networth-api", "port", cfg.Port, "driver", cfg.DBDriver)

	store := cli.OpenStore(context.Background(), logger, cfg)
	defer store.Close()

	// Ledger events are optional; the API works without a broker
	var publisher services.EventPublisher
	amqpClient := cli.ConnectAMQP(logger, cfg)
	if amqpClient != nil {
		publisher = amqpClient
		defer amqpClient.Close()
	}

	cacheManager := cache.NewManager()
	var summaries cache.Cache[services.DashboardSummary]
	if cfg.DashboardCacheTTL > 0 && cfg.DashboardCacheSize > 0 {
		lru := cache.NewLRUCache[services.DashboardSummary](cfg.DashboardCacheSize, cfg.DashboardCacheTTL)
		cacheManager.Register("dashboard", lru)
		summaries = lru
	}
	cacheManager.StartCleanup(5 * time.Minute)

	dashboard := services.NewDashboardService(store, summaries)
	transactions := services.NewTransactionService(store, publisher, services.WithCommitHook(dashboard.Invalidate))

	srv := apphttp.NewServer(apphttp.ServerConfig{
		Addr:               ":" + cfg.Port,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
	}, apphttp.Deps{
		Transactions: transactions,
		Dashboard:    dashboard,
		Intake:       services.NewIntakeRouter(transactions),
		Directory:    store,
		Health:       store,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		for name, st := range cacheManager.Stats() {
			logger.Info("Cache totals", "cache", name, "hits", st.Hits, "misses", st.Misses, "evictions", st.Evictions)
		}
		requests, limits := srv.Metrics()
		logger.Info("Request totals",
			"requests", requests.TotalRequests,
			"client_errors", requests.ClientErrors,
			"server_errors", requests.ErrorResponses,
			"slow", requests.SlowRequests,
			"avg_response_us", requests.AverageResponseTime,
			"rate_limited", limits.TotalHits)
	})

	logger.Info("HTTP server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
