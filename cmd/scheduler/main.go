/**
 * @description
 * Entry point for the FDR scheduler. This is a non-HTTP, long-running process
 * that triggers the maturity sweep and the expiry notices on cron schedules
 * by calling the FDR API's internal endpoints.
 */
package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/procura/fdr-service/internal/config"
	"github.com/procura/fdr-service/internal/scheduler"
	"github.com/procura/fdr-service/pkg/fdrclient"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadSchedulerConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	client := fdrclient.NewClient(cfg.FDRServiceURL, cfg.InternalAPIKey)
	jobs := scheduler.NewJobs(client, logger, *cfg)
	cronScheduler := scheduler.NewScheduler(jobs, logger, *cfg)
	if err := cronScheduler.Register(); err != nil {
		logger.Error("failed to register jobs", "error", err)
		os.Exit(1)
	}

	cronScheduler.Start()
	logger.Info("scheduler started", "timezone", cfg.Location.String())

	// Wait for termination signal to gracefully shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping scheduler")
	stopCtx := cronScheduler.Stop()
	<-stopCtx.Done()
	logger.Info("scheduler stopped gracefully")
}
