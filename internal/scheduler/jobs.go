/**
 * @description
 * Scheduled job implementations for the FDR scheduler. Jobs call the FDR
 * API's internal endpoints; the API owns the data.
 */
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/procura/fdr-service/internal/config"
)

const jobTimeout = 2 * time.Minute

// FDRClient defines the internal FDR API operations the jobs trigger.
type FDRClient interface {
	RunMaturitySweep(ctx context.Context) (int64, error)
	NotifyExpiring(ctx context.Context, days int) (int, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	client FDRClient
	logger *slog.Logger
	config config.SchedulerConfig
}

// NewJobs creates a new Jobs runner.
func NewJobs(client FDRClient, logger *slog.Logger, cfg config.SchedulerConfig) *Jobs {
	return &Jobs{
		client: client,
		logger: logger,
		config: cfg,
	}
}

// MaturitySweep completes every RUNNING FDR whose maturity date has passed.
func (j *Jobs) MaturitySweep() {
	j.logger.Info("starting maturity sweep job")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	updated, err := j.client.RunMaturitySweep(ctx)
	if err != nil {
		j.logger.Error("failed to run maturity sweep", "error", err)
		return
	}

	j.logger.Info("maturity sweep job finished", "updated", updated)
}

// ExpiryNotice publishes a notice for each FDR maturing within the configured window.
func (j *Jobs) ExpiryNotice() {
	j.logger.Info("starting expiry notice job", "days", j.config.ExpiryNoticeDays)
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	notified, err := j.client.NotifyExpiring(ctx, j.config.ExpiryNoticeDays)
	if err != nil {
		j.logger.Error("failed to send expiry notices", "error", err)
		return
	}

	j.logger.Info("expiry notice job finished", "notified", notified)
}
