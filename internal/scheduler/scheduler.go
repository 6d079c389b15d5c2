/**
 * @description
 * Cron scheduler setup for the FDR jobs.
 */
package scheduler

import (
	"context"
	"log/slog"

	"github.com/procura/fdr-service/internal/config"
	"github.com/robfig/cron/v3"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   *Jobs
	logger *slog.Logger
	config config.SchedulerConfig
}

// NewScheduler creates a new scheduler instance. Schedules are evaluated in
// the configured timezone.
func NewScheduler(jobs *Jobs, logger *slog.Logger, cfg config.SchedulerConfig) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	opts := []cron.Option{cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))}
	if cfg.Location != nil {
		opts = append(opts, cron.WithLocation(cfg.Location))
	}

	return &Scheduler{
		cron:   cron.New(opts...),
		jobs:   jobs,
		logger: logger,
		config: cfg,
	}
}

// Register adds the jobs to the cron table. An invalid schedule is an error.
func (s *Scheduler) Register() error {
	if _, err := s.cron.AddFunc(s.config.MaturitySweepSchedule, s.jobs.MaturitySweep); err != nil {
		s.logger.Error("failed to schedule maturity sweep job", "error", err)
		return err
	}
	s.logger.Info("scheduled maturity sweep job", "schedule", s.config.MaturitySweepSchedule)

	if _, err := s.cron.AddFunc(s.config.ExpiryNoticeSchedule, s.jobs.ExpiryNotice); err != nil {
		s.logger.Error("failed to schedule expiry notice job", "error", err)
		return err
	}
	s.logger.Info("scheduled expiry notice job", "schedule", s.config.ExpiryNoticeSchedule)
	return nil
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Start starts the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
