package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"roommates-app-go/internal/config"
	"roommates-app-go/pkg/logger"
)

type SoloGroupSweeper interface {
	SweepSoloGroups(ctx context.Context, gracePeriod time.Duration, limit int) (int, error)
}

// Scheduler runs background maintenance on a cron schedule. Runs never
// overlap: a tick that fires while the previous sweep is busy is skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweeper SoloGroupSweeper
	cfg     config.SweepConfig
	log     logger.Logger
}

func NewScheduler(sweeper SoloGroupSweeper, cfg config.SweepConfig, log logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{log: log}),
			cron.SkipIfStillRunning(cronLogger{log: log}),
		)),
		sweeper: sweeper,
		cfg:     cfg,
		log:     log,
	}

	if _, err := s.cron.AddFunc(cfg.Schedule, s.runSweep); err != nil {
		return nil, fmt.Errorf("schedule solo group sweep %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("jobs: scheduler started", "sweep_schedule", s.cfg.Schedule, "grace_period", s.cfg.GracePeriod.String())
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("jobs: stop timed out waiting for running job")
	}
}

func (s *Scheduler) runSweep() {
	timeout := s.cfg.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.SweepOnce(ctx)
}

// SweepOnce runs a single sweep and logs the outcome.
func (s *Scheduler) SweepOnce(ctx context.Context) int {
	start := time.Now()
	removed, err := s.sweeper.SweepSoloGroups(ctx, s.cfg.GracePeriod, s.cfg.BatchSize)
	if err != nil {
		s.log.InternalError("jobs: solo group sweep failed", err, "removed", removed)
		return removed
	}
	if removed > 0 {
		s.log.Info("jobs: solo groups removed", "count", removed, "duration_ms", time.Since(start).Milliseconds())
	}
	return removed
}

type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.InternalError("cron: "+msg, err, keysAndValues...)
}
