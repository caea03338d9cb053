package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
	"github.com/angelmondragon/tradeledger-backend/pkg/metrics"
)

const defaultInterval = time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronMetrics
	Interval time.Duration
}

// Service runs the settlement and maintenance jobs once per interval.
// A cycle only runs on the replica holding the lock, and jobs run in
// registration order so binary settlement precedes investment maturity.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	s := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// cycleReport summarizes one pass over the registry.
type cycleReport struct {
	skipped bool
	ran     []string
	failed  []string
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.runCycle(ctx); err != nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) runCycle(ctx context.Context) (cycleReport, error) {
	var report cycleReport
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return report, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		report.skipped = true
		s.metrics.ObserveCycle("skipped")
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return report, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "failed to release cron lock", err)
		}
	}()

	ctx = s.logg.WithField(ctx, "cycle_id", uuid.NewString())
	for i, job := range s.registry.Due(time.Now()) {
		if ctx.Err() != nil {
			break
		}
		if i > 0 {
			if err := s.lock.Extend(ctx); err != nil {
				if errors.Is(err, ErrLockLost) {
					s.metrics.ObserveCycle("lock_lost")
					s.logg.Warn(ctx, "cron lock lost mid-cycle, stopping")
					return report, nil
				}
				return report, fmt.Errorf("lock extend: %w", err)
			}
		}
		report.ran = append(report.ran, job.Name())
		started := time.Now()
		if err := s.runJob(ctx, job); err != nil {
			report.failed = append(report.failed, job.Name())
			continue
		}
		s.registry.MarkRun(job.Name(), started)
	}

	s.metrics.ObserveCycle("completed")
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs_run":    len(report.ran),
		"jobs_failed": report.failed,
	}), "cron cycle complete")
	return report, nil
}

// runJob isolates one job: a failure is logged and counted but never
// aborts the cycle.
func (s *Service) runJob(ctx context.Context, job Job) error {
	name := job.Name()
	jobCtx := s.logg.WithField(ctx, "job", name)
	start := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(start)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	s.metrics.ObserveJob(name, elapsed, err)
	if err != nil {
		s.logg.Error(jobCtx, "cron job failed", err)
		return err
	}
	s.logg.Debug(jobCtx, "cron job completed")
	return nil
}
