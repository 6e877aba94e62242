package cron

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/angelmondragon/backoffice-backend/pkg/logger"
	"github.com/angelmondragon/backoffice-backend/pkg/metrics"
)

const defaultInterval = time.Minute

type ServiceParams struct {
	Name     string
	Logger   *logger.Logger
	Registry *Registry
	// Lock defaults to a LocalLock; use a RedisLock when several workers
	// share the same jobs.
	Lock    Lock
	Metrics *metrics.JobMetrics
	// Interval is measured from the end of one cycle to the start of the
	// next, so slow cycles never overlap.
	Interval time.Duration
	// JobTimeout bounds each job run. Zero leaves runs unbounded.
	JobTimeout time.Duration
}

// CycleReport summarises one pass over the registry.
type CycleReport struct {
	Skipped bool
	Ran     []string
	Failed  []string
}

// Service runs every registered job once per cycle.
type Service struct {
	p ServiceParams
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Name == "" {
		params.Name = "cron"
	}
	if params.Lock == nil {
		params.Lock = &LocalLock{}
	}
	if params.Registry == nil {
		params.Registry = NewRegistry()
	}
	if params.Interval <= 0 {
		params.Interval = defaultInterval
	}
	return &Service{p: params}, nil
}

// Run executes a cycle right away and then keeps going until ctx is
// canceled, which is a clean stop.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = s.p.Logger.WithField(ctx, "scheduler", s.p.Name)

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.p.Logger.Info(ctx, "scheduler.stopped")
			return nil
		case <-timer.C:
		}
		if _, err := s.RunOnce(ctx); err != nil {
			s.p.Logger.Error(ctx, "scheduler.cycle_failed", err)
		}
		timer.Reset(s.p.Interval)
	}
}

// RunOnce performs a single cycle under the lock. A failing job does not
// stop the ones after it; the returned error only covers the lock.
func (s *Service) RunOnce(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	acquired, err := s.p.Lock.Acquire(ctx)
	if err != nil {
		return report, fmt.Errorf("lock acquire: %w", err)
	}
	if !acquired {
		s.p.Logger.Debug(ctx, "scheduler.lock_busy")
		report.Skipped = true
		return report, nil
	}
	defer func() {
		if err := s.p.Lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.p.Logger.Error(ctx, "scheduler.lock_release_failed", err)
		}
	}()

	for _, job := range s.p.Registry.Jobs() {
		if ctx.Err() != nil {
			break
		}
		report.Ran = append(report.Ran, job.Name())
		if err := s.runJob(ctx, job); err != nil {
			report.Failed = append(report.Failed, job.Name())
		}
	}
	return report, nil
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	name := job.Name()
	ctx = s.p.Logger.WithField(ctx, "job", name)
	if s.p.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.p.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v\n%s", rec, debug.Stack())
		}
		elapsed := time.Since(start)
		s.p.Metrics.Record(name, elapsed, err)
		ctx = s.p.Logger.WithField(ctx, "duration_ms", elapsed.Milliseconds())
		if err != nil {
			s.p.Logger.Error(ctx, "job.failed", err)
			return
		}
		s.p.Logger.Debug(ctx, "job.completed")
	}()
	return job.Run(ctx)
}
