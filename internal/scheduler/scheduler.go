// Package scheduler runs jobs on cron schedules in a fixed timezone.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Defaults for the daily run
const (
	DefaultSpec     = "30 17 * * 1-5"
	DefaultTimezone = "America/Chicago"
)

// Job is a unit of scheduled work
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Scheduler manages cron jobs. Overlapping runs of the same job are
// skipped and panics are recovered.
type Scheduler struct {
	cron   *cron.Cron
	loc    *time.Location
	logger *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler evaluating specs in timezone (empty means the
// default timezone).
func New(timezone string, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := location(timezone)
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("component", "scheduler"))
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		loc:    loc,
		logger: logger,
		ctx:    context.Background(),
	}, nil
}

// Location returns the scheduler timezone
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// AddJob registers job under a standard 5-field cron spec.
// Examples:
//   - "30 17 * * 1-5"  - 17:30 on weekdays
//   - "@hourly"        - every hour
//   - "@every 30m"     - every 30 minutes
func (s *Scheduler) AddJob(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		s.run(job)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.logger.Info("job registered", zap.String("schedule", spec), zap.String("job", job.Name()))
	return nil
}

func (s *Scheduler) run(job Job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	start := time.Now()
	s.logger.Info("running job", zap.String("job", job.Name()))
	if err := job.Run(ctx); err != nil {
		s.logger.Error("job failed", zap.String("job", job.Name()), zap.Error(err))
		return
	}
	s.logger.Info("job completed", zap.String("job", job.Name()), zap.Duration("took", time.Since(start)))
}

// Start runs the cron loop in the background. Jobs receive a context that
// is cancelled by Stop or when ctx ends.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("timezone", s.loc.String()), zap.Time("next", s.Next()))
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow executes a job immediately, outside the schedule
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	s.logger.Info("running job immediately", zap.String("job", job.Name()))
	return job.Run(ctx)
}

// Next returns the earliest upcoming fire time, zero when nothing is
// scheduled or the scheduler is not running.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next
}

// NextRun computes the first fire time of spec after t in timezone.
func NextRun(spec, timezone string, after time.Time) (time.Time, error) {
	loc, err := location(timezone)
	if err != nil {
		return time.Time{}, err
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return sched.Next(after.In(loc)), nil
}

func location(timezone string) (*time.Location, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return loc, nil
}

// cronLogger routes cron's internal logging to zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
