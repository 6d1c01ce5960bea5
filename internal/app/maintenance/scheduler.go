// Package maintenance runs periodic housekeeping jobs on a cron schedule.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/kiddies/pkg/logger"
	"github.com/charlesng35/kiddies/pkg/metrics"
)

// Task performs one unit of housekeeping at now and reports how many items it handled.
type Task func(ctx context.Context, now time.Time) (int64, error)

// Job binds a Task to a cron spec. Jobs with an empty Spec only run through RunOnce.
type Job struct {
	Name string
	Spec string
	Run  Task
}

// Scheduler owns a cron instance and the jobs registered on it.
type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	now     func() time.Time
	timeout time.Duration
	log     *zap.Logger
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock handed to tasks.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithJobTimeout bounds every scheduled run.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewScheduler builds a Scheduler for jobs. Jobs without a Run func are rejected.
func NewScheduler(jobs []Job, opts ...Option) (*Scheduler, error) {
	for _, job := range jobs {
		if job.Name == "" || job.Run == nil {
			return nil, errors.New("maintenance: job needs a name and a task")
		}
	}

	s := &Scheduler{
		jobs:    jobs,
		now:     time.Now,
		timeout: 5 * time.Minute,
		log:     logger.WithModule("maintenance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return s, nil
}

// Start registers every scheduled job and starts the cron loop.
func (s *Scheduler) Start() error {
	for _, job := range s.jobs {
		if job.Spec == "" {
			continue
		}
		if _, err := s.cron.AddFunc(job.Spec, func() { s.runScheduled(job) }); err != nil {
			return fmt.Errorf("maintenance: schedule %s %q: %w", job.Name, job.Spec, err)
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce runs every job immediately and returns the combined errors.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	var errs error
	for _, job := range s.jobs {
		if _, err := s.run(ctx, job); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name, err))
		}
	}
	return errs
}

func (s *Scheduler) runScheduled(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	handled, err := s.run(ctx, job)
	if err != nil {
		s.log.Warn("maintenance job failed", zap.String("job", job.Name), zap.Error(err))
		return
	}
	if handled > 0 {
		s.log.Debug("maintenance job done", zap.String("job", job.Name), zap.Int64("handled", handled))
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) (int64, error) {
	handled, err := job.Run(ctx, s.now())
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.MaintenanceRuns.WithLabelValues(job.Name, result).Inc()
	return handled, err
}
