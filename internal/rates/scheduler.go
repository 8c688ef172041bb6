package rates

import (
	"context"
	"time"

	"yield_sim/internal/core"

	"github.com/robfig/cron/v3"
)

// DefaultRefreshSchedule refreshes rates once per cache lifetime.
const DefaultRefreshSchedule = "@every 3h"

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// RefreshJob refreshes a rate cache.
type RefreshJob struct {
	cache   *Cache
	timeout time.Duration
}

func NewRefreshJob(cache *Cache, timeout time.Duration) *RefreshJob {
	return &RefreshJob{cache: cache, timeout: timeout}
}

func (j *RefreshJob) Name() string { return "rate_refresh" }

func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	return j.cache.Refresh(ctx)
}

// Scheduler manages background jobs
type Scheduler struct {
	cron   *cron.Cron
	logger core.ILogger
}

func NewScheduler(logger core.ILogger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger.WithField("component", "scheduler"),
	}
}

// AddJob registers a job. Schedules use standard cron syntax or descriptors
// such as "@hourly" and "@every 30m".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.logger.Debug("Running job", "job", job.Name())
		if err := job.Run(); err != nil {
			s.logger.Error("Job failed", "job", job.Name(), "error", err)
			return
		}
		s.logger.Debug("Job completed", "job", job.Name())
	})
	if err != nil {
		return err
	}

	s.logger.Info("Job registered", "schedule", schedule, "job", job.Name())
	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.logger.Info("Running job immediately", "job", job.Name())
	return job.Run()
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("Scheduler started")

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}
