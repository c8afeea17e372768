// Package scheduler runs periodic housekeeping for the session manager.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// Sweeper is the part of the session manager the scheduler drives.
type Sweeper interface {
	SweepIdle() int
}

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

func New(clock clockwork.Clock, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []gocron.SchedulerOption{}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}

	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// ScheduleIdleSweep runs sw.SweepIdle every interval and returns the job ID.
func (s *Scheduler) ScheduleIdleSweep(interval time.Duration, sw Sweeper) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.sweep, sw),
		gocron.WithName("idle-session-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create idle sweep job: %w", err)
	}

	s.logger.Debug("Scheduled idle session sweep", slog.Duration("interval", interval))
	return job.ID().String(), nil
}

func (s *Scheduler) sweep(sw Sweeper) {
	if n := sw.SweepIdle(); n > 0 {
		s.logger.Info("Closed idle sessions", slog.Int("count", n))
	}
}

func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
