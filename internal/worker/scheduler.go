package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Scheduler runs a WarmJob at a fixed interval, starting immediately.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *WarmJob
	interval  time.Duration
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler for job. Intervals under a minute are
// raised to one minute.
func NewScheduler(job *WarmJob, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval < time.Minute {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		job:       job,
		interval:  interval,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the warm job and starts the underlying scheduler.
// A run still in progress when the next one is due skips that tick.
func (s *Scheduler) Start() error {
	minutes := int(s.interval.Minutes())

	_, err := s.scheduler.Every(minutes).Minutes().SingletonMode().Do(func() {
		s.logger.Debug().Msg("scheduled cache warm triggered")
		s.job.Run(s.ctx)
	})
	if err != nil {
		return err
	}

	s.logger.Info().Int("interval_minutes", minutes).Msg("cache warm scheduled")
	s.scheduler.StartAsync()
	return nil
}

// Stop cancels a running warm and stops future runs.
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}

// IsRunning reports whether the scheduler has been started and not stopped.
func (s *Scheduler) IsRunning() bool {
	return s.scheduler.IsRunning()
}
