// Package scheduler runs the periodic autosave job.
package scheduler

import (
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Target is the surface the autosave job needs from the progress
// service: skip the write when nothing changed, flush when it did.
type Target interface {
	Dirty() bool
	Flush() error
}

// Scheduler manages the background autosave task.
type Scheduler struct {
	scheduler *gocron.Scheduler
	target    Target
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a scheduler that flushes the target every interval.
func New(target Target, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		target:    target,
		interval:  interval,
		logger:    logger,
	}
}

// Start begins running the autosave loop in the background.
func (s *Scheduler) Start() {
	if _, err := s.scheduler.Every(s.interval).Do(s.autosave); err != nil {
		s.logger.Warn("schedule autosave", "error", err)
		return
	}
	s.scheduler.StartAsync()
}

// Stop terminates the autosave loop. Pending runs finish first.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) autosave() {
	if !s.target.Dirty() {
		return
	}
	if err := s.target.Flush(); err != nil {
		s.logger.Warn("autosave failed", "error", err)
		return
	}
	s.logger.Debug("autosave complete")
}
