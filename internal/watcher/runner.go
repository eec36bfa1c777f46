package watcher

import (
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Runner schedules watchers as periodic gocron jobs. Each watcher runs in
// singleton mode: if a tick is still reading when the next interval fires,
// the new execution is rescheduled instead of overlapping.
type Runner struct {
	cron   gocron.Scheduler
	logger *zap.Logger
}

// NewRunner creates a Runner. Call Add for each watcher, then Start.
func NewRunner(logger *zap.Logger) (*Runner, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("watcher: creating gocron scheduler: %w", err)
	}
	return &Runner{
		cron:   s,
		logger: logger.Named("watcher_runner"),
	}, nil
}

// Add registers w with its own polling interval.
func (r *Runner) Add(w *Watcher) error {
	_, err := r.cron.NewJob(
		gocron.DurationJob(w.Interval()),
		gocron.NewTask(w.Tick),
		gocron.WithName(w.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("watcher: scheduling %q: %w", w.Name(), err)
	}

	r.logger.Info("watcher scheduled",
		zap.String("source", w.Name()),
		zap.Duration("interval", w.Interval()),
	)
	return nil
}

// Start begins ticking all registered watchers.
func (r *Runner) Start() {
	r.cron.Start()
}

// Shutdown stops the scheduler and waits for in-flight ticks to finish.
func (r *Runner) Shutdown() error {
	if err := r.cron.Shutdown(); err != nil {
		return fmt.Errorf("watcher: shutting down scheduler: %w", err)
	}
	return nil
}
