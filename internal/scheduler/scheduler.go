// Package scheduler runs BioFlow's wall-clock jobs, such as the midnight
// rollover of the daily trackers.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// MidnightSpec fires once per day at 00:00 local time.
const MidnightSpec = "0 0 * * *"

// Rollover is implemented by anything with per-day counters to reset.
type Rollover interface {
	DailyRollover(ctx context.Context)
}

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// slogAdapter routes cron's own logging through slog.
type slogAdapter struct{}

func (slogAdapter) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("Scheduler cron: "+msg, keysAndValues...)
}

func (slogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("Scheduler cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Standard 5-field parser (min, hour, dom, month, dow); panics in jobs are recovered.
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	logger := slogAdapter{}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// ScheduleRollover runs r.DailyRollover at every local midnight until ctx is done.
func (s *Scheduler) ScheduleRollover(ctx context.Context, r Rollover) error {
	err := s.AddJob(MidnightSpec, func() {
		if ctx.Err() != nil {
			return
		}
		slog.Info("Scheduler ScheduleRollover firing daily rollover")
		r.DailyRollover(ctx)
	})
	if err != nil {
		slog.Error("Scheduler ScheduleRollover failed to add job", "error", err)
		return err
	}
	slog.Debug("Scheduler ScheduleRollover registered", "spec", MidnightSpec)
	return nil
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
