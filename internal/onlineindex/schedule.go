package onlineindex

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"onlineindex/internal/callgroup"
)

// Scheduler runs a Builder's incremental BuildIndex on a fixed interval,
// for deployments that would rather poll than drive the build from a
// single long-lived caller. Overlapping ticks for the same index are
// deduplicated through group — a tick that lands while the previous one
// is still draining the work queue joins it instead of starting a
// redundant concurrent pass.
type Scheduler struct {
	sched gocron.Scheduler
	group *callgroup.Group[string]
}

// NewScheduler wraps a fresh gocron scheduler.
func NewScheduler() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{sched: s, group: &callgroup.Group[string]{}}, nil
}

// AddSweep registers b to run every interval, deduplicated by index name.
// Each sweep runs under context.Background(), so stopping the Scheduler
// does not cancel a sweep that is already running.
func (s *Scheduler) AddSweep(b *Builder, interval time.Duration) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ch := s.group.DoChan(b.index, func() error {
				return b.BuildIndex(context.Background(), false)
			})
			if err := <-ch; err != nil {
				b.logger.Error("scheduled sweep failed", "error", err)
			}
		}),
	)
	return err
}

// Start begins running registered jobs in the background.
func (s *Scheduler) Start() { s.sched.Start() }

// Stop waits for in-flight jobs to finish and stops the scheduler.
func (s *Scheduler) Stop() error { return s.sched.Shutdown() }
