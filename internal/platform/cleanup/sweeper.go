// Package cleanup removes expired, unbooked availability slots on a daily
// schedule.
package cleanup

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// SlotStore is the subset of slot storage the sweeper needs.
type SlotStore interface {
	DeleteExpiredUnbooked(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper deletes slots whose end time has passed and that were never booked.
// It fires once per day at the configured local time.
type Sweeper struct {
	store  SlotStore
	runAt  time.Time // only the clock components are used
	logger zerolog.Logger
}

func NewSweeper(store SlotStore, runAt time.Time, logger zerolog.Logger) *Sweeper {
	return &Sweeper{store: store, runAt: runAt, logger: logger}
}

// NextRun returns the next occurrence of the configured run time strictly
// after now: today if the time has not yet passed, otherwise tomorrow.
func (s *Sweeper) NextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(),
		s.runAt.Hour(), s.runAt.Minute(), s.runAt.Second(), 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Run blocks until ctx is cancelled, sweeping at each scheduled time.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		next := s.NextRun(time.Now())
		s.logger.Info().Time("next_run", next).Msg("slot cleanup scheduled")

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("slot cleanup stopped")
			return
		case <-timer.C:
		}

		s.Sweep(ctx)
	}
}

// Sweep performs a single cleanup pass. Errors are logged, not returned, so a
// failed pass never stops the schedule.
func (s *Sweeper) Sweep(ctx context.Context) {
	deleted, err := s.store.DeleteExpiredUnbooked(ctx, time.Now())
	if err != nil {
		s.logger.Error().Err(err).Msg("slot cleanup failed")
		return
	}
	s.logger.Info().Int64("deleted", deleted).Msg("slot cleanup complete")
}
