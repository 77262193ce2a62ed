package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PassFunc is invoked once per interval; fired carries the aligned instant the
// pass fired at.
type PassFunc func(ctx context.Context, fired time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
}

// Scheduler drives periodic, non-overlapping execution of a pass. Passes run
// sequentially on one goroutine; a pass error is logged and the loop carries
// on to the next interval.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		panic("scheduler interval must be positive")
	}
	return &Scheduler{opts: opts, logger: logger.With().Str("component", "scheduler").Logger()}
}

// Run blocks, invoking pass at each interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, pass PassFunc) error {
	if s.opts.StartupDelay > 0 {
		if err := sleep(ctx, s.opts.StartupDelay); err != nil {
			return err
		}
	}

	next := s.nextFire(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.nextFire(time.Now().UTC())
			delay = time.Until(next)
		}

		s.logger.Debug().Time("next_pass", next).Msg("waiting for next pass")
		if err := sleep(ctx, delay); err != nil {
			return err
		}

		s.logger.Info().Time("fired", next).Msg("executing scheduled pass")
		if err := pass(ctx, next); err != nil {
			s.logger.Error().Err(err).Time("fired", next).Msg("scheduled pass failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) nextFire(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	aligned := now.Truncate(s.opts.Interval)
	if !aligned.After(now) {
		aligned = aligned.Add(s.opts.Interval)
	}
	return aligned
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
