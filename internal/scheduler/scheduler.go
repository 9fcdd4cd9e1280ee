// Package scheduler drives the periodic status-snapshot flush during live
// runs. Flushes happen on wall-clock time, independent of the message
// stream's receiver-local clock.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// FlushFunc is invoked at every interval with the interval's start time.
type FlushFunc func(ctx context.Context, at time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval time.Duration
	// AlignToBucket snaps flushes to interval boundaries (e.g. on the
	// minute for a 1m interval) so rows from restarts line up.
	AlignToBucket bool
	StartupDelay  time.Duration
}

// Scheduler runs a flush function at a fixed, optionally aligned interval.
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

// Run blocks, invoking the flush function at each interval until ctx is
// cancelled. Flush errors are logged, never fatal.
func (s *Scheduler) Run(ctx context.Context, flush FlushFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	next := s.nextFlush(time.Now().UTC())
	for {
		delay := time.Until(next)
		if delay < 0 {
			next = s.nextFlush(time.Now().UTC())
			delay = time.Until(next)
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_flush", next).Msg("waiting for next snapshot flush")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			timer.Stop()
		}

		at := s.flushStart(next)
		if err := flush(ctx, at); err != nil {
			s.logger.Error().Err(err).Time("at", at).Msg("snapshot flush failed")
		}

		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) nextFlush(now time.Time) time.Time {
	if !s.opts.AlignToBucket {
		return now.Add(s.opts.Interval)
	}
	at := now.Truncate(s.opts.Interval)
	if !at.After(now) {
		at = at.Add(s.opts.Interval)
	}
	return at
}

func (s *Scheduler) flushStart(t time.Time) time.Time {
	if !s.opts.AlignToBucket {
		return t
	}
	return t.Truncate(s.opts.Interval)
}
