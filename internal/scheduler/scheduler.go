package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"propwatch/internal/logging"
)

// TickFunc is invoked on every aligned interval.
type TickFunc = func(ctx context.Context, bucket time.Time) error

// Options tune scheduler behaviour. A non-empty Cron expression (standard
// five fields or a descriptor such as "@every 15m") replaces interval mode.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	Cron         string
}

// Scheduler drives non-overlapping evaluation cycles.
type Scheduler struct {
	opts   Options
	clock  clockwork.Clock
	logger zerolog.Logger
}

// New constructs a Scheduler instance.
func New(opts Options, clock clockwork.Clock, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Cron == "" && opts.Interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	if opts.Cron != "" {
		if _, err := cron.ParseStandard(opts.Cron); err != nil {
			return nil, fmt.Errorf("parse cron expression %q: %w", opts.Cron, err)
		}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{opts: opts, clock: clock, logger: logging.Component(logger, "scheduler")}, nil
}

// Run blocks, invoking the tick function until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := s.clock.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.Chan():
		}
	}

	if s.opts.Cron != "" {
		return s.runCron(ctx, tick)
	}
	return s.runInterval(ctx, tick)
}

func (s *Scheduler) runInterval(ctx context.Context, tick TickFunc) error {
	next := s.nextTick(s.clock.Now().UTC())
	for {
		delay := s.clock.Until(next)
		if delay < 0 {
			next = s.nextTick(s.clock.Now().UTC())
			delay = s.clock.Until(next)
		}

		timer := s.clock.NewTimer(delay)
		s.logger.Debug().Time("next_bucket", next).Msg("waiting for next bucket")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.Chan():
			timer.Stop()
		}

		bucket := s.bucketStart(next)
		s.execute(ctx, tick, bucket)
		next = next.Add(s.opts.Interval)
	}
}

// runCron hands timing to robfig/cron. A tick still running when the next
// one is due is skipped rather than queued.
func (s *Scheduler) runCron(ctx context.Context, tick TickFunc) error {
	adapter := cronLogger{logger: s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
	)
	if _, err := c.AddFunc(s.opts.Cron, func() {
		s.execute(ctx, tick, s.clock.Now().UTC().Truncate(time.Second))
	}); err != nil {
		return fmt.Errorf("register cron tick: %w", err)
	}

	c.Start()
	s.logger.Info().Str("cron", s.opts.Cron).Msg("cron scheduler started")
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info().Msg("cron scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) execute(ctx context.Context, tick TickFunc, bucket time.Time) {
	s.logger.Info().Time("bucket", bucket).Msg("executing scheduled tick")
	if err := tick(ctx, bucket); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("tick execution failed")
	}
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	bucket := now.Truncate(s.opts.Interval)
	if !bucket.After(now) {
		bucket = bucket.Add(s.opts.Interval)
	}
	return bucket
}

func (s *Scheduler) bucketStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}

// cronLogger routes robfig/cron's key/value logging into zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
