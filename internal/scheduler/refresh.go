// Package scheduler keeps build root bases current by refreshing them on a
// fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/cochaviz/pbuild/internal/build"
)

// Target is one base kept current by the Refresher.
type Target struct {
	Name    string
	Refresh func(ctx context.Context) error
}

// Refresher runs every target's refresh on an interval. A refresh that finds
// the base locked is skipped and tried again on the next tick.
type Refresher struct {
	Logger   *slog.Logger
	Interval time.Duration
	Targets  []Target
}

// Run schedules the refreshes, starting immediately, and blocks until ctx is
// done.
func (r *Refresher) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		return errors.New("refresh interval must be positive")
	}
	if len(r.Targets) == 0 {
		return errors.New("no bases to refresh")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	for _, target := range r.Targets {
		_, err := s.NewJob(
			gocron.DurationJob(r.Interval),
			gocron.NewTask(r.refresh, ctx, target),
			gocron.WithName(target.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			_ = s.Shutdown()
			return fmt.Errorf("failed to schedule refresh of %s: %w", target.Name, err)
		}
	}

	r.logger().Info("starting base refresh", "bases", len(r.Targets), "every", r.Interval)
	s.Start()

	<-ctx.Done()
	r.logger().Info("stopping base refresh")
	return s.Shutdown()
}

func (r *Refresher) refresh(ctx context.Context, target Target) {
	r.refreshOnce(ctx, target)
}

// refreshOnce reports whether the base was refreshed.
func (r *Refresher) refreshOnce(ctx context.Context, target Target) bool {
	if ctx.Err() != nil {
		return false
	}

	logger := r.logger().With("base", target.Name)
	started := time.Now()

	err := target.Refresh(ctx)
	switch {
	case err == nil:
		logger.Info("base refreshed", "duration", time.Since(started).Round(time.Second))
		return true
	case build.IsRetryable(err):
		logger.Info("base busy, retrying next cycle", "error", err)
	default:
		logger.Error("base refresh failed", "error", err)
	}
	return false
}

func (r *Refresher) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
