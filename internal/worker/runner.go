// Package worker runs the relay's periodic event log maintenance.
package worker

import (
	"context"
	"time"

	"github.com/oremus-labs/ol-game-console/internal/logutil"
	"github.com/oremus-labs/ol-game-console/internal/metrics"
	"github.com/oremus-labs/ol-game-console/internal/queue"
)

// Options configure the maintenance worker.
type Options struct {
	Log       queue.Log
	Logger    *logutil.Logger
	Interval  time.Duration
	Retention time.Duration
	Now       func() time.Time
}

// Runner trims event log entries older than the retention window.
type Runner struct {
	log       queue.Log
	logger    *logutil.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

// New creates a new Runner.
func New(opts Options) *Runner {
	interval := opts.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = logutil.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		log:       opts.Log,
		logger:    opts.Logger,
		interval:  interval,
		retention: retention,
		now:       opts.Now,
	}
}

// Run trims once immediately and then on every tick until ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("maintenance worker started", map[string]interface{}{
		"interval":  r.interval.String(),
		"retention": r.retention.String(),
	})

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.TrimOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("maintenance worker shutting down", nil)
			return ctx.Err()
		case <-ticker.C:
			r.TrimOnce(ctx)
		}
	}
}

// TrimOnce removes expired entries and reports how many were removed.
func (r *Runner) TrimOnce(ctx context.Context) int64 {
	if r.log == nil {
		return 0
	}
	cutoff := r.now().Add(-r.retention)
	removed, err := r.log.Trim(ctx, cutoff)
	if err != nil {
		r.logger.Error("event log trim failed", err, map[string]interface{}{"cutoff": cutoff.UTC().Format(time.RFC3339)})
	}
	metrics.ObserveTrim(removed)
	if removed > 0 {
		r.logger.Info("event log trimmed", map[string]interface{}{"removed": removed})
	}
	return removed
}
