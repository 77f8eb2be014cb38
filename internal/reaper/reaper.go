// Package reaper runs the periodic sweep that removes pending messages
// whose send neither confirmed nor failed. The interval sweep is the
// safety net for silent failures; known failures clean up immediately.
package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Store is the surface the reaper sweeps.
type Store interface {
	ReapStale(cutoff time.Time) int
}

// Reaper periodically removes stale pending messages from the store.
type Reaper struct {
	store    Store
	logger   *zap.Logger
	interval time.Duration
	maxAge   time.Duration
	cancel   context.CancelFunc
}

// New creates a reaper sweeping every interval, removing pending entries
// older than maxAge.
func New(store Store, interval, maxAge time.Duration, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	return &Reaper{store: store, logger: logger, interval: interval, maxAge: maxAge}
}

// Start begins the sweep loop.
func (r *Reaper) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)
}

// Stop stops the sweep loop.
func (r *Reaper) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Reaper) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one pass at the given time and returns how many pending
// entries were removed.
func (r *Reaper) Sweep(now time.Time) int {
	n := r.store.ReapStale(now.Add(-r.maxAge))
	if n > 0 {
		r.logger.Info("removed stale pending messages", zap.Int("count", n))
	}
	return n
}
