package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Refresher reloads the snapshot on a fixed interval.
type Refresher struct {
	Refresh  func(ctx context.Context) error
	Interval time.Duration
	Logger   *zap.Logger
}

// Run refreshes once immediately and then once every Interval, returning when
// ctx is cancelled. A failed refresh is logged and waits for the next tick.
func (r *Refresher) Run(ctx context.Context) error {
	// Run immediately once at startup
	r.runOnce(ctx)

	if r.Interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Refresher) runOnce(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.Logger.Error("scheduled refresh failed", zap.Error(err))
	}
}
