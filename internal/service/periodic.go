package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// runPeriodically runs scan once immediately and then on every tick until ctx is done.
func runPeriodically(
	ctx context.Context,
	interval time.Duration,
	logger *zap.Logger,
	name string,
	scan func(ctx context.Context) error,
) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial scan so work that is already due does not wait for the first ticker edge.
	if err := scan(ctx); err != nil && ctx.Err() == nil {
		logger.Error(name+" initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := scan(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Error(name+" scan failed", zap.Error(err))
			}
		}
	}
}
