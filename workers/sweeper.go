package workers

import (
	"context"
	"time"
)

// StartMetricsSweeper queues the scheduled metrics sweep every interval
// until ctx is done. A non-positive interval disables it.
func StartMetricsSweeper(ctx context.Context, e *Engine, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.EnqueueScheduledMetrics(ctx); err != nil {
					e.log.Error().Err(err).Msg("metrics sweep not queued")
				}
			}
		}
	}()
}
