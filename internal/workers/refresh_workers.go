// Package workers runs the background summary-refresh machinery: a
// worker pool draining per-partner refresh triggers, and a periodic
// full refresher that backstops dropped triggers.
package workers

import (
	"context"
	"log/slog"

	"github.com/nugl/affiliate-engine/internal/services"
)

// StartRefreshWorkers launches a pool of goroutines that recompute a
// partner's earnings summary whenever a new attribution link lands.
// Triggers arrive on a buffered channel with non-blocking sends, so a
// burst of conversions degrades to a periodic refresh rather than
// backpressure on the matching hot path.
func StartRefreshWorkers(ctx context.Context, workerCount int, triggers <-chan string, aggregator *services.EarningsAggregator, logger *slog.Logger) {
	logger.Info("starting summary refresh workers", "count", workerCount)
	for i := 0; i < workerCount; i++ {
		go refreshWorker(ctx, triggers, aggregator, logger)
	}
}

func refreshWorker(ctx context.Context, triggers <-chan string, aggregator *services.EarningsAggregator, logger *slog.Logger) {
	for {
		select {
		case partnerID, ok := <-triggers:
			if !ok {
				return
			}
			if _, err := aggregator.Recompute(partnerID); err != nil {
				// The periodic refresher will retry; just log.
				logger.Error("failed to refresh partner summary", "partner_id", partnerID, "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
