package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/nugl/affiliate-engine/internal/services"
)

// SummaryRefresher periodically recomputes every partner summary. It
// exists because the trigger channel is best-effort: dropped triggers
// and summaries touched only by new clicks (no conversion) would
// otherwise go stale. Dashboards tolerate this lag; it is bounded by
// the interval.
type SummaryRefresher struct {
	aggregator *services.EarningsAggregator
	interval   time.Duration
	logger     *slog.Logger
}

// NewSummaryRefresher creates a new SummaryRefresher.
func NewSummaryRefresher(aggregator *services.EarningsAggregator, interval time.Duration, logger *slog.Logger) *SummaryRefresher {
	return &SummaryRefresher{aggregator: aggregator, interval: interval, logger: logger}
}

// Start runs the refresh loop until the context is cancelled. An
// immediate refresh runs on startup so a fresh process serves a warm
// cache without waiting out the first tick.
func (r *SummaryRefresher) Start(ctx context.Context) {
	r.logger.Info("starting periodic summary refresher", "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refresh()

	for {
		select {
		case <-ticker.C:
			r.refresh()
		case <-ctx.Done():
			r.logger.Info("summary refresher stopping")
			return
		}
	}
}

func (r *SummaryRefresher) refresh() {
	if _, err := r.aggregator.Recompute(""); err != nil {
		r.logger.Error("periodic summary refresh failed", "error", err)
	}
}
