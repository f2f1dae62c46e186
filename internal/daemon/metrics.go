package daemon

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// loopMetrics holds the reconciliation loop's instruments. They register
// against the global delegating provider at init time and forward to the
// real provider once telemetry.Init runs.
var loopMetrics struct {
	cycles           metric.Int64Counter
	sourcesSynced    metric.Int64Counter
	skippedBackoff   metric.Int64Counter
	skippedRateLimit metric.Int64Counter
	cycleDuration    metric.Float64Histogram
}

func init() {
	m := otel.Meter("github.com/forgesync/frg/daemon")
	loopMetrics.cycles, _ = m.Int64Counter("frg.daemon.cycles",
		metric.WithDescription("Reconciliation cycles run"),
		metric.WithUnit("{cycle}"),
	)
	loopMetrics.sourcesSynced, _ = m.Int64Counter("frg.daemon.sources_synced",
		metric.WithDescription("Sources successfully synced"),
		metric.WithUnit("{source}"),
	)
	loopMetrics.skippedBackoff, _ = m.Int64Counter("frg.daemon.sources_skipped_backoff",
		metric.WithDescription("Source visits skipped due to per-source backoff"),
		metric.WithUnit("{source}"),
	)
	loopMetrics.skippedRateLimit, _ = m.Int64Counter("frg.daemon.sources_skipped_rate_limit",
		metric.WithDescription("Source visits skipped due to a persisted rate-limit cooldown"),
		metric.WithUnit("{source}"),
	)
	loopMetrics.cycleDuration, _ = m.Float64Histogram("frg.daemon.cycle_duration_ms",
		metric.WithDescription("Wall-clock duration of one reconciliation cycle"),
		metric.WithUnit("ms"),
	)
}
