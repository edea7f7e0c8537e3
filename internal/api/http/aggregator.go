package http

import (
	"fmt"
	"time"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/infrastructure/monitoring"
)

// StatsSummary condenses the request-path counters for health payloads.
type StatsSummary struct {
	TotalRequests    int64   `json:"total_requests"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
	ErrorRate        float64 `json:"error_rate"`
	Subscribers      int64   `json:"subscribers"`
	StreamClients    int64   `json:"stream_clients"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// SyncStats reports synchronization progress and history.
type SyncStats struct {
	Online           bool               `json:"online"`
	PendingActions   int64              `json:"pending_actions"`
	CyclesCompleted  int64              `json:"cycles_completed"`
	CyclesFailed     int64              `json:"cycles_failed"`
	CycleDurationsMs map[string]float64 `json:"cycle_durations_ms,omitempty"`
}

// StatsReport is the aggregated statistics document served with health
// responses.
type StatsReport struct {
	Timestamp time.Time          `json:"timestamp"`
	Summary   StatsSummary       `json:"summary"`
	LatencyMs map[string]float64 `json:"latency_ms,omitempty"`
	Sync      SyncStats          `json:"sync"`
}

// StatsAggregator assembles statistics from the monitoring snapshot. A
// nil metrics source yields empty reports, so handlers stay usable in
// stripped-down deployments.
type StatsAggregator struct {
	metrics *monitoring.Metrics
	started time.Time
}

// NewStatsAggregator creates an aggregator over the given metrics.
func NewStatsAggregator(metrics *monitoring.Metrics) *StatsAggregator {
	return &StatsAggregator{
		metrics: metrics,
		started: time.Now(),
	}
}

// Report builds the aggregated statistics for the current process.
func (a *StatsAggregator) Report() StatsReport {
	report := StatsReport{Timestamp: time.Now()}
	if a.metrics == nil {
		return report
	}

	snap := a.metrics.GetSnapshot()
	report.Summary = StatsSummary{
		TotalRequests:    snap.TotalRequests,
		AverageLatencyMs: a.metrics.AvgLatency() * 1000,
		ErrorRate:        a.metrics.ErrorRate(),
		Subscribers:      snap.Subscribers,
		StreamClients:    snap.StreamClients,
		UptimeSeconds:    time.Since(a.started).Seconds(),
	}
	report.LatencyMs = quantilesMs(a.metrics.LatencyQuantiles(0.5, 0.95, 0.99))
	report.Sync = SyncStats{
		Online:           snap.Online,
		PendingActions:   snap.PendingActions,
		CyclesCompleted:  snap.CyclesCompleted,
		CyclesFailed:     snap.CyclesFailed,
		CycleDurationsMs: quantilesMs(a.metrics.SyncCycleQuantiles(0.5, 0.95, 0.99)),
	}
	return report
}

// quantilesMs relabels quantile keys as p50-style strings and converts
// the sampled seconds to milliseconds.
func quantilesMs(quantiles map[float64]float64) map[string]float64 {
	if len(quantiles) == 0 {
		return nil
	}
	out := make(map[string]float64, len(quantiles))
	for q, v := range quantiles {
		out[fmt.Sprintf("p%d", int(q*100))] = v * 1000
	}
	return out
}
