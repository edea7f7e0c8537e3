package monitoring

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// LatencyQuantiles estimates request latency quantiles in seconds over the
// recent sample window. Returns nil when no samples have been recorded.
func (m *Metrics) LatencyQuantiles(quantiles ...float64) map[float64]float64 {
	m.mu.RLock()
	samples := make([]float64, len(m.latencies))
	copy(samples, m.latencies)
	m.mu.RUnlock()

	if len(samples) == 0 {
		return nil
	}
	sort.Float64s(samples)

	out := make(map[float64]float64, len(quantiles))
	for _, q := range quantiles {
		out[q] = stat.Quantile(q, stat.Empirical, samples, nil)
	}
	return out
}

// SyncCycleQuantiles estimates sync cycle duration quantiles in seconds
// over the recent sample window. Returns nil when no cycles have
// finished.
func (m *Metrics) SyncCycleQuantiles(quantiles ...float64) map[float64]float64 {
	m.mu.RLock()
	samples := make([]float64, len(m.syncDurations))
	copy(samples, m.syncDurations)
	m.mu.RUnlock()

	if len(samples) == 0 {
		return nil
	}
	sort.Float64s(samples)

	out := make(map[float64]float64, len(quantiles))
	for _, q := range quantiles {
		out[q] = stat.Quantile(q, stat.Empirical, samples, nil)
	}
	return out
}

// AvgLatency returns the mean request latency in seconds, or zero when no
// requests have been recorded.
func (m *Metrics) AvgLatency() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot.RequestCount == 0 {
		return 0
	}
	return m.snapshot.TotalDuration / float64(m.snapshot.RequestCount)
}

// ErrorRate returns the share of requests that produced 4xx or 5xx
// responses, or zero when no requests have been recorded.
func (m *Metrics) ErrorRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snapshot.TotalRequests == 0 {
		return 0
	}
	return float64(m.snapshot.TotalErrors) / float64(m.snapshot.TotalRequests)
}
