package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sampleWindow bounds the latency ring used for quantile estimates.
const sampleWindow = 1024

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Component operation metrics
	OpCalls    *prometheus.CounterVec
	OpDuration *prometheus.HistogramVec
	OpErrors   *prometheus.CounterVec

	// Connectivity metrics
	Online     prometheus.Gauge
	Reconnects prometheus.Counter

	// Sync cycle metrics
	SyncCycles        *prometheus.CounterVec
	SyncCycleDuration prometheus.Histogram
	SyncCoalesced     prometheus.Counter
	PendingActions    prometheus.Gauge
	TasksRegistered   prometheus.Counter

	// Lifecycle publication metrics
	SnapshotsPublished prometheus.Counter
	Subscribers        prometheus.Gauge

	// Bridge metrics
	BridgeMessages *prometheus.CounterVec
	BridgeDropped  *prometheus.CounterVec
	AgentConnected prometheus.Gauge
	AgentRestarts  prometheus.Counter

	// Install metrics
	InstallPrompts *prometheus.CounterVec
	Installed      prometheus.Gauge

	// State stream metrics
	StreamClients prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot      Snapshot
	latencies     []float64
	latencyAt     int
	syncDurations []float64
	syncAt        int

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON API.
type Snapshot struct {
	TotalRequests  int64
	TotalErrors    int64
	TotalDuration  float64 // sum of all request durations
	RequestCount   int64   // count for averaging
	Subscribers     int64
	StreamClients   int64
	PendingActions  int64
	Online          bool
	CyclesCompleted int64
	CyclesFailed    int64
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime:     time.Now(),
		latencies:     make([]float64, 0, sampleWindow),
		syncDurations: make([]float64, 0, sampleWindow),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspaced_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workspaced_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workspaced_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workspaced_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		OpCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspaced_op_calls_total",
				Help: "Total number of component operations",
			},
			[]string{"component", "op", "status"},
		),
		OpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "workspaced_op_duration_seconds",
				Help:    "Component operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"component", "op"},
		),
		OpErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspaced_op_errors_total",
				Help: "Total number of component operation errors",
			},
			[]string{"component", "op", "error_type"},
		),

		Online: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "workspaced_online",
				Help: "Whether the upstream platform is reachable (1) or not (0)",
			},
		),
		Reconnects: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "workspaced_reconnects_total",
				Help: "Total number of offline to online transitions",
			},
		),

		SyncCycles: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspaced_sync_cycles_total",
				Help: "Total number of sync cycles by result",
			},
			[]string{"result"},
		),
		SyncCycleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "workspaced_sync_cycle_duration_seconds",
				Help:    "Sync cycle duration in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60},
			},
		),
		SyncCoalesced: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "workspaced_sync_coalesced_total",
				Help: "Total number of reconnects coalesced into a running sync cycle",
			},
		),
		PendingActions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "workspaced_pending_actions",
				Help: "Number of deferred actions reported by the sync agent",
			},
		),
		TasksRegistered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "workspaced_sync_tasks_registered_total",
				Help: "Total number of sync tasks registered",
			},
		),

		SnapshotsPublished: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "workspaced_snapshots_published_total",
				Help: "Total number of lifecycle snapshots published",
			},
		),
		Subscribers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "workspaced_subscribers",
				Help: "Number of active lifecycle subscribers",
			},
		),

		BridgeMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspaced_bridge_messages_total",
				Help: "Total number of bridge messages",
			},
			[]string{"direction", "type"},
		),
		BridgeDropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspaced_bridge_dropped_total",
				Help: "Total number of bridge messages dropped without a connected agent",
			},
			[]string{"type"},
		),
		AgentConnected: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "workspaced_agent_connected",
				Help: "Whether a sync agent is attached to the bridge (1) or not (0)",
			},
		),
		AgentRestarts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "workspaced_agent_restarts_total",
				Help: "Total number of sync agent restarts",
			},
		),

		InstallPrompts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workspaced_install_prompts_total",
				Help: "Total number of install prompt resolutions by result",
			},
			[]string{"result"},
		),
		Installed: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "workspaced_installed",
				Help: "Whether the workspace is installed as a desktop entry (1) or not (0)",
			},
		),

		StreamClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "workspaced_stream_clients",
				Help: "Number of active state stream clients",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "workspaced_uptime_seconds",
				Help: "Daemon uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric.
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.recordLatencyLocked(duration.Seconds())
	m.mu.Unlock()
}

// recordLatencyLocked appends a latency sample to the bounded ring.
// Caller holds m.mu.
func (m *Metrics) recordLatencyLocked(seconds float64) {
	if len(m.latencies) < sampleWindow {
		m.latencies = append(m.latencies, seconds)
		return
	}
	m.latencies[m.latencyAt] = seconds
	m.latencyAt = (m.latencyAt + 1) % sampleWindow
}

// RecordOp records a component operation.
func (m *Metrics) RecordOp(component, op, status string, duration time.Duration) {
	m.OpCalls.WithLabelValues(component, op, status).Inc()
	m.OpDuration.WithLabelValues(component, op).Observe(duration.Seconds())
}

// RecordOpError records a component operation error.
func (m *Metrics) RecordOpError(component, op, errorType string) {
	m.OpErrors.WithLabelValues(component, op, errorType).Inc()
}

// SetOnline sets the connectivity gauge.
func (m *Metrics) SetOnline(online bool) {
	m.Online.Set(boolGauge(online))
	m.mu.Lock()
	m.snapshot.Online = online
	m.mu.Unlock()
}

// IncReconnects increments the offline to online transition counter.
func (m *Metrics) IncReconnects() {
	m.Reconnects.Inc()
}

// RecordSyncCycle records a finished sync cycle.
func (m *Metrics) RecordSyncCycle(result string, duration time.Duration) {
	m.SyncCycles.WithLabelValues(result).Inc()
	m.SyncCycleDuration.Observe(duration.Seconds())

	m.mu.Lock()
	if result == "failed" {
		m.snapshot.CyclesFailed++
	} else {
		m.snapshot.CyclesCompleted++
	}
	if len(m.syncDurations) < sampleWindow {
		m.syncDurations = append(m.syncDurations, duration.Seconds())
	} else {
		m.syncDurations[m.syncAt] = duration.Seconds()
		m.syncAt = (m.syncAt + 1) % sampleWindow
	}
	m.mu.Unlock()
}

// IncSyncCoalesced increments the coalesced reconnect counter.
func (m *Metrics) IncSyncCoalesced() {
	m.SyncCoalesced.Inc()
}

// SetPendingActions sets the deferred action backlog gauge.
func (m *Metrics) SetPendingActions(count int) {
	m.PendingActions.Set(float64(count))
	m.mu.Lock()
	m.snapshot.PendingActions = int64(count)
	m.mu.Unlock()
}

// AddTasksRegistered adds to the registered sync task counter.
func (m *Metrics) AddTasksRegistered(count int) {
	m.TasksRegistered.Add(float64(count))
}

// IncSnapshotsPublished increments the published snapshot counter.
func (m *Metrics) IncSnapshotsPublished() {
	m.SnapshotsPublished.Inc()
}

// SetSubscribers sets the active subscriber gauge.
func (m *Metrics) SetSubscribers(count int) {
	m.Subscribers.Set(float64(count))
	m.mu.Lock()
	m.snapshot.Subscribers = int64(count)
	m.mu.Unlock()
}

// RecordBridgeMessage records a bridge message.
func (m *Metrics) RecordBridgeMessage(direction, msgType string) {
	m.BridgeMessages.WithLabelValues(direction, msgType).Inc()
}

// RecordBridgeDropped records a bridge message dropped for lack of an agent.
func (m *Metrics) RecordBridgeDropped(msgType string) {
	m.BridgeDropped.WithLabelValues(msgType).Inc()
}

// SetAgentConnected sets the agent attachment gauge.
func (m *Metrics) SetAgentConnected(connected bool) {
	m.AgentConnected.Set(boolGauge(connected))
}

// IncAgentRestarts increments the agent restart counter.
func (m *Metrics) IncAgentRestarts() {
	m.AgentRestarts.Inc()
}

// RecordInstallPrompt records an install prompt resolution.
func (m *Metrics) RecordInstallPrompt(result string) {
	m.InstallPrompts.WithLabelValues(result).Inc()
}

// SetInstalled sets the desktop installation gauge.
func (m *Metrics) SetInstalled(installed bool) {
	m.Installed.Set(boolGauge(installed))
}

// IncStreamClients increments the state stream client gauge.
func (m *Metrics) IncStreamClients() {
	m.StreamClients.Inc()
	m.mu.Lock()
	m.snapshot.StreamClients++
	m.mu.Unlock()
}

// DecStreamClients decrements the state stream client gauge.
func (m *Metrics) DecStreamClients() {
	m.StreamClients.Dec()
	m.mu.Lock()
	m.snapshot.StreamClients--
	m.mu.Unlock()
}

// GetSnapshot returns a copy of the current metric values.
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
