package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/infrastructure/monitoring"
)

// Estimate reports workspace storage occupancy in bytes.
type Estimate struct {
	Usage int64 `json:"usage"`
	Quota int64 `json:"quota"`
}

// Platform answers storage queries for one workspace root.
type Platform interface {
	// Persist makes the workspace durable, reporting whether it is.
	// A false return without error means the host refused, such as a
	// workspace on volatile storage.
	Persist(ctx context.Context) (bool, error)

	// Estimate measures current usage against the quota.
	Estimate(ctx context.Context) (Estimate, error)
}

// Manager fronts the storage platform. A nil platform degrades every
// query instead of erroring.
type Manager struct {
	platform Platform
	logger   *zap.Logger
	metrics  *monitoring.Metrics
}

// NewManager creates a manager. Platform and metrics may be nil.
func NewManager(platform Platform, logger *zap.Logger, metrics *monitoring.Metrics) *Manager {
	return &Manager{
		platform: platform,
		logger:   logger,
		metrics:  metrics,
	}
}

// Supported reports whether a storage platform is present.
func (m *Manager) Supported() bool {
	return m.platform != nil
}

// RequestPersistence asks the host to make the workspace durable.
// Reports false when no platform exists, the host refuses, or the
// request fails; failures are logged, never surfaced.
func (m *Manager) RequestPersistence(ctx context.Context) bool {
	if m.platform == nil {
		m.logger.Debug("storage platform unavailable, persistence denied")
		return false
	}

	timer := monitoring.NewTimer(m.metrics, "storage", "persist")
	granted, err := m.platform.Persist(ctx)
	if err != nil {
		timer.Stop("error")
		m.logger.Warn("persistence request failed", zap.Error(err))
		return false
	}
	timer.Stop("ok")

	m.logger.Info("persistence request resolved", zap.Bool("granted", granted))
	return granted
}

// QueryEstimate measures current workspace usage. The second return is
// false when no platform exists or the measurement fails.
func (m *Manager) QueryEstimate(ctx context.Context) (Estimate, bool) {
	if m.platform == nil {
		m.logger.Debug("storage platform unavailable, no estimate")
		return Estimate{}, false
	}

	timer := monitoring.NewTimer(m.metrics, "storage", "estimate")
	est, err := m.platform.Estimate(ctx)
	if err != nil {
		timer.Stop("error")
		m.logger.Warn("storage estimate failed", zap.Error(err))
		return Estimate{}, false
	}
	timer.Stop("ok")

	return est, true
}
