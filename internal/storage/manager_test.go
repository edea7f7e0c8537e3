package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakePlatform struct {
	granted    bool
	persistErr error
	est        Estimate
	estErr     error
	persists   int
	estimates  int
}

func (p *fakePlatform) Persist(context.Context) (bool, error) {
	p.persists++
	return p.granted, p.persistErr
}

func (p *fakePlatform) Estimate(context.Context) (Estimate, error) {
	p.estimates++
	return p.est, p.estErr
}

func TestManagerWithoutPlatform(t *testing.T) {
	m := NewManager(nil, zap.NewNop(), nil)

	assert.False(t, m.Supported())
	assert.False(t, m.RequestPersistence(context.Background()))

	_, ok := m.QueryEstimate(context.Background())
	assert.False(t, ok)
}

func TestManagerDelegates(t *testing.T) {
	platform := &fakePlatform{granted: true, est: Estimate{Usage: 42, Quota: 100}}
	m := NewManager(platform, zap.NewNop(), nil)

	assert.True(t, m.Supported())
	assert.True(t, m.RequestPersistence(context.Background()))

	est, ok := m.QueryEstimate(context.Background())
	assert.True(t, ok)
	assert.Equal(t, int64(42), est.Usage)
	assert.Equal(t, int64(100), est.Quota)

	// Queries always hit the platform, never a cache.
	m.QueryEstimate(context.Background())
	assert.Equal(t, 2, platform.estimates)
}

func TestManagerAbsorbsFailures(t *testing.T) {
	platform := &fakePlatform{persistErr: errors.New("io error"), estErr: errors.New("io error")}
	m := NewManager(platform, zap.NewNop(), nil)

	assert.False(t, m.RequestPersistence(context.Background()))

	_, ok := m.QueryEstimate(context.Background())
	assert.False(t, ok)
}
