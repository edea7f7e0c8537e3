package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func signalled(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

func TestMonitorFiresOncePerTransition(t *testing.T) {
	m := NewMonitor(nil, time.Second, zap.NewNop(), nil)
	sub := m.Watch()
	defer sub.Release()

	// Boot state is online; a redundant online observation is not an edge.
	m.SetOnline(true)
	assert.False(t, signalled(sub.C()))

	m.SetOnline(false)
	assert.True(t, signalled(sub.C()), "going offline signals once")
	assert.False(t, m.Online())

	m.SetOnline(false)
	assert.False(t, signalled(sub.C()), "redundant offline observations stay quiet")

	m.SetOnline(true)
	assert.True(t, signalled(sub.C()), "offline to online signals once")
	assert.True(t, m.Online())

	// Redundant online observations after the edge stay quiet.
	m.SetOnline(true)
	m.SetOnline(true)
	assert.False(t, signalled(sub.C()))
}

func TestMonitorRapidFlapsCoalesceToOnePending(t *testing.T) {
	m := NewMonitor(nil, time.Second, zap.NewNop(), nil)
	sub := m.Watch()
	defer sub.Release()

	// Four transitions before the watcher drains: the channel holds at
	// most one pending signal, and Online reflects the latest value.
	m.SetOnline(false)
	m.SetOnline(true)
	m.SetOnline(false)
	m.SetOnline(true)

	assert.True(t, signalled(sub.C()))
	assert.False(t, signalled(sub.C()))
	assert.True(t, m.Online())
}

func TestMonitorReleaseStopsDelivery(t *testing.T) {
	m := NewMonitor(nil, time.Second, zap.NewNop(), nil)
	sub := m.Watch()

	sub.Release()
	sub.Release() // idempotent

	m.SetOnline(false)
	m.SetOnline(true)
	assert.False(t, signalled(sub.C()))
}

func TestMonitorLateSubscriberSeesOnlyCurrent(t *testing.T) {
	m := NewMonitor(nil, time.Second, zap.NewNop(), nil)

	m.SetOnline(false)
	m.SetOnline(true)

	sub := m.Watch()
	defer sub.Release()

	assert.False(t, signalled(sub.C()), "missed transitions are not replayed")
	assert.True(t, m.Online())
}

func TestMonitorWithoutProberStaysOnline(t *testing.T) {
	m := NewMonitor(nil, time.Second, zap.NewNop(), nil)
	m.Start(context.Background())

	assert.True(t, m.Online())
	m.Stop()
}

func TestMonitorProbeLoopDetectsRecovery(t *testing.T) {
	probes := make(chan bool, 8)
	prober := proberFunc(func(ctx context.Context) bool {
		select {
		case v := <-probes:
			return v
		default:
			return true
		}
	})

	m := NewMonitor(prober, 10*time.Millisecond, zap.NewNop(), nil)
	sub := m.Watch()
	defer sub.Release()

	probes <- false
	probes <- true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	select {
	case <-sub.C():
	case <-time.After(2 * time.Second):
		t.Fatal("probe recovery never signalled")
	}
}

type proberFunc func(ctx context.Context) bool

func (f proberFunc) Probe(ctx context.Context) bool { return f(ctx) }

func TestHTTPProber(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	p := NewHTTPProber(healthy.URL, "/health", time.Second)
	p.Client.RetryMax = 0
	assert.True(t, p.Probe(context.Background()))

	p = NewHTTPProber(failing.URL, "/health", time.Second)
	p.Client.RetryMax = 0
	assert.False(t, p.Probe(context.Background()))

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()
	p = NewHTTPProber(dead.URL, "/health", time.Second)
	p.Client.RetryMax = 0
	assert.False(t, p.Probe(context.Background()))
}

func TestHTTPProberURLJoin(t *testing.T) {
	p := NewHTTPProber("http://localhost:8000/", "/health", time.Second)
	require.Equal(t, "http://localhost:8000/health", p.URL)
}
