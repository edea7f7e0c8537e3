package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/infrastructure/monitoring"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/id"
)

// Prober reports whether the platform is currently reachable.
type Prober interface {
	Probe(ctx context.Context) bool
}

// Monitor tracks the online flag and fans transition signals out to
// watchers. State starts optimistic: a daemon that boots offline
// observes the loss as its first transition.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	mu       sync.RWMutex
	online   bool
	watchers map[id.SubscriptionID]chan struct{}

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Subscription is a handle on transition delivery. Release it when
// done; a released subscription receives nothing further.
type Subscription struct {
	ch      chan struct{}
	release func()
	once    sync.Once
}

// C delivers one signal per reachability transition, in either
// direction. Signals carry no payload; read the current value with
// Online. Not buffered beyond one pending delivery.
func (s *Subscription) C() <-chan struct{} {
	return s.ch
}

// Release detaches the subscription. Safe to call multiple times.
func (s *Subscription) Release() {
	s.once.Do(s.release)
}

// NewMonitor creates a monitor. A nil prober means the platform offers
// no connectivity signal, which degrades to always online.
func NewMonitor(prober Prober, interval time.Duration, logger *zap.Logger, metrics *monitoring.Metrics) *Monitor {
	return &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		online:   true,
		watchers: make(map[id.SubscriptionID]chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Online returns the current reachability flag.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Watch subscribes to transition signals. Late subscribers see only the
// current value via Online; missed transitions are not replayed.
func (m *Monitor) Watch() *Subscription {
	subID := id.NewSubscriptionID()
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	m.watchers[subID] = ch
	m.mu.Unlock()

	return &Subscription{
		ch: ch,
		release: func() {
			m.mu.Lock()
			delete(m.watchers, subID)
			m.mu.Unlock()
		},
	}
}

// SetOnline applies a reachability observation. A genuine transition
// notifies every watcher once; redundant observations of the same value
// only refresh the flag.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	prev := m.online
	m.online = online

	var targets []chan struct{}
	if online != prev {
		targets = make([]chan struct{}, 0, len(m.watchers))
		for _, ch := range m.watchers {
			targets = append(targets, ch)
		}
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetOnline(online)
	}

	if online == prev {
		return
	}

	if online {
		m.logger.Info("connectivity restored")
		if m.metrics != nil {
			m.metrics.IncReconnects()
		}
	} else {
		m.logger.Warn("connectivity lost")
	}

	for _, ch := range targets {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Start launches the probe loop. Without a prober this is a no-op and
// the monitor stays always online.
func (m *Monitor) Start(ctx context.Context) {
	if m.prober == nil {
		m.logger.Info("no connectivity probe configured, assuming always online")
		close(m.done)
		return
	}

	go m.loop(ctx)
}

// Stop halts the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	<-m.done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	m.SetOnline(m.prober.Probe(ctx))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.SetOnline(m.prober.Probe(ctx))
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		}
	}
}
