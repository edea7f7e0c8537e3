package lifecycle

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/agent"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/bridge"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/connectivity"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/infrastructure/monitoring"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/install"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/id"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/storage"
)

const (
	// subscriptionBuffer bounds pending updates per subscriber. A
	// consumer that falls further behind loses its oldest snapshots,
	// never the newest.
	subscriptionBuffer = 16

	// applyBuffer bounds mutations queued for the run loop.
	applyBuffer = 32
)

// AgentRegistrar is the slice of the agent supervisor the coordinator
// drives. Satisfied by *agent.Registrar.
type AgentRegistrar interface {
	Register(ctx context.Context)
	ApplyUpdate() bool
	Attached() bool
	Send(msg bridge.Message) bool
	RegisterSyncTasks(names []string) error
	Events() <-chan agent.Event
	Stop()
}

// InstallFlow is the slice of the install manager the coordinator
// drives. Satisfied by *install.Flow.
type InstallFlow interface {
	Start(ctx context.Context)
	Prompt() (install.Outcome, error)
	Installable() bool
	Installed() bool
	Standalone() bool
	Events() <-chan install.Event
}

// Update is one publication to a subscriber. State is always the
// complete current snapshot; Reload additionally tells consumers to
// rebuild their in-memory view because a different agent version took
// over.
type Update struct {
	State  State `json:"state"`
	Reload bool  `json:"reload,omitempty"`
}

// Subscription is a consumer's handle on the published state. Cancel it
// when done; the coordinator tears its machinery down when the last
// subscription goes.
type Subscription struct {
	id     id.SubscriptionID
	ch     chan Update
	cancel func()
	once   sync.Once
}

// Updates delivers complete snapshots, newest last. The channel closes
// after Cancel.
func (s *Subscription) Updates() <-chan Update {
	return s.ch
}

// Cancel releases the subscription. Safe to call multiple times.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Options collects the coordinator's collaborators. Monitor, Registrar
// and Flow are required; Storage, Logger and Metrics may be nil.
type Options struct {
	Monitor   *connectivity.Monitor
	Registrar AgentRegistrar
	Flow      InstallFlow
	Storage   *storage.Manager
	Logger    *zap.Logger
	Metrics   *monitoring.Metrics
}

// Coordinator folds the platform's event sources into one State and
// owns the consumer action surface. All state mutation happens on its
// run loop goroutine; reads and actions are safe from any goroutine.
type Coordinator struct {
	monitor   *connectivity.Monitor
	registrar AgentRegistrar
	flow      InstallFlow
	storage   *storage.Manager
	logger    *zap.Logger
	metrics   *monitoring.Metrics

	// resetDelay is StatusResetDelay; tests shorten it directly.
	resetDelay time.Duration

	mu      sync.Mutex
	state   State
	subs    map[id.SubscriptionID]chan Update
	running bool
	retired bool
	applyCh chan func()
	stopCh  chan struct{}
	doneCh  chan struct{}
	cancel  context.CancelFunc

	// Sync cycle bookkeeping, touched only on the run loop.
	cycleID    id.CycleID
	cycleStart time.Time
}

// New constructs an inert coordinator. Nothing runs until the first
// Subscribe.
func New(opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		monitor:    opts.Monitor,
		registrar:  opts.Registrar,
		flow:       opts.Flow,
		storage:    opts.Storage,
		logger:     logger,
		metrics:    opts.Metrics,
		resetDelay: StatusResetDelay,
		state:      State{IsOnline: true, SyncStatus: SyncIdle},
		subs:       make(map[id.SubscriptionID]chan Update),
	}
}

// Snapshot returns the current state. Valid at any point in the
// coordinator's life, including before the first subscriber.
func (c *Coordinator) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a consumer. The first subscriber starts the run
// loop and acquires every platform watch; each subscription is primed
// with the current snapshot so late subscribers see the present, not
// history.
func (c *Coordinator) Subscribe() *Subscription {
	subID := id.NewSubscriptionID()
	ch := make(chan Update, subscriptionBuffer)

	c.mu.Lock()
	c.subs[subID] = ch
	first := len(c.subs) == 1 && !c.running
	retired := c.retired
	count := len(c.subs)
	// Prime under the lock so no publication can slip in ahead of it.
	ch <- Update{State: c.state}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SetSubscribers(count)
	}
	if retired {
		c.logger.Warn("subscription on retired coordinator, no further updates will arrive")
	} else if first {
		c.start()
	}

	return &Subscription{
		id:     subID,
		ch:     ch,
		cancel: func() { c.unsubscribe(subID) },
	}
}

func (c *Coordinator) unsubscribe(subID id.SubscriptionID) {
	c.mu.Lock()
	ch, ok := c.subs[subID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.subs, subID)
	close(ch)
	last := len(c.subs) == 0
	count := len(c.subs)
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SetSubscribers(count)
	}
	if last {
		c.stopLoop()
	}
}

// start acquires the platform watches and spawns the run loop. The
// watch on connectivity is taken before the sources start so the first
// transition cannot fall between the cracks.
func (c *Coordinator) start() {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.running || c.retired {
		c.mu.Unlock()
		cancel()
		return
	}
	c.running = true
	c.cancel = cancel
	c.applyCh = make(chan func(), applyBuffer)
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	c.logger.Info("coordinator starting")

	monSub := c.monitor.Watch()
	c.monitor.Start(ctx)
	c.flow.Start(ctx)
	c.registrar.Register(ctx)

	go c.run(monSub)
}

// stopLoop releases every watch the coordinator holds, symmetrically to
// start. The coordinator stays readable afterwards but never runs
// again.
func (c *Coordinator) stopLoop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.retired = true
	cancel := c.cancel
	stop := c.stopCh
	done := c.doneCh
	c.mu.Unlock()

	close(stop)
	<-done
	cancel()
	c.monitor.Stop()
	c.registrar.Stop()
	c.logger.Info("coordinator stopped")
}

// post hands a mutation to the run loop. Dropped silently once the loop
// is gone; late completions after teardown have no one left to inform.
func (c *Coordinator) post(fn func()) {
	c.mu.Lock()
	apply, stop := c.applyCh, c.stopCh
	c.mu.Unlock()
	if apply == nil {
		return
	}
	select {
	case apply <- fn:
	case <-stop:
	}
}

func (c *Coordinator) run(monSub *connectivity.Subscription) {
	c.mu.Lock()
	apply, stop, done := c.applyCh, c.stopCh, c.doneCh
	c.mu.Unlock()

	defer close(done)
	defer monSub.Release()

	agentEvents := c.registrar.Events()
	flowEvents := c.flow.Events()

	// Fold the sources' current values into the first real snapshot.
	c.setState(func(s *State) {
		s.IsOnline = c.monitor.Online()
		s.IsInstallable = c.flow.Installable()
		s.IsInstalled = c.flow.Installed()
		s.IsStandalone = c.flow.Standalone()
	})

	for {
		select {
		case fn := <-apply:
			fn()
		case <-monSub.C():
			c.onConnectivity()
		case ev, ok := <-agentEvents:
			if !ok {
				agentEvents = nil
				continue
			}
			c.onAgentEvent(ev)
		case ev, ok := <-flowEvents:
			if !ok {
				flowEvents = nil
				continue
			}
			c.onInstallEvent(ev)
		case <-stop:
			return
		}
	}
}

// onConnectivity folds a reachability transition. Every transition
// republishes the flag; only the offline-to-online edge can open a sync
// cycle.
func (c *Coordinator) onConnectivity() {
	online := c.monitor.Online()
	c.setState(func(s *State) {
		s.IsOnline = online
	})
	if online {
		c.onReconnect()
	}
}

func (c *Coordinator) onAgentEvent(ev agent.Event) {
	switch ev.Kind {
	case agent.EventStateChanged:
		c.setState(func(s *State) {
			s.UpdateAvailable = ev.State == agent.StateUpdateAvailable
		})
	case agent.EventControllerChanged:
		// A different agent version controls the bridge now; cached
		// consumer state may describe a world that no longer exists.
		c.logger.Info("agent controller changed, telling consumers to reload")
		c.publishReload()
	case agent.EventSyncStatus:
		c.applyWireStatus(ev.Status)
	case agent.EventPendingActions:
		if c.metrics != nil {
			c.metrics.SetPendingActions(ev.Count)
		}
		c.setState(func(s *State) {
			s.PendingActions = ev.Count
		})
	}
}

func (c *Coordinator) onInstallEvent(ev install.Event) {
	switch ev.Kind {
	case install.EventInstallable:
		c.setState(func(s *State) {
			s.IsInstallable = ev.Enabled
		})
	case install.EventInstalled:
		// Re-probe display mode: standalone only means anything while
		// an installation exists.
		standalone := c.flow.Standalone()
		c.setState(func(s *State) {
			s.IsInstalled = ev.Enabled
			s.IsStandalone = ev.Enabled && standalone
		})
	}
}

// setState applies one mutation and publishes the normalized result if
// anything changed. Run-loop only.
func (c *Coordinator) setState(mutate func(*State)) {
	c.mu.Lock()
	next := c.state
	mutate(&next)
	next = next.normalized()
	if next == c.state {
		c.mu.Unlock()
		return
	}
	c.state = next
	c.publishLocked(Update{State: next})
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.IncSnapshotsPublished()
	}
}

// publishReload re-publishes the current snapshot with the reload flag
// set.
func (c *Coordinator) publishReload() {
	c.mu.Lock()
	c.publishLocked(Update{State: c.state, Reload: true})
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.IncSnapshotsPublished()
	}
}

// publishLocked fans an update out to every subscriber. The caller
// holds c.mu, making this the only sender on every subscription
// channel; a full buffer sheds its oldest entry to make room.
func (c *Coordinator) publishLocked(u Update) {
	for _, ch := range c.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	}
}
