package lifecycle

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/agent"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/bridge"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/connectivity"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/install"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/storage"
)

const testTimeout = 2 * time.Second

type fakeRegistrar struct {
	mu            sync.Mutex
	events        chan agent.Event
	attached      bool
	sendOK        bool
	applyOK       bool
	regErr        error
	gate          chan struct{}
	registerCalls int
	applied       int
	stopped       bool
	batches       [][]string
	sent          []bridge.Message
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{
		events:   make(chan agent.Event, 16),
		attached: true,
		sendOK:   true,
	}
}

func (f *fakeRegistrar) Register(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registerCalls++
}

func (f *fakeRegistrar) ApplyUpdate() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.applyOK {
		return false
	}
	f.applied++
	return true
}

func (f *fakeRegistrar) Attached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attached
}

func (f *fakeRegistrar) Send(msg bridge.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.sendOK {
		return false
	}
	f.sent = append(f.sent, msg)
	return true
}

func (f *fakeRegistrar) RegisterSyncTasks(names []string) error {
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), names...))
	gate := f.gate
	err := f.regErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeRegistrar) Events() <-chan agent.Event {
	return f.events
}

func (f *fakeRegistrar) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeRegistrar) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeRegistrar) batch(i int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches[i]
}

func (f *fakeRegistrar) sentMessages() []bridge.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bridge.Message(nil), f.sent...)
}

func (f *fakeRegistrar) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type fakeFlow struct {
	mu          sync.Mutex
	events      chan install.Event
	installable bool
	installed   bool
	standalone  bool
	started     bool
	prompts     int
}

func newFakeFlow() *fakeFlow {
	return &fakeFlow{events: make(chan install.Event, 8)}
}

func (f *fakeFlow) Start(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
}

func (f *fakeFlow) Prompt() (install.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.installable {
		return "", install.ErrNoPrompt
	}
	f.installable = false
	f.installed = true
	f.prompts++
	f.events <- install.Event{Kind: install.EventInstallable, Enabled: false}
	f.events <- install.Event{Kind: install.EventInstalled, Enabled: true}
	return install.OutcomeAccepted, nil
}

func (f *fakeFlow) Installable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installable
}

func (f *fakeFlow) Installed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installed
}

func (f *fakeFlow) Standalone() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.standalone
}

func (f *fakeFlow) Events() <-chan install.Event {
	return f.events
}

func (f *fakeFlow) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts
}

func newTestCoordinator(t *testing.T, reg *fakeRegistrar, flow *fakeFlow) (*Coordinator, *connectivity.Monitor) {
	t.Helper()
	mon := connectivity.NewMonitor(nil, time.Minute, zap.NewNop(), nil)
	c := New(Options{
		Monitor:   mon,
		Registrar: reg,
		Flow:      flow,
		Storage:   storage.NewManager(nil, zap.NewNop(), nil),
		Logger:    zap.NewNop(),
	})
	c.resetDelay = 150 * time.Millisecond
	return c, mon
}

// awaitState consumes updates until cond holds, failing the test on
// timeout. Every consumed snapshot is checked against the published
// invariants along the way.
func awaitState(t *testing.T, sub *Subscription, cond func(State) bool) State {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case u, ok := <-sub.Updates():
			require.True(t, ok, "subscription closed while waiting")
			assertInvariants(t, u.State)
			if cond(u.State) {
				return u.State
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state condition")
		}
	}
}

func awaitStatus(t *testing.T, sub *Subscription, want SyncStatus) State {
	t.Helper()
	return awaitState(t, sub, func(s State) bool { return s.SyncStatus == want })
}

func assertInvariants(t *testing.T, s State) {
	t.Helper()
	if s.IsInstalled {
		assert.False(t, s.IsInstallable, "installed state must retire the install affordance")
	}
	if s.IsStandalone {
		assert.True(t, s.IsInstalled, "standalone display implies an installed app")
	}
}

func TestSubscribePrimesCurrentSnapshot(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	c, _ := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	select {
	case u := <-sub.Updates():
		assert.Equal(t, SyncIdle, u.State.SyncStatus)
		assert.True(t, u.State.IsOnline)
	case <-time.After(testTimeout):
		t.Fatal("no primed snapshot delivered")
	}
}

func TestReconnectRunsOneSyncCycle(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	c, mon := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	mon.SetOnline(false)
	awaitState(t, sub, func(s State) bool { return !s.IsOnline })

	mon.SetOnline(true)
	awaitStatus(t, sub, SyncSyncing)
	awaitStatus(t, sub, SyncCompleted)
	awaitStatus(t, sub, SyncIdle)

	require.Equal(t, 1, reg.batchCount())
	assert.Equal(t, []string{"workflow-save", "task-update", "agent-status"}, reg.batch(0))
}

func TestRedundantOnlineEventsDoNotRetrigger(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	c, mon := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	// Already online: repeated online reports are not transitions.
	mon.SetOnline(true)
	mon.SetOnline(true)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, reg.batchCount())

	mon.SetOnline(false)
	awaitState(t, sub, func(s State) bool { return !s.IsOnline })
	mon.SetOnline(true)
	awaitStatus(t, sub, SyncCompleted)

	assert.Equal(t, 1, reg.batchCount())
}

func TestSyncStatusNeverSkipsSyncing(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	c, mon := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	var seen []SyncStatus
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range sub.Updates() {
			if n := len(seen); n == 0 || seen[n-1] != u.State.SyncStatus {
				seen = append(seen, u.State.SyncStatus)
			}
		}
	}()

	mon.SetOnline(false)
	time.Sleep(20 * time.Millisecond)
	mon.SetOnline(true)

	time.Sleep(400 * time.Millisecond)
	sub.Cancel()
	<-done

	require.Equal(t, []SyncStatus{SyncIdle, SyncSyncing, SyncCompleted, SyncIdle}, seen)
}

func TestMidCycleReconnectsCoalesce(t *testing.T) {
	reg := newFakeRegistrar()
	reg.gate = make(chan struct{})
	flow := newFakeFlow()
	c, mon := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	mon.SetOnline(false)
	awaitState(t, sub, func(s State) bool { return !s.IsOnline })
	mon.SetOnline(true)
	awaitStatus(t, sub, SyncSyncing)

	// Two more drops and returns while the batch is still in flight.
	for i := 0; i < 2; i++ {
		mon.SetOnline(false)
		awaitState(t, sub, func(s State) bool { return !s.IsOnline })
		mon.SetOnline(true)
		awaitState(t, sub, func(s State) bool { return s.IsOnline })
	}

	close(reg.gate)
	awaitStatus(t, sub, SyncCompleted)
	awaitStatus(t, sub, SyncIdle)

	assert.Equal(t, 1, reg.batchCount(), "mid-cycle reconnects must not start a second batch")
}

func TestDwellReconnectDoesNotRestartCycle(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	c, mon := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	mon.SetOnline(false)
	awaitState(t, sub, func(s State) bool { return !s.IsOnline })
	mon.SetOnline(true)
	awaitStatus(t, sub, SyncCompleted)

	// Reconnect during the terminal dwell: the reset still lands on
	// schedule and no new batch is registered.
	mon.SetOnline(false)
	awaitState(t, sub, func(s State) bool { return !s.IsOnline })
	mon.SetOnline(true)
	awaitStatus(t, sub, SyncIdle)
	assert.Equal(t, 1, reg.batchCount())

	// Once idle again a fresh reconnect opens a fresh cycle.
	mon.SetOnline(false)
	awaitState(t, sub, func(s State) bool { return !s.IsOnline })
	mon.SetOnline(true)
	awaitStatus(t, sub, SyncCompleted)
	assert.Equal(t, 2, reg.batchCount())
}

func TestFailedRegistrationResolvesFailed(t *testing.T) {
	reg := newFakeRegistrar()
	reg.regErr = assert.AnError
	flow := newFakeFlow()
	c, mon := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	mon.SetOnline(false)
	awaitState(t, sub, func(s State) bool { return !s.IsOnline })
	mon.SetOnline(true)

	awaitStatus(t, sub, SyncSyncing)
	awaitStatus(t, sub, SyncFailed)
	awaitStatus(t, sub, SyncIdle)
}

func TestReconnectWithoutAgentSkipsCycle(t *testing.T) {
	reg := newFakeRegistrar()
	reg.attached = false
	flow := newFakeFlow()
	c, mon := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	mon.SetOnline(false)
	awaitState(t, sub, func(s State) bool { return !s.IsOnline })
	mon.SetOnline(true)
	awaitState(t, sub, func(s State) bool { return s.IsOnline })

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, reg.batchCount())
	assert.Equal(t, SyncIdle, c.Snapshot().SyncStatus)
}

func TestAgentReportedStatusDrivesMachine(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	c, _ := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	reg.events <- agent.Event{Kind: agent.EventSyncStatus, Status: "syncing"}
	awaitStatus(t, sub, SyncSyncing)

	reg.events <- agent.Event{Kind: agent.EventSyncStatus, Status: "completed"}
	awaitStatus(t, sub, SyncCompleted)
	awaitStatus(t, sub, SyncIdle)
}

func TestUnknownAndOutOfOrderStatusReportsIgnored(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	c, _ := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	reg.events <- agent.Event{Kind: agent.EventSyncStatus, Status: "defragmenting"}
	reg.events <- agent.Event{Kind: agent.EventSyncStatus, Status: "completed"}
	reg.events <- agent.Event{Kind: agent.EventPendingActions, Count: 3}

	// The pending-action update proves both earlier reports were
	// processed and dropped without touching the status machine.
	s := awaitState(t, sub, func(s State) bool { return s.PendingActions == 3 })
	assert.Equal(t, SyncIdle, s.SyncStatus)
}

func TestInstallConsumesPromptOnce(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	flow.installable = true
	c, _ := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()
	awaitState(t, sub, func(s State) bool { return s.IsInstallable })

	outcome, ok := c.Install()
	require.True(t, ok)
	assert.Equal(t, install.OutcomeAccepted, outcome)

	_, ok = c.Install()
	assert.False(t, ok, "second install must be a no-op")

	s := awaitState(t, sub, func(s State) bool { return s.IsInstalled })
	assert.False(t, s.IsInstallable)
	assert.Equal(t, 1, flow.promptCount())
}

func TestExternalInstallSignalForcesInstalled(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	flow.installable = true
	c, _ := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()
	awaitState(t, sub, func(s State) bool { return s.IsInstallable })

	// Install happened behind the manager's back, no prompt flow seen.
	flow.mu.Lock()
	flow.installed = true
	flow.installable = false
	flow.mu.Unlock()
	flow.events <- install.Event{Kind: install.EventInstalled, Enabled: true}

	s := awaitState(t, sub, func(s State) bool { return s.IsInstalled })
	assert.False(t, s.IsInstallable)
}

func TestStandaloneRequiresInstalled(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	flow.standalone = true
	c, _ := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	// Standalone launch marker without an installation is normalized
	// away in the published snapshot.
	s := awaitState(t, sub, func(s State) bool { return s.IsOnline })
	assert.False(t, s.IsStandalone)

	flow.mu.Lock()
	flow.installed = true
	flow.mu.Unlock()
	flow.events <- install.Event{Kind: install.EventInstalled, Enabled: true}

	s = awaitState(t, sub, func(s State) bool { return s.IsInstalled })
	assert.True(t, s.IsStandalone)
}

func TestUpdateFlowPublishesReload(t *testing.T) {
	reg := newFakeRegistrar()
	reg.applyOK = true
	flow := newFakeFlow()
	c, _ := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	reg.events <- agent.Event{Kind: agent.EventStateChanged, State: agent.StateUpdateAvailable}
	awaitState(t, sub, func(s State) bool { return s.UpdateAvailable })

	require.True(t, c.ApplyUpdate())

	// The new version attaches: registrar reports the controller
	// change and settles back into registered.
	reg.events <- agent.Event{Kind: agent.EventControllerChanged, Reload: true}
	reg.events <- agent.Event{Kind: agent.EventStateChanged, State: agent.StateRegistered}

	deadline := time.After(testTimeout)
	sawReload := false
	for !sawReload {
		select {
		case u := <-sub.Updates():
			if u.Reload {
				sawReload = true
			}
		case <-deadline:
			t.Fatal("no reload notice published")
		}
	}

	awaitState(t, sub, func(s State) bool { return !s.UpdateAvailable })
}

func TestApplyUpdateWithoutPendingIsNoOp(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	c, _ := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	assert.False(t, c.ApplyUpdate())
	assert.Zero(t, reg.applied)
}

func TestCacheDropsWithoutAgent(t *testing.T) {
	reg := newFakeRegistrar()
	reg.sendOK = false
	flow := newFakeFlow()
	c, _ := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()
	before := awaitState(t, sub, func(s State) bool { return s.IsOnline })

	assert.False(t, c.CacheWorkflow(json.RawMessage(`{"id":"wf-1"}`)))
	assert.False(t, c.CacheTask(json.RawMessage(`{"id":"t-1"}`)))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, c.Snapshot(), "dropped sends must not change published state")
}

func TestCacheForwardsEnvelopes(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	c, _ := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	require.True(t, c.CacheWorkflow(json.RawMessage(`{"id":"wf-1"}`)))
	require.True(t, c.CacheTask(json.RawMessage(`{"id":"t-9"}`)))

	sent := reg.sentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, bridge.TypeCacheWorkflow, sent[0].Type)
	assert.Equal(t, bridge.TypeCacheTask, sent[1].Type)
}

func TestLastCancelTearsDown(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	c, _ := newTestCoordinator(t, reg, flow)

	a := c.Subscribe()
	b := c.Subscribe()

	a.Cancel()
	assert.False(t, reg.wasStopped(), "machinery must survive while subscribers remain")

	b.Cancel()
	assert.True(t, reg.wasStopped(), "last cancel must release the platform watches")

	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	assert.False(t, running)

	// Cancelling twice stays safe.
	b.Cancel()

	// Snapshot survives teardown.
	assert.Equal(t, SyncIdle, c.Snapshot().SyncStatus)
}

func TestStorageActionsDegradeWithoutPlatform(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	c, _ := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	assert.False(t, c.RequestPersistence(context.Background()))
	_, ok := c.QueryEstimate(context.Background())
	assert.False(t, ok)
}

func TestPendingActionsTracked(t *testing.T) {
	reg := newFakeRegistrar()
	flow := newFakeFlow()
	c, _ := newTestCoordinator(t, reg, flow)

	sub := c.Subscribe()
	defer sub.Cancel()

	reg.events <- agent.Event{Kind: agent.EventPendingActions, Count: 7}
	awaitState(t, sub, func(s State) bool { return s.PendingActions == 7 })

	reg.events <- agent.Event{Kind: agent.EventPendingActions, Count: 0}
	awaitState(t, sub, func(s State) bool { return s.PendingActions == 0 })
}
