package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/agent/release"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/bridge"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/infrastructure/monitoring"
)

// ErrNoAgent reports that an operation needs a registered agent and none
// is available.
var ErrNoAgent = errors.New("agent: no agent registered")

const (
	eventBuffer = 16
	stopTimeout = 5 * time.Second
)

// Config controls how the registrar runs the agent.
type Config struct {
	// Binary overrides release resolution with an explicit agent path.
	// Intended for development; the version reports as "dev".
	Binary string

	// DataDir is where task registrations are written for agent pickup.
	DataDir string

	// BridgeURL is the daemon endpoint the agent dials back into.
	BridgeURL string

	// UpstreamURL is handed to the agent for replaying queued actions.
	UpstreamURL string

	// RestartBackoff is the pause before restarting a crashed agent.
	RestartBackoff time.Duration
}

// Registrar supervises the sync agent process and owns its bridge peer.
// All methods are safe for concurrent use.
type Registrar struct {
	cfg     Config
	store   *release.Store
	runner  Runner
	logger  *zap.Logger
	metrics *monitoring.Metrics

	events chan Event

	mu        sync.RWMutex
	state     State
	version   string
	attached  string
	pending   *release.Release
	switching bool
	peer      *bridge.Peer
	proc      Process
	stopping  bool
	superDone chan struct{}
}

// NewRegistrar creates a registrar. A nil runner defaults to os/exec;
// metrics may be nil.
func NewRegistrar(cfg Config, store *release.Store, runner Runner, logger *zap.Logger, metrics *monitoring.Metrics) *Registrar {
	if runner == nil {
		runner = NewExecRunner()
	}
	if cfg.RestartBackoff <= 0 {
		cfg.RestartBackoff = 2 * time.Second
	}
	return &Registrar{
		cfg:     cfg,
		store:   store,
		runner:  runner,
		logger:  logger,
		metrics: metrics,
		events:  make(chan Event, eventBuffer),
		state:   StateUnregistered,
	}
}

// Events delivers registrar notifications. Slow consumers lose events
// rather than blocking supervision.
func (r *Registrar) Events() <-chan Event {
	return r.events
}

// State returns the current registrar state.
func (r *Registrar) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Version returns the version of the supervised agent, empty when none.
func (r *Registrar) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// UpdateAvailable reports whether a newer release is staged behind a
// running agent.
func (r *Registrar) UpdateAvailable() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state == StateUpdateAvailable
}

// Attached reports whether a live agent peer controls the bridge.
func (r *Registrar) Attached() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peer != nil
}

// Register resolves the current release and brings the agent under
// supervision. Calling it again while an agent is registering or
// registered is a no-op. A missing or unverifiable release leaves the
// daemon running without an agent; that is logged, not an error.
func (r *Registrar) Register(ctx context.Context) {
	r.mu.RLock()
	busy := r.state != StateUnregistered || r.stopping
	r.mu.RUnlock()
	if busy {
		return
	}

	binary, version, err := r.resolveBinary()
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordOpError("agent", "register", "no_release")
		}
		r.logger.Info("no sync agent available, continuing without one", zap.Error(err))
		return
	}

	done := make(chan struct{})
	r.mu.Lock()
	if r.state != StateUnregistered || r.stopping {
		r.mu.Unlock()
		return
	}
	r.state = StateRegistering
	r.version = version
	r.superDone = done
	r.mu.Unlock()

	r.logger.Info("registering sync agent",
		zap.String("version", version),
		zap.String("binary", binary),
	)
	r.emit(Event{Kind: EventStateChanged, State: StateRegistering})

	go func() {
		defer close(done)
		r.supervise(ctx, binary, version)
	}()
}

// Stop shuts supervision down and waits for the supervisor to exit.
// The registrar is reusable afterwards; a later Register starts over.
func (r *Registrar) Stop() {
	r.mu.Lock()
	if r.stopping {
		r.mu.Unlock()
		return
	}
	r.stopping = true
	proc := r.proc
	peer := r.peer
	done := r.superDone
	r.mu.Unlock()

	if peer != nil {
		peer.Close()
	}
	if proc != nil {
		if err := proc.Stop(); err != nil {
			r.logger.Warn("agent stop signal failed", zap.Error(err))
		}
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(stopTimeout):
			r.logger.Warn("agent supervisor did not exit in time")
		}
	}

	r.mu.Lock()
	r.stopping = false
	r.state = StateUnregistered
	r.version = ""
	r.attached = ""
	r.pending = nil
	r.switching = false
	r.peer = nil
	r.superDone = nil
	r.mu.Unlock()
}

// AttachConn adopts an upgraded agent connection as the bridge peer and
// starts dispatching its messages. The reported version decides whether
// control changed hands. Attaching replaces any previous peer; attaching
// while unregistered closes the connection.
func (r *Registrar) AttachConn(conn *websocket.Conn, version string) *bridge.Peer {
	r.mu.Lock()
	if r.state == StateUnregistered || r.stopping {
		r.mu.Unlock()
		r.logger.Warn("rejecting agent connection, no registration in progress",
			zap.String("version", version),
		)
		conn.Close()
		return nil
	}

	peer := bridge.NewPeer(conn, r.logger)
	old := r.peer
	r.peer = peer
	prev := r.attached
	r.attached = version
	changed := prev != "" && prev != version
	was := r.state
	if r.state == StateRegistering || (r.state == StateUpdateAvailable && changed) {
		r.state = StateRegistered
	}
	state := r.state
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if r.metrics != nil {
		r.metrics.SetAgentConnected(true)
	}
	r.logger.Info("agent attached",
		zap.String("conn_id", peer.ID().String()),
		zap.String("version", version),
	)

	if state != was {
		r.emit(Event{Kind: EventStateChanged, State: state})
	}
	if changed {
		r.emit(Event{Kind: EventControllerChanged, Reload: true})
	}

	go func() {
		_ = peer.ReadLoop(r.handleInbound)
		r.detach(peer)
	}()
	return peer
}

// Send queues an outbound command for the agent. Delivery is
// fire-and-forget: without an attached agent, or with a saturated
// outbox, the message is dropped with a warning and Send returns false.
func (r *Registrar) Send(msg bridge.Message) bool {
	r.mu.RLock()
	peer := r.peer
	r.mu.RUnlock()

	if peer == nil {
		r.logger.Warn("dropping outbound message, no agent attached",
			zap.String("type", msg.Type),
		)
		if r.metrics != nil {
			r.metrics.RecordBridgeDropped(msg.Type)
		}
		return false
	}

	if err := peer.Send(msg); err != nil {
		r.logger.Warn("dropping outbound message",
			zap.String("type", msg.Type),
			zap.Error(err),
		)
		if r.metrics != nil {
			r.metrics.RecordBridgeDropped(msg.Type)
		}
		return false
	}

	if r.metrics != nil {
		r.metrics.RecordBridgeMessage("outbound", msg.Type)
	}
	return true
}

// OnRelease reacts to a newly installed release. While an agent is
// running an older version the registrar moves to update available;
// otherwise the release simply becomes the next registration's pick.
func (r *Registrar) OnRelease(rel release.Release) {
	r.mu.Lock()
	running := r.state == StateRegistered || r.state == StateUpdateAvailable
	base := r.version
	if r.pending != nil {
		base = r.pending.Version()
	}
	if !running || release.CompareVersions(rel.Version(), base) <= 0 {
		r.mu.Unlock()
		return
	}
	r.pending = &rel
	transition := r.state != StateUpdateAvailable
	r.state = StateUpdateAvailable
	current := r.version
	r.mu.Unlock()

	r.logger.Info("agent update available",
		zap.String("current", current),
		zap.String("next", rel.Version()),
	)
	if transition {
		r.emit(Event{Kind: EventStateChanged, State: StateUpdateAvailable})
	}
}

// WatchUpdates consumes release notifications until ctx ends or the
// channel closes.
func (r *Registrar) WatchUpdates(ctx context.Context, updates <-chan release.Release) {
	go func() {
		for {
			select {
			case rel, ok := <-updates:
				if !ok {
					return
				}
				r.OnRelease(rel)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ApplyUpdate tells the running agent to yield so the pending release
// can take over. Valid only while an update is available; anything else
// is a no-op returning false.
func (r *Registrar) ApplyUpdate() bool {
	r.mu.Lock()
	if r.state != StateUpdateAvailable || r.pending == nil {
		r.mu.Unlock()
		return false
	}
	peer := r.peer
	r.switching = true
	next := r.pending.Version()
	r.mu.Unlock()

	if peer == nil {
		// Agent is down; the supervisor picks the pending release up on
		// its next restart.
		r.logger.Info("no agent attached, update applies on restart",
			zap.String("next", next),
		)
		return true
	}

	r.logger.Info("applying agent update", zap.String("next", next))
	if !r.Send(bridge.NewSkipWaiting()) {
		r.mu.Lock()
		r.switching = false
		r.mu.Unlock()
		return false
	}
	return true
}

func (r *Registrar) resolveBinary() (string, string, error) {
	if r.cfg.Binary != "" {
		if _, err := os.Stat(r.cfg.Binary); err != nil {
			return "", "", fmt.Errorf("agent binary: %w", err)
		}
		return r.cfg.Binary, "dev", nil
	}

	rel, ok := r.store.Current()
	if !ok {
		return "", "", errors.New("no agent release installed")
	}
	if err := r.store.Verify(rel); err != nil {
		return "", "", err
	}
	return rel.BinaryPath(), rel.Version(), nil
}

// supervise keeps the agent process alive until Stop or ctx
// cancellation. Crashes restart after a backoff; an exit while a switch
// is pending restarts immediately on the pending release.
func (r *Registrar) supervise(ctx context.Context, binary, version string) {
	for {
		r.mu.Lock()
		if r.stopping || ctx.Err() != nil {
			r.mu.Unlock()
			r.setState(StateUnregistered)
			return
		}
		if r.switching && r.pending != nil {
			binary = r.pending.BinaryPath()
			version = r.pending.Version()
			r.pending = nil
			r.switching = false
			r.logger.Info("switching to updated agent", zap.String("version", version))
		}
		r.mu.Unlock()

		proc, err := r.runner.Start(ctx, binary, r.agentEnv(version))
		if err != nil {
			if r.metrics != nil {
				r.metrics.RecordOpError("agent", "start", "spawn")
			}
			r.logger.Error("agent failed to start",
				zap.String("binary", binary),
				zap.Error(err),
			)
			r.setState(StateUnregistered)
			return
		}

		r.mu.Lock()
		r.proc = proc
		r.version = version
		r.mu.Unlock()
		r.logger.Info("agent process started",
			zap.String("version", version),
			zap.Int("pid", proc.PID()),
		)

		err = proc.Wait()

		r.mu.Lock()
		r.proc = nil
		stopping := r.stopping || ctx.Err() != nil
		switching := r.switching && r.pending != nil
		r.mu.Unlock()

		if stopping {
			r.setState(StateUnregistered)
			return
		}
		if switching {
			continue
		}

		r.logger.Warn("agent exited unexpectedly, restarting",
			zap.String("version", version),
			zap.Error(err),
			zap.Duration("backoff", r.cfg.RestartBackoff),
		)
		if r.metrics != nil {
			r.metrics.IncAgentRestarts()
		}

		select {
		case <-time.After(r.cfg.RestartBackoff):
		case <-ctx.Done():
			r.setState(StateUnregistered)
			return
		}
	}
}

func (r *Registrar) handleInbound(msg bridge.Message) {
	if r.metrics != nil {
		r.metrics.RecordBridgeMessage("inbound", msg.Type)
	}
	switch msg.Type {
	case bridge.TypeSyncStatus:
		r.emit(Event{Kind: EventSyncStatus, Status: msg.Status})
	case bridge.TypePendingActions:
		r.emit(Event{Kind: EventPendingActions, Count: msg.PendingCount()})
	default:
		r.logger.Debug("ignoring unhandled agent message", zap.String("type", msg.Type))
	}
}

func (r *Registrar) detach(peer *bridge.Peer) {
	r.mu.Lock()
	current := r.peer == peer
	if current {
		r.peer = nil
	}
	r.mu.Unlock()

	if !current {
		return
	}
	if r.metrics != nil {
		r.metrics.SetAgentConnected(false)
	}
	r.logger.Info("agent detached", zap.String("conn_id", peer.ID().String()))
}

func (r *Registrar) setState(next State) {
	r.mu.Lock()
	if r.state == next {
		r.mu.Unlock()
		return
	}
	r.state = next
	r.mu.Unlock()
	r.emit(Event{Kind: EventStateChanged, State: next})
}

func (r *Registrar) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		r.logger.Warn("dropping registrar event", zap.String("kind", ev.Kind.String()))
	}
}

func (r *Registrar) agentEnv(version string) []string {
	return []string{
		"SYNCAGENT_BRIDGE_URL=" + r.cfg.BridgeURL,
		"SYNCAGENT_DATA_DIR=" + r.cfg.DataDir,
		"SYNCAGENT_UPSTREAM_URL=" + r.cfg.UpstreamURL,
		"SYNCAGENT_VERSION=" + version,
	}
}
