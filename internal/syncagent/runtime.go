package syncagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/fsnotify/fsnotify"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/agent"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/bridge"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/paths"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/utils"
)

// errStandDown signals an orderly exit ordered over the bridge.
var errStandDown = errors.New("syncagent: stand-down ordered")

// taskResources maps registered sync task names to upstream REST
// resources under /agents/api/.
var taskResources = map[string]string{
	"workflow-save": "workflows",
	"task-update":   "tasks",
}

// agentStatusTask reports the agent's own record upstream rather than
// replaying spooled actions.
const agentStatusTask = "agent-status"

// Runtime is the agent process: one bridge session at a time, a cache
// for pushed payloads, a spool of deferred actions, and a watch on the
// task registration file that triggers replay.
type Runtime struct {
	cfg    Config
	layout paths.Layout
	store  *Store
	spool  *Spool
	client *resty.Client
	logger *zap.Logger

	// instance distinguishes this process in upstream status reports
	// across restarts of the same version.
	instance string

	syncCh chan struct{}
}

// NewRuntime assembles the agent from its configuration.
func NewRuntime(cfg Config, logger *zap.Logger) (*Runtime, error) {
	layout := paths.New(cfg.DataDir)
	store, err := NewStore(layout, logger)
	if err != nil {
		return nil, err
	}

	client := resty.New().
		SetBaseURL(cfg.UpstreamURL).
		SetTimeout(cfg.RequestTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("User-Agent", "syncagent/"+cfg.Version).
		SetHeader("Content-Type", "application/json")

	return &Runtime{
		cfg:      cfg,
		layout:   layout,
		store:    store,
		spool:    NewSpool(layout, logger),
		client:   client,
		logger:   logger,
		instance: uuid.NewString(),
		syncCh:   make(chan struct{}, 1),
	}, nil
}

// Spool exposes the action queue, so callers embedding the runtime can
// defer their own mutations.
func (rt *Runtime) Spool() *Spool {
	return rt.spool
}

// Run connects to the bridge and serves until the context ends or the
// daemon orders a stand-down. A nil return means the process should
// exit cleanly so the staged release can take over.
func (rt *Runtime) Run(ctx context.Context) error {
	defer rt.store.Close()

	for _, dir := range []string{rt.layout.Cache(), rt.layout.Spool()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("prepare data dir: %w", err)
		}
	}

	rt.logger.Info("sync agent starting",
		zap.String("version", rt.cfg.Version),
		zap.String("instance", rt.instance),
	)

	watcher, err := rt.watchTasks(ctx)
	if err != nil {
		return err
	}
	defer watcher.Close()

	for {
		err := rt.session(ctx)
		if errors.Is(err, errStandDown) {
			rt.logger.Info("stand-down acknowledged, exiting")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rt.logger.Warn("bridge session ended",
			zap.Error(err),
			zap.Duration("backoff", rt.cfg.ReconnectBackoff),
		)
		select {
		case <-time.After(rt.cfg.ReconnectBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// session runs one bridge connection until it drops or the daemon
// orders a stand-down.
func (rt *Runtime) session(ctx context.Context) error {
	target, err := rt.bridgeURL()
	if err != nil {
		return err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial bridge: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	peer := bridge.NewPeer(conn, rt.logger)
	defer peer.Close()
	rt.logger.Info("bridge attached",
		zap.String("conn_id", peer.ID().String()),
		zap.String("version", rt.cfg.Version),
	)

	stand := make(chan struct{})
	var standOnce sync.Once

	readErr := make(chan error, 1)
	go func() {
		readErr <- peer.ReadLoop(func(msg bridge.Message) {
			rt.dispatch(msg, func() {
				standOnce.Do(func() { close(stand) })
			})
		})
	}()

	rt.spool.OnChange(func(count int) {
		_ = peer.Send(bridge.NewPendingActions(count))
	})
	defer rt.spool.OnChange(nil)
	if err := peer.Send(bridge.NewPendingActions(rt.spool.Count())); err != nil {
		return err
	}

	// A backlog left over from the previous session drains as soon as a
	// registration is in place.
	if rt.spool.Count() > 0 {
		if _, err := os.Stat(rt.layout.TasksFile()); err == nil {
			rt.requestSync()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stand:
			return errStandDown
		case err := <-readErr:
			return err
		case <-rt.syncCh:
			rt.runSync(ctx, peer)
		}
	}
}

// dispatch handles one daemon message. Cache pushes are written through
// the store and spooled for upstream replay; a stand-down order ends
// the session loop.
func (rt *Runtime) dispatch(msg bridge.Message, standDown func()) {
	switch msg.Type {
	case bridge.TypeSkipWaiting:
		rt.logger.Info("stand-down ordered")
		standDown()
	case bridge.TypeCacheWorkflow:
		rt.cachePush(KindWorkflows, "workflow-save", msg.Payload)
	case bridge.TypeCacheTask:
		rt.cachePush(KindTasks, "task-update", msg.Payload)
	default:
		rt.logger.Warn("ignoring unexpected bridge message", zap.String("type", msg.Type))
	}
}

// cachePush stores a pushed payload and defers the matching upstream
// mutation. The payload stays visible offline immediately; the spool
// carries it upstream on the next sync cycle.
func (rt *Runtime) cachePush(kind, task string, payload json.RawMessage) {
	key, err := rt.store.Put(kind, payload)
	if err != nil {
		rt.logger.Warn("cache push rejected", zap.String("kind", kind), zap.Error(err))
		return
	}
	if _, err := rt.spool.Append(task, payload); err != nil {
		rt.logger.Warn("cache push not spooled", zap.String("kind", kind), zap.Error(err))
		return
	}
	rt.logger.Debug("cache push stored", zap.String("kind", kind), zap.String("key", key))
}

// watchTasks watches the data directory for task registrations. Batches
// land through a rename, so creates and writes of the well-known name
// both count.
func (rt *Runtime) watchTasks(ctx context.Context) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch tasks: %w", err)
	}
	if err := watcher.Add(rt.layout.Root()); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch tasks: %w", err)
	}

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != paths.TasksFileName {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				rt.logger.Debug("task registration observed")
				rt.requestSync()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				rt.logger.Warn("task watch error", zap.Error(err))
			case <-ctx.Done():
				return
			}
		}
	}()
	return watcher, nil
}

// requestSync coalesces registration events into at most one queued
// run.
func (rt *Runtime) requestSync() {
	select {
	case rt.syncCh <- struct{}{}:
	default:
	}
}

// runSync executes one sync cycle: read the registered batch, replay
// the spool for its tasks, and report the outcome over the bridge.
func (rt *Runtime) runSync(ctx context.Context, peer *bridge.Peer) {
	reg, err := rt.readRegistration()
	if err != nil {
		rt.logger.Warn("sync skipped, registration unreadable", zap.Error(err))
		return
	}

	_ = peer.Send(bridge.NewSyncStatus(bridge.StatusSyncing))
	rt.logger.Info("sync started", zap.Strings("tasks", reg.Tasks))

	if err := rt.replay(ctx, reg.Tasks); err != nil {
		rt.logger.Warn("sync failed", zap.Error(err))
		_ = peer.Send(bridge.NewSyncStatus(bridge.StatusFailed))
		return
	}
	_ = peer.Send(bridge.NewSyncStatus(bridge.StatusCompleted))
	rt.logger.Info("sync completed")
}

func (rt *Runtime) readRegistration() (agent.TaskRegistration, error) {
	data, err := os.ReadFile(rt.layout.TasksFile())
	if err != nil {
		return agent.TaskRegistration{}, fmt.Errorf("read registration: %w", err)
	}
	var reg agent.TaskRegistration
	if err := sonic.Unmarshal(data, &reg); err != nil {
		return agent.TaskRegistration{}, fmt.Errorf("parse registration: %w", err)
	}
	return reg, nil
}

// replay drains the spool for every registered task, oldest first, then
// reports the agent's own status when the batch asks for it. The first
// upstream failure aborts the run; completed actions stay completed and
// the remainder waits for the next cycle.
func (rt *Runtime) replay(ctx context.Context, tasks []string) error {
	registered := make(map[string]bool, len(tasks))
	for _, name := range tasks {
		registered[name] = true
	}

	actions, err := rt.spool.Pending()
	if err != nil {
		return err
	}
	for _, act := range actions {
		if !registered[act.Kind] {
			continue
		}
		if err := rt.push(ctx, act); err != nil {
			return fmt.Errorf("replay %s: %w", act.ID, err)
		}
		if err := rt.spool.Complete(act.ID); err != nil {
			return err
		}
	}

	if registered[agentStatusTask] {
		if err := rt.pushStatus(ctx); err != nil {
			return fmt.Errorf("replay %s: %w", agentStatusTask, err)
		}
	}
	return nil
}

// push replays one action against the upstream REST surface: an update
// when the payload names its record, a create otherwise.
func (rt *Runtime) push(ctx context.Context, act Action) error {
	resource, ok := taskResources[act.Kind]
	if !ok {
		// Only possible after a downgrade; dropping beats wedging the
		// spool on an action nothing can replay.
		rt.logger.Warn("dropping action of unknown kind",
			zap.String("action_id", act.ID.String()),
			zap.String("kind", act.Kind),
		)
		return nil
	}

	base := "/agents/api/" + resource + "/"
	req := rt.client.R().SetContext(ctx).SetBody([]byte(act.Payload))

	var resp *resty.Response
	var err error
	if rid, ok := utils.PayloadID(act.Payload); ok {
		resp, err = req.Put(base + rid + "/")
	} else {
		resp, err = req.Post(base)
	}
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("upstream rejected %s: %s", act.Kind, resp.Status())
	}
	rt.logger.Debug("action replayed",
		zap.String("action_id", act.ID.String()),
		zap.String("kind", act.Kind),
		zap.Int("status", resp.StatusCode()),
	)
	return nil
}

// pushStatus reports the agent's record to the upstream agents
// resource.
func (rt *Runtime) pushStatus(ctx context.Context) error {
	doc := map[string]any{
		"agent":           "syncagent",
		"instance":        rt.instance,
		"version":         rt.cfg.Version,
		"pending_actions": rt.spool.Count(),
		"synced_at":       time.Now().UTC(),
	}
	resp, err := rt.client.R().SetContext(ctx).SetBody(doc).Post("/agents/api/agents/")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("upstream rejected status: %s", resp.Status())
	}
	return nil
}

func (rt *Runtime) bridgeURL() (string, error) {
	u, err := url.Parse(rt.cfg.BridgeURL)
	if err != nil {
		return "", fmt.Errorf("bridge url: %w", err)
	}
	q := u.Query()
	q.Set("version", rt.cfg.Version)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
