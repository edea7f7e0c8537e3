package syncagent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/id"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/paths"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/utils"
)

const spoolExt = ".json"

// Action is one deferred mutation, durable until replayed. Key is the
// payload's derived identity; re-queuing the same record replaces the
// earlier payload instead of queueing a second action.
type Action struct {
	ID       id.ActionID     `json:"id"`
	Kind     string          `json:"kind"`
	Key      string          `json:"key"`
	Payload  json.RawMessage `json:"payload"`
	QueuedAt time.Time       `json:"queued_at"`
}

// Spool is the agent's offline action queue: one file per action, named
// by action ID so directory order is queue order. An observer hears the
// pending count after every change.
type Spool struct {
	dir    string
	logger *zap.Logger

	mu       sync.Mutex
	onChange func(int)
}

// NewSpool creates a spool over the layout's spool directory.
func NewSpool(layout paths.Layout, logger *zap.Logger) *Spool {
	return &Spool{dir: layout.Spool(), logger: logger}
}

// OnChange registers the observer notified with the pending count after
// every append or completion. One observer at a time; nil clears.
func (s *Spool) OnChange(fn func(int)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Append queues an action. An action of the same kind and payload key
// already pending is updated in place, keeping its queue position.
func (s *Spool) Append(kind string, payload json.RawMessage) (Action, error) {
	key := utils.PayloadKey(payload)

	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.pendingLocked()
	if err != nil {
		return Action{}, err
	}

	act := Action{
		ID:       id.NewActionID(),
		Kind:     kind,
		Key:      key,
		Payload:  payload,
		QueuedAt: time.Now().UTC(),
	}
	for _, prev := range pending {
		if prev.Kind == kind && prev.Key == key {
			act.ID = prev.ID
			act.QueuedAt = prev.QueuedAt
			break
		}
	}

	if err := s.writeLocked(act); err != nil {
		return Action{}, err
	}
	s.logger.Debug("action spooled",
		zap.String("action_id", act.ID.String()),
		zap.String("kind", kind),
		zap.String("key", key),
	)
	s.notifyLocked()
	return act, nil
}

// Pending returns the queued actions, oldest first. Unreadable entries
// are skipped with a warning, never fatal.
func (s *Spool) Pending() ([]Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

// Complete removes a replayed action from the queue.
func (s *Spool) Complete(actionID id.ActionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.actionPath(actionID)); err != nil {
		return fmt.Errorf("complete %s: %w", actionID, err)
	}
	s.notifyLocked()
	return nil
}

// Count returns the number of pending actions.
func (s *Spool) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked()
}

func (s *Spool) pendingLocked() ([]Action, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read spool: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), spoolExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	// Action IDs embed a ULID, so name order is queue order.
	sort.Strings(names)

	actions := make([]Action, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable spool entry", zap.String("entry", name), zap.Error(err))
			continue
		}
		var act Action
		if err := sonic.Unmarshal(data, &act); err != nil {
			s.logger.Warn("skipping malformed spool entry", zap.String("entry", name), zap.Error(err))
			continue
		}
		actions = append(actions, act)
	}
	return actions, nil
}

func (s *Spool) writeLocked(act Action) error {
	data, err := sonic.Marshal(act)
	if err != nil {
		return fmt.Errorf("encode action: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("spool action: %w", err)
	}

	final := s.actionPath(act.ID)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("spool action: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("spool action: %w", err)
	}
	return nil
}

func (s *Spool) countLocked() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), spoolExt) {
			n++
		}
	}
	return n
}

func (s *Spool) notifyLocked() {
	if s.onChange != nil {
		s.onChange(s.countLocked())
	}
}

func (s *Spool) actionPath(actionID id.ActionID) string {
	return filepath.Join(s.dir, actionID.String()+spoolExt)
}
