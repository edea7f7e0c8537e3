package agent

import (
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/paths"
)

// RegistrationsFile is the file agents watch for sync task batches,
// relative to the data directory.
const RegistrationsFile = paths.TasksFileName

// TaskRegistration is the on-disk batch of registered sync tasks.
type TaskRegistration struct {
	Tasks        []string  `json:"tasks"`
	RegisteredAt time.Time `json:"registered_at"`
}

// RegisterSyncTasks registers a batch of named sync tasks with the
// agent. The batch lands through a single file rename, so the agent
// observes either every name or none of them. Requires a registered
// agent; without one this returns ErrNoAgent.
func (r *Registrar) RegisterSyncTasks(names []string) error {
	r.mu.RLock()
	ready := r.state == StateRegistered || r.state == StateUpdateAvailable
	r.mu.RUnlock()
	if !ready {
		return ErrNoAgent
	}

	reg := TaskRegistration{
		Tasks:        names,
		RegisteredAt: time.Now().UTC(),
	}
	data, err := sonic.Marshal(reg)
	if err != nil {
		return fmt.Errorf("encode task registration: %w", err)
	}

	if err := os.MkdirAll(r.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("register tasks: %w", err)
	}
	final := paths.New(r.cfg.DataDir).TasksFile()
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("register tasks: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("register tasks: %w", err)
	}

	if r.metrics != nil {
		r.metrics.AddTasksRegistered(len(names))
	}
	r.logger.Info("sync tasks registered", zap.Strings("tasks", names))
	return nil
}
