package lifecycle

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/bridge"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/install"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/storage"
)

// Install consumes the armed install prompt. Without one this is a
// logged no-op reporting ok false; a consumer double-clicking across a
// re-render must never trigger a second installation. State changes
// arrive through the flow's events, not through the return value.
func (c *Coordinator) Install() (install.Outcome, bool) {
	outcome, err := c.flow.Prompt()
	if err != nil {
		if errors.Is(err, install.ErrNoPrompt) {
			c.logger.Debug("install ignored, no prompt armed")
		} else {
			c.logger.Warn("install failed", zap.Error(err))
		}
		return "", false
	}
	return outcome, true
}

// ApplyUpdate hands control to the staged agent release. Without a
// pending update this is a logged no-op reporting false.
func (c *Coordinator) ApplyUpdate() bool {
	if !c.registrar.ApplyUpdate() {
		c.logger.Debug("apply update ignored, no update pending")
		return false
	}
	return true
}

// CacheWorkflow asks the agent to cache a workflow payload for offline
// use. Fire-and-forget: false means the command was dropped, which the
// registrar has already logged; published state is untouched either
// way.
func (c *Coordinator) CacheWorkflow(payload json.RawMessage) bool {
	return c.registrar.Send(bridge.NewCacheWorkflow(payload))
}

// CacheTask asks the agent to cache a task payload for offline use.
// Same delivery contract as CacheWorkflow.
func (c *Coordinator) CacheTask(payload json.RawMessage) bool {
	return c.registrar.Send(bridge.NewCacheTask(payload))
}

// RequestPersistence asks the host to make workspace storage durable.
func (c *Coordinator) RequestPersistence(ctx context.Context) bool {
	if c.storage == nil {
		c.logger.Debug("persistence request ignored, no storage manager")
		return false
	}
	return c.storage.RequestPersistence(ctx)
}

// QueryEstimate measures current workspace storage usage. Absent
// platform support reports ok false, never an error.
func (c *Coordinator) QueryEstimate(ctx context.Context) (storage.Estimate, bool) {
	if c.storage == nil {
		c.logger.Debug("storage estimate ignored, no storage manager")
		return storage.Estimate{}, false
	}
	return c.storage.QueryEstimate(ctx)
}
