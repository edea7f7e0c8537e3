package lifecycle

import (
	"time"

	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/id"
)

// onReconnect decides whether a reconnect opens a sync cycle. A cycle
// can only open from idle with a live agent handle; anything still
// working is already covering "sync now", so the edge coalesces into
// it. Run-loop only.
func (c *Coordinator) onReconnect() {
	status := c.Snapshot().SyncStatus
	if status != SyncIdle {
		c.logger.Debug("reconnect coalesced into running sync cycle",
			zap.String("status", string(status)),
		)
		if c.metrics != nil {
			c.metrics.IncSyncCoalesced()
		}
		return
	}
	if !c.registrar.Attached() {
		c.logger.Debug("reconnect without agent, skipping sync cycle")
		return
	}
	c.startCycle()
}

// startCycle opens a coordinator-driven sync cycle: syncing becomes
// visible first, then the fixed task batch is registered off-loop and
// its outcome posted back. Run-loop only.
func (c *Coordinator) startCycle() {
	c.cycleID = id.NewCycleID()
	c.cycleStart = time.Now()
	cid := c.cycleID

	c.logger.Info("sync cycle started", zap.String("cycle_id", cid.String()))
	c.setState(func(s *State) {
		s.SyncStatus = SyncSyncing
	})

	go func() {
		err := c.registrar.RegisterSyncTasks(SyncTaskNames)
		c.post(func() { c.finishCycle(cid, err) })
	}()
}

// finishCycle resolves a coordinator-driven cycle once its batch
// registration lands. A cycle the agent already resolved, or one long
// reset, ignores the late outcome. Run-loop only.
func (c *Coordinator) finishCycle(cid id.CycleID, err error) {
	if c.cycleID != cid {
		return
	}
	if c.Snapshot().SyncStatus != SyncSyncing {
		return
	}
	if err != nil {
		c.logger.Warn("sync task registration failed", zap.Error(err))
		c.applyStatus(SyncFailed)
		return
	}
	c.applyStatus(SyncCompleted)
}

// applyWireStatus folds a SYNC_STATUS report from the agent into the
// status machine. Unknown strings are ignored with a warning; "idle" is
// a legal value the machine only reaches by its own timer, so reports
// of it are dropped quietly. Run-loop only.
func (c *Coordinator) applyWireStatus(status string) {
	switch SyncStatus(status) {
	case SyncSyncing, SyncCompleted, SyncFailed:
		c.applyStatus(SyncStatus(status))
	case SyncIdle:
		c.logger.Debug("ignoring idle status report, reset is timer-driven")
	default:
		c.logger.Warn("ignoring unknown sync status", zap.String("status", status))
	}
}

// applyStatus is the single place syncStatus moves. Transitions out of
// order are dropped: syncing only enters from idle, a terminal value
// only from syncing, and idle only via the reset timer. Run-loop only.
func (c *Coordinator) applyStatus(next SyncStatus) {
	current := c.Snapshot().SyncStatus

	switch next {
	case SyncSyncing:
		if current != SyncIdle {
			c.logger.Debug("sync already in progress, report coalesced")
			if c.metrics != nil {
				c.metrics.IncSyncCoalesced()
			}
			return
		}
		// Agent-initiated cycle; give it local bookkeeping so its
		// duration and reset behave like our own.
		c.cycleID = id.NewCycleID()
		c.cycleStart = time.Now()
		c.setState(func(s *State) {
			s.SyncStatus = SyncSyncing
		})

	case SyncCompleted, SyncFailed:
		if current != SyncSyncing {
			c.logger.Debug("terminal sync report outside a cycle, ignored",
				zap.String("status", string(next)),
			)
			return
		}
		elapsed := time.Since(c.cycleStart)
		c.logger.Info("sync cycle resolved",
			zap.String("cycle_id", c.cycleID.String()),
			zap.String("result", string(next)),
			zap.Duration("elapsed", elapsed),
		)
		if c.metrics != nil {
			c.metrics.RecordSyncCycle(string(next), elapsed)
		}
		c.setState(func(s *State) {
			s.SyncStatus = next
		})
		c.armReset()

	case SyncIdle:
		if current == SyncIdle {
			return
		}
		c.setState(func(s *State) {
			s.SyncStatus = SyncIdle
		})
	}
}

// armReset schedules the unconditional return to idle. The dwell is
// fixed: reconnects or agent chatter during it neither extend nor cut
// it short. Fires through post, so a torn-down loop simply never sees
// it.
func (c *Coordinator) armReset() {
	cid := c.cycleID
	time.AfterFunc(c.resetDelay, func() {
		c.post(func() { c.resetCycle(cid) })
	})
}

// resetCycle closes the dwell of the cycle that armed it. Run-loop
// only.
func (c *Coordinator) resetCycle(cid id.CycleID) {
	if c.cycleID != cid {
		return
	}
	status := c.Snapshot().SyncStatus
	if status != SyncCompleted && status != SyncFailed {
		return
	}
	c.logger.Debug("sync status reset", zap.String("cycle_id", cid.String()))
	c.applyStatus(SyncIdle)
	c.cycleID = ""
}
