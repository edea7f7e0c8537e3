package lifecycle

import "time"

// SyncStatus is the observable phase of the background sync machine.
// It is derived state: nothing outside the coordinator loop sets it.
type SyncStatus string

const (
	SyncIdle      SyncStatus = "idle"
	SyncSyncing   SyncStatus = "syncing"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
)

// StatusResetDelay is how long a finished sync cycle stays visible in
// its terminal status before reverting to idle. Completed and failed
// dwell equally long.
const StatusResetDelay = 3 * time.Second

// SyncTaskNames is the fixed batch registered on every sync cycle. The
// set is part of the agent contract and is registered all-or-nothing,
// never piecewise and never configurable.
var SyncTaskNames = []string{"workflow-save", "task-update", "agent-status"}

// State is the complete lifecycle snapshot published to consumers.
// Consumers only ever see whole records, never field-level deltas.
type State struct {
	IsInstallable   bool       `json:"isInstallable"`
	IsInstalled     bool       `json:"isInstalled"`
	IsOnline        bool       `json:"isOnline"`
	IsStandalone    bool       `json:"isStandalone"`
	UpdateAvailable bool       `json:"updateAvailable"`
	SyncStatus      SyncStatus `json:"syncStatus"`
	PendingActions  int        `json:"pendingActions"`
}

// normalized enforces the record's internal consistency: an installed
// workspace has no install affordance, and standalone operation is
// impossible without an installation.
func (s State) normalized() State {
	if s.IsInstalled {
		s.IsInstallable = false
	}
	if !s.IsInstalled {
		s.IsStandalone = false
	}
	if s.PendingActions < 0 {
		s.PendingActions = 0
	}
	if s.SyncStatus == "" {
		s.SyncStatus = SyncIdle
	}
	return s
}
