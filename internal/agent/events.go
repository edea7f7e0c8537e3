package agent

// State describes where the registrar is in the agent lifecycle.
type State int

const (
	// StateUnregistered means no agent process is under supervision.
	StateUnregistered State = iota

	// StateRegistering means the agent process has been started but
	// has not yet attached to the bridge.
	StateRegistering

	// StateRegistered means a supervised agent is attached and serving.
	StateRegistered

	// StateUpdateAvailable means a newer release is staged while an
	// older agent still controls the bridge.
	StateUpdateAvailable
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateUpdateAvailable:
		return "update_available"
	default:
		return "unknown"
	}
}

// EventKind discriminates registrar events.
type EventKind int

const (
	// EventStateChanged reports a registrar state transition.
	EventStateChanged EventKind = iota

	// EventControllerChanged reports that a different agent version took
	// over the bridge. Reload is set when consumers should rebuild
	// their view of the world.
	EventControllerChanged

	// EventSyncStatus carries an inbound SYNC_STATUS report.
	EventSyncStatus

	// EventPendingActions carries an inbound PENDING_ACTIONS report.
	EventPendingActions
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventControllerChanged:
		return "controller_changed"
	case EventSyncStatus:
		return "sync_status"
	case EventPendingActions:
		return "pending_actions"
	default:
		return "unknown"
	}
}

// Event is a registrar notification delivered on the Events channel.
type Event struct {
	Kind   EventKind
	State  State
	Reload bool
	Status string
	Count  int
}
