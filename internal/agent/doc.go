// Package agent supervises the background sync agent.
//
// The registrar resolves the current release, starts the agent process,
// and keeps it running until Stop. The agent dials back into the
// daemon's bridge endpoint; the registrar owns that peer connection,
// forwards inbound reports as events, and drops outbound commands with
// a warning when no agent is attached.
//
// Registrar states:
//
//	unregistered → registering → registered → update available
//	                                 ↑              |
//	                                 └── apply ─────┘
//
// A release installed while an older agent is still attached moves the
// registrar to update available; ApplyUpdate sends SKIP_WAITING, the
// old agent exits, the pending release starts, and the changed
// controller is reported so consumers can reload state.
package agent
