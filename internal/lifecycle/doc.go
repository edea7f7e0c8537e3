// Package lifecycle owns the daemon's aggregate state and the rules
// that mutate it.
//
// The Coordinator folds connectivity transitions, agent registrar
// notifications, inbound agent reports, and install flow changes into
// one State record. All mutation
// happens on a single event loop goroutine, so the record needs no
// lock and every published snapshot is internally consistent.
//
// The loop runs only while someone is subscribed: the first subscriber
// starts it and wires the event sources, the last cancellation releases
// them again. Consumers read snapshots and call the small action
// surface; they never write state.
//
// Sync cycles follow a strict shape. A reconnect with a registered
// agent moves syncStatus from idle to syncing, the fixed task batch is
// registered, the cycle resolves to completed or failed, and after
// StatusResetDelay the status returns to idle. Reconnects and agent
// reports that arrive mid-cycle are coalesced; nothing ever skips a
// step or overlaps a cycle.
package lifecycle
