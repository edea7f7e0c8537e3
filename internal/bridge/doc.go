// Package bridge implements the message channel to the sync agent.
//
// The envelope is a small JSON object keyed by "type". It is the wire
// contract with deployed agents and its shape must be preserved exactly;
// unrecognized inbound types are ignored for forward compatibility.
//
// Message Types (Agent → Daemon):
//   - SYNC_STATUS: sync cycle status report {status}
//   - PENDING_ACTIONS: deferred action backlog size {count}
//
// Message Types (Daemon → Agent):
//   - SKIP_WAITING: hand control to the newly installed agent version
//   - CACHE_WORKFLOW: store a workflow definition offline {payload}
//   - CACHE_TASK: store a task record offline {payload}
//
// Example Usage:
//
//	peer := bridge.NewPeer(conn, logger)
//	go peer.ReadLoop(func(msg bridge.Message) { ... })
//	peer.Send(bridge.NewCacheWorkflow(payload))
package bridge
