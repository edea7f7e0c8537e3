// Package syncagent implements the background agent the daemon
// supervises.
//
// The agent dials the daemon's bridge, identifies itself with its
// release version, and then serves three duties: it caches workflow and
// task payloads pushed over the bridge so they stay readable offline,
// it spools the matching upstream mutations until a sync cycle replays
// them, and it reports its pending backlog after every change.
//
// Sync cycles are file-driven. The daemon registers a task batch by
// renaming sync-tasks.json into the shared data directory; the agent
// watches for that rename, replays its spool against the upstream API
// for every registered task, and reports syncing, then completed or
// failed, over the bridge. A SKIP_WAITING order makes the agent finish
// the in-flight cycle and exit cleanly so a staged release can take
// over.
package syncagent
