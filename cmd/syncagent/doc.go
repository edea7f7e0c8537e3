// Package main is the entry point for the sync agent.
//
// The agent is launched and supervised by workspaced. It dials the
// daemon's bridge endpoint, caches pushed payloads for offline use,
// spools deferred actions, and replays them against the upstream
// platform when the daemon hands over a task registration.
//
// Configuration comes from SYNCAGENT_* environment variables, which the
// daemon sets when launching the process:
//
//	SYNCAGENT_BRIDGE_URL    daemon bridge endpoint (required)
//	SYNCAGENT_DATA_DIR      shared data directory (default ~/.workspaced)
//	SYNCAGENT_UPSTREAM_URL  platform base URL for replay
//	SYNCAGENT_VERSION       release version reported on attach
//
// The process exits cleanly on SIGINT, SIGTERM, or a SKIP_WAITING order
// from the daemon.
package main
