// Package release manages installed sync agent versions.
//
// A release is a directory under the releases root holding the agent
// binary and a manifest.yaml naming its version and BLAKE2b-256
// checksum. The Store scans and verifies releases, the Watcher reports
// newly installed versions as they land, and the Updater fetches
// releases from a remote endpoint behind a circuit breaker.
package release
