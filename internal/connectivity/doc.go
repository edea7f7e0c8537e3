// Package connectivity tracks reachability of the workflow platform.
//
// A Monitor owns the current online flag and emits a signal exactly
// once per genuine transition in either direction; redundant
// observations of the same value never re-fire it. Watchers receive
// signals through explicit subscriptions that must be released, then
// read the current value back from the monitor. Probing is pluggable:
// the default HTTPProber polls the platform health endpoint, and a
// Monitor built without a prober treats the platform as always online.
package connectivity
