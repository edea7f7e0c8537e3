// Package main is the entry point for the workspaced daemon.
//
// The daemon coordinates the offline-capable workspace on one machine:
//
//	Consumers (UI, CLI) → workspaced → upstream platform (HTTP)
//	                              ↕ bridge (WebSocket)
//	                          syncagent
//
// The daemon provides:
//   - REST API for lifecycle state and consumer actions
//   - WebSocket streaming of lifecycle snapshots
//   - supervision of the sync agent process and its releases
//   - desktop installation and workspace storage management
//
// Configuration layers, lowest to highest precedence:
//   - built-in defaults
//   - TOML file (-config flag, or ~/.workspaced/config.toml)
//   - WORKSPACED_* environment variables
//
// Usage:
//
//	workspaced -config /etc/workspaced/config.toml
//
// Signals:
//   - SIGINT, SIGTERM: graceful shutdown
package main
