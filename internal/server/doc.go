// Package server assembles and runs the workspaced daemon.
//
// New wires the component graph from configuration:
//   - connectivity monitor probing the upstream platform
//   - release store, watcher and updater for staged agent releases
//   - agent registrar supervising the sync agent process
//   - desktop install flow and workspace storage manager
//   - lifecycle coordinator folding everything into one state
//   - gin router carrying the REST and WebSocket surfaces
//
// Run listens with a capped connection limit, starts the release
// plumbing, and takes the daemon's own lifecycle subscription, which is
// what brings the coordinator (and with it the supervised agent) up.
// Shutdown drains HTTP, releases hijacked stream connections through
// the server base context, and tears the coordinator down.
//
// Example:
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := server.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	errCh := make(chan error, 1)
//	go func() { errCh <- srv.Run() }()
package server
