// Package paths defines the canonical on-disk layout under the daemon's
// data directory.
//
// Every component that touches disk resolves its location through one
// Layout, so relocating the data directory cascades everywhere at once.
//
// # Directory Structure
//
//	~/.workspaced/
//	  ├── config.toml      (daemon configuration)
//	  ├── sync-tasks.json  (task batch handoff to the agent)
//	  ├── releases/        (versioned agent releases)
//	  │   └── <version>/   (binary plus manifest.yaml)
//	  ├── workspace/       (user workspace, persistence root)
//	  ├── cache/           (agent offline cache, one dir per kind)
//	  └── spool/           (agent offline action queue)
//
// # Usage
//
//	layout := paths.New(cfg.Agent.DataDir)
//
//	// Standard locations
//	releases := layout.Releases()
//	tasks := layout.TasksFile()
//
//	// Containment guard for derived names
//	p := layout.CacheKind(kind)
//	if !layout.Contains(p) {
//	    // refuse
//	}
package paths
