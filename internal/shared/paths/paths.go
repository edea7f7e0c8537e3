package paths

import (
	"path/filepath"
	"strings"
)

// Well-known names under the data directory.
const (
	ReleasesName   = "releases"
	WorkspaceName  = "workspace"
	CacheName      = "cache"
	SpoolName      = "spool"
	TasksFileName  = "sync-tasks.json"
	ConfigFileName = "config.toml"
)

// Layout resolves the standard locations under one data directory. The
// zero value points at the process working directory; construct with
// New.
type Layout struct {
	root string
}

// New returns the layout rooted at dir.
func New(dir string) Layout {
	return Layout{root: dir}
}

// Root returns the data directory itself.
func (l Layout) Root() string { return l.root }

// Releases returns the directory holding versioned agent releases.
func (l Layout) Releases() string { return filepath.Join(l.root, ReleasesName) }

// Release returns the directory of one versioned release.
func (l Layout) Release(version string) string {
	return filepath.Join(l.root, ReleasesName, version)
}

// Workspace returns the user workspace, the root persistence is granted
// for and estimates are measured against.
func (l Layout) Workspace() string { return filepath.Join(l.root, WorkspaceName) }

// Cache returns the agent's offline cache directory.
func (l Layout) Cache() string { return filepath.Join(l.root, CacheName) }

// CacheKind returns the cache directory for one payload kind.
func (l Layout) CacheKind(kind string) string {
	return filepath.Join(l.root, CacheName, kind)
}

// Spool returns the agent's offline action queue directory.
func (l Layout) Spool() string { return filepath.Join(l.root, SpoolName) }

// TasksFile returns the task registration handoff file.
func (l Layout) TasksFile() string { return filepath.Join(l.root, TasksFileName) }

// ConfigFile returns the daemon configuration file.
func (l Layout) ConfigFile() string { return filepath.Join(l.root, ConfigFileName) }

// StandardDirectories returns every directory expected to exist under
// the data directory. Callers create them at startup.
func (l Layout) StandardDirectories() []string {
	return []string{
		l.Root(),
		l.Releases(),
		l.Workspace(),
		l.Cache(),
		l.Spool(),
	}
}

// Contains reports whether path resolves inside the data directory.
// Derived names are joined from externally supplied identifiers, so
// writers check containment before touching disk.
func (l Layout) Contains(path string) bool {
	rel, err := filepath.Rel(l.root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
