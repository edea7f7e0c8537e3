package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DesktopOptions configures the XDG desktop entry adapter. Zero values
// resolve to the conventional defaults.
type DesktopOptions struct {
	// ApplicationsDir overrides the XDG applications directory.
	ApplicationsDir string

	// ID names the desktop entry file, without the .desktop suffix.
	ID string

	// Name is the human-readable entry name.
	Name string

	// Exec is the command line launched by the entry. Defaults to the
	// current executable.
	Exec string
}

// Desktop integrates the workspace with XDG desktop entries. The entry
// file doubles as the installed marker: present means installed.
type Desktop struct {
	dir    string
	id     string
	name   string
	exec   string
	logger *zap.Logger
}

// NewDesktop builds the adapter. Resolution failures (no home, no
// executable path) leave the adapter unavailable rather than erroring.
func NewDesktop(opts DesktopOptions, logger *zap.Logger) *Desktop {
	dir := opts.ApplicationsDir
	if dir == "" {
		dir = resolveApplicationsDir()
	}
	exec := opts.Exec
	if exec == "" {
		if path, err := os.Executable(); err == nil {
			exec = path
		}
	}
	id := opts.ID
	if id == "" {
		id = "workspaced"
	}
	name := opts.Name
	if name == "" {
		name = "Workspace"
	}
	return &Desktop{
		dir:    dir,
		id:     id,
		name:   name,
		exec:   exec,
		logger: logger,
	}
}

func resolveApplicationsDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "applications")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "applications")
}

// EntryPath returns the absolute desktop entry path.
func (d *Desktop) EntryPath() string {
	return filepath.Join(d.dir, d.id+".desktop")
}

// Available reports whether desktop integration can work on this host.
func (d *Desktop) Available() bool {
	return d.dir != "" && d.exec != ""
}

// Installed reports whether the desktop entry exists.
func (d *Desktop) Installed() (bool, error) {
	_, err := os.Stat(d.EntryPath())
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Install writes the desktop entry. The entry appears atomically via
// rename so watchers never read a partial file.
func (d *Desktop) Install() error {
	if !d.Available() {
		return fmt.Errorf("desktop integration unavailable")
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("install entry: %w", err)
	}

	content := fmt.Sprintf(`[Desktop Entry]
Type=Application
Version=1.0
Name=%s
Comment=Multi-agent workspace
Exec=%s
Terminal=false
Categories=Utility;Development;
X-Workspaced-Managed=true
`, d.name, d.exec)

	final := d.EntryPath()
	tmp := final + ".tmp"
	// Launchers treat the executable bit as the trust marker.
	if err := os.WriteFile(tmp, []byte(content), 0o755); err != nil {
		return fmt.Errorf("install entry: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("install entry: %w", err)
	}

	d.logger.Info("desktop entry installed", zap.String("path", final))
	return nil
}

// Standalone reports whether this process was launched through the
// workspace desktop entry.
func (d *Desktop) Standalone() bool {
	launched := os.Getenv("GIO_LAUNCHED_DESKTOP_FILE")
	if launched == "" {
		return false
	}
	return filepath.Base(launched) == d.id+".desktop"
}

// Watch reports installed-state changes caused outside the flow, such
// as a file manager deleting the entry. Deliveries are coalesced; only
// the latest state matters.
func (d *Desktop) Watch(ctx context.Context) (<-chan bool, error) {
	if !d.Available() {
		return nil, fmt.Errorf("desktop integration unavailable")
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return nil, fmt.Errorf("install watch: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("install watch: %w", err)
	}
	if err := watcher.Add(d.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("install watch: %w", err)
	}

	updates := make(chan bool, 1)
	go func() {
		defer watcher.Close()
		last, _ := d.Installed()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != d.EntryPath() {
					continue
				}
				installed, err := d.Installed()
				if err != nil || installed == last {
					continue
				}
				last = installed
				// Single sender: after the drain the buffered send
				// cannot block.
				select {
				case <-updates:
				default:
				}
				updates <- installed
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.logger.Warn("install watch error", zap.Error(err))
			case <-ctx.Done():
				return
			}
		}
	}()
	return updates, nil
}
