package install

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDesktop(t *testing.T) *Desktop {
	t.Helper()
	return NewDesktop(DesktopOptions{
		ApplicationsDir: t.TempDir(),
		ID:              "workspaced",
		Name:            "Workspace",
		Exec:            "/usr/bin/workspaced",
	}, zap.NewNop())
}

func TestDesktopResolvesXDGDataHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")

	d := NewDesktop(DesktopOptions{ID: "workspaced", Exec: "/usr/bin/workspaced"}, zap.NewNop())

	assert.Equal(t, "/tmp/xdg-data/applications/workspaced.desktop", d.EntryPath())
	assert.True(t, d.Available())
}

func TestDesktopInstall(t *testing.T) {
	d := newTestDesktop(t)

	installed, err := d.Installed()
	require.NoError(t, err)
	assert.False(t, installed)

	require.NoError(t, d.Install())

	installed, err = d.Installed()
	require.NoError(t, err)
	assert.True(t, installed)

	data, err := os.ReadFile(d.EntryPath())
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "[Desktop Entry]")
	assert.Contains(t, content, "Name=Workspace")
	assert.Contains(t, content, "Exec=/usr/bin/workspaced")

	// No staging residue next to the entry.
	_, err = os.Stat(d.EntryPath() + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestDesktopStandalone(t *testing.T) {
	d := newTestDesktop(t)

	assert.False(t, d.Standalone())

	t.Setenv("GIO_LAUNCHED_DESKTOP_FILE", "/usr/share/applications/other.desktop")
	assert.False(t, d.Standalone())

	t.Setenv("GIO_LAUNCHED_DESKTOP_FILE", "/home/dev/.local/share/applications/workspaced.desktop")
	assert.True(t, d.Standalone())
}

func TestDesktopWatchSeesExternalChanges(t *testing.T) {
	d := newTestDesktop(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := d.Watch(ctx)
	require.NoError(t, err)

	// An external tool drops the entry in place.
	require.NoError(t, os.WriteFile(d.EntryPath(), []byte("[Desktop Entry]\n"), 0o755))
	assert.True(t, awaitUpdate(t, updates))

	require.NoError(t, os.Remove(d.EntryPath()))
	assert.False(t, awaitUpdate(t, updates))
}

func TestDesktopWatchIgnoresOtherFiles(t *testing.T) {
	d := newTestDesktop(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := d.Watch(ctx)
	require.NoError(t, err)

	other := filepath.Join(filepath.Dir(d.EntryPath()), "editor.desktop")
	require.NoError(t, os.WriteFile(other, []byte("[Desktop Entry]\n"), 0o755))

	select {
	case state := <-updates:
		t.Fatalf("unexpected update %v for unrelated entry", state)
	case <-time.After(300 * time.Millisecond):
	}
}

func awaitUpdate(t *testing.T, updates <-chan bool) bool {
	t.Helper()
	select {
	case state := <-updates:
		return state
	case <-time.After(3 * time.Second):
		t.Fatal("no install update arrived")
		return false
	}
}
