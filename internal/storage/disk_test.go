package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

func writeFile(t *testing.T, root, rel string, size int) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func TestDiskPersistDurable(t *testing.T) {
	d := NewDisk(DiskOptions{Root: t.TempDir()}, zap.NewNop())
	d.statfs = func(string, *unix.Statfs_t) error { return nil }

	granted, err := d.Persist(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)

	_, err = os.Stat(filepath.Join(d.Root(), persistMarker))
	require.NoError(t, err)

	// Second request finds the marker and stays granted.
	granted, err = d.Persist(context.Background())
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestDiskPersistVolatileRefused(t *testing.T) {
	d := NewDisk(DiskOptions{Root: t.TempDir()}, zap.NewNop())
	d.statfs = func(_ string, buf *unix.Statfs_t) error {
		buf.Type = unix.TMPFS_MAGIC
		return nil
	}

	granted, err := d.Persist(context.Background())
	require.NoError(t, err)
	assert.False(t, granted)

	_, err = os.Stat(filepath.Join(d.Root(), persistMarker))
	assert.True(t, os.IsNotExist(err))
}

func TestDiskPersistStatfsError(t *testing.T) {
	d := NewDisk(DiskOptions{Root: t.TempDir()}, zap.NewNop())
	d.statfs = func(string, *unix.Statfs_t) error { return errors.New("mount gone") }

	_, err := d.Persist(context.Background())
	assert.Error(t, err)
}

func TestDiskEstimate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "workflows/a.json", 100)
	writeFile(t, root, "tasks/b.json", 50)
	writeFile(t, root, "tmp/scratch.bin", 999)
	writeFile(t, root, "tasks/c.partial", 7)

	d := NewDisk(DiskOptions{
		Root:       root,
		Exclude:    []string{"**/tmp/**", "**/*.partial"},
		QuotaBytes: 1 << 20,
	}, zap.NewNop())

	est, err := d.Estimate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(150), est.Usage)
	assert.Equal(t, int64(1<<20), est.Quota)
}

func TestDiskEstimateNeverCached(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.bin", 10)

	d := NewDisk(DiskOptions{Root: root, QuotaBytes: 1000}, zap.NewNop())

	est, err := d.Estimate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), est.Usage)

	writeFile(t, root, "b.bin", 25)

	est, err = d.Estimate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(35), est.Usage)
}

func TestDiskEstimateMissingRoot(t *testing.T) {
	d := NewDisk(DiskOptions{
		Root:       filepath.Join(t.TempDir(), "missing"),
		QuotaBytes: 500,
	}, zap.NewNop())

	est, err := d.Estimate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), est.Usage)
	assert.Equal(t, int64(500), est.Quota)
}
