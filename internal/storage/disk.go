package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// persistMarker flags a workspace whose durability was confirmed.
const persistMarker = ".persist"

// Volatile filesystems cannot outlive a reboot, so persistence requests
// on them are refused rather than pretended.
var volatileFS = map[int64]string{
	unix.TMPFS_MAGIC: "tmpfs",
	unix.RAMFS_MAGIC: "ramfs",
}

// DiskOptions configures the local filesystem platform.
type DiskOptions struct {
	// Root is the workspace directory.
	Root string

	// Exclude holds glob patterns, relative to Root, whose matches are
	// left out of usage measurements.
	Exclude []string

	// QuotaBytes caps the reported quota. Zero means "whatever the
	// filesystem has left".
	QuotaBytes int64
}

// Disk implements Platform against the local filesystem.
type Disk struct {
	root    string
	exclude []string
	quota   int64
	logger  *zap.Logger

	// statfs is swappable so volatile-filesystem handling is testable.
	statfs func(path string, buf *unix.Statfs_t) error
}

// NewDisk creates the platform for one workspace root.
func NewDisk(opts DiskOptions, logger *zap.Logger) *Disk {
	return &Disk{
		root:    opts.Root,
		exclude: opts.Exclude,
		quota:   opts.QuotaBytes,
		logger:  logger,
		statfs:  unix.Statfs,
	}
}

// Root returns the workspace directory.
func (d *Disk) Root() string {
	return d.root
}

// Persist marks the workspace durable. A workspace on volatile storage
// is refused without error; the marker write is idempotent.
func (d *Disk) Persist(ctx context.Context) (bool, error) {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return false, fmt.Errorf("persist: %w", err)
	}

	var fs unix.Statfs_t
	if err := d.statfs(d.root, &fs); err != nil {
		return false, fmt.Errorf("persist: statfs: %w", err)
	}
	if name, ok := volatileFS[int64(fs.Type)]; ok {
		d.logger.Info("workspace on volatile storage, persistence refused",
			zap.String("filesystem", name),
		)
		return false, nil
	}

	marker := filepath.Join(d.root, persistMarker)
	if _, err := os.Stat(marker); err == nil {
		return true, nil
	}
	content := fmt.Sprintf("persisted %s\n", time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(marker, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("persist: %w", err)
	}

	d.logger.Info("workspace marked persistent", zap.String("root", d.root))
	return true, nil
}

// Estimate walks the workspace and measures live usage. Nothing is
// cached between calls. A missing workspace measures as empty.
func (d *Disk) Estimate(ctx context.Context) (Estimate, error) {
	var usage atomic.Int64

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, d.root, func(p string, entry os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || entry.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(d.root, p)
		if relErr != nil {
			return nil
		}
		if d.excluded(filepath.ToSlash(rel)) {
			return nil
		}

		info, infoErr := entry.Info()
		if infoErr != nil || !info.Mode().IsRegular() {
			return nil
		}
		usage.Add(info.Size())
		return nil
	})
	if err != nil {
		return Estimate{}, fmt.Errorf("estimate: %w", err)
	}

	total := usage.Load()
	return Estimate{Usage: total, Quota: d.quotaFor(total)}, nil
}

func (d *Disk) excluded(rel string) bool {
	for _, pattern := range d.exclude {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}

func (d *Disk) quotaFor(usage int64) int64 {
	if d.quota > 0 {
		return d.quota
	}
	var fs unix.Statfs_t
	if err := d.statfs(d.root, &fs); err != nil {
		return usage
	}
	avail := int64(fs.Bavail) * int64(fs.Bsize)
	return usage + avail
}
