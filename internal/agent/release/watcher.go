package release

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports verified releases as they appear under the store root.
// Releases present when the watcher starts are treated as known and not
// reported.
type Watcher struct {
	store  *Store
	logger *zap.Logger

	updates chan Release

	mu       sync.Mutex
	known    map[string]struct{}
	debounce *time.Timer
}

// NewWatcher creates a watcher over the store.
func NewWatcher(store *Store, logger *zap.Logger) *Watcher {
	return &Watcher{
		store:   store,
		logger:  logger,
		updates: make(chan Release, 4),
		known:   make(map[string]struct{}),
	}
}

// Updates delivers newly installed, checksum-verified releases.
func (w *Watcher) Updates() <-chan Release {
	return w.updates
}

// Run watches the releases root until the context ends. The root must
// exist before Run is called; a store created by the daemon always does.
func (w *Watcher) Run(ctx context.Context) {
	w.prime()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("release watcher unavailable", zap.Error(err))
		return
	}
	defer fsw.Close()

	if err := fsw.Add(w.store.Root()); err != nil {
		w.logger.Warn("cannot watch releases root",
			zap.String("root", w.store.Root()),
			zap.Error(err),
		)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.debounceRescan(100 * time.Millisecond)

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("release watcher error", zap.Error(err))
		}
	}
}

// prime records already-installed releases so only later arrivals count
// as updates.
func (w *Watcher) prime() {
	releases, err := w.store.Scan()
	if err != nil {
		w.logger.Warn("release prime scan failed", zap.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, rel := range releases {
		w.known[rel.Version()] = struct{}{}
	}
}

func (w *Watcher) debounceRescan(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(delay, w.rescan)
}

func (w *Watcher) rescan() {
	releases, err := w.store.Scan()
	if err != nil {
		w.logger.Warn("release rescan failed", zap.Error(err))
		return
	}

	for _, rel := range releases {
		w.mu.Lock()
		_, seen := w.known[rel.Version()]
		w.mu.Unlock()
		if seen {
			continue
		}

		if err := w.store.Verify(rel); err != nil {
			w.logger.Warn("ignoring unverifiable release",
				zap.String("version", rel.Version()),
				zap.Error(err),
			)
			continue
		}

		w.mu.Lock()
		w.known[rel.Version()] = struct{}{}
		w.mu.Unlock()

		w.logger.Info("new release detected", zap.String("version", rel.Version()))
		select {
		case w.updates <- rel:
		default:
			w.logger.Warn("release update channel full, dropping",
				zap.String("version", rel.Version()),
			)
		}
	}
}
