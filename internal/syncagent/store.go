package syncagent

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/paths"
	"github.com/Faizanmal/Mult-Agent-sub002/internal/shared/utils"
)

// Cache kinds, one directory per kind.
const (
	KindWorkflows = "workflows"
	KindTasks     = "tasks"
)

const cacheExt = ".json.zst"

// Store is the agent's offline cache: one compressed JSON entry per
// payload, keyed by the payload's own identity. Entries are written
// whole through a rename, so readers never observe a torn entry. Safe
// for concurrent use.
type Store struct {
	layout    paths.Layout
	enc       *zstd.Encoder
	dec       *zstd.Decoder
	validator *utils.PayloadValidator
	logger    *zap.Logger
}

// NewStore creates a cache store over the layout's cache directory.
func NewStore(layout paths.Layout, logger *zap.Logger) (*Store, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("cache encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("cache decoder: %w", err)
	}
	return &Store{
		layout:    layout,
		enc:       enc,
		dec:       dec,
		validator: utils.DefaultPayloadValidator(),
		logger:    logger,
	}, nil
}

// Put caches one payload under its derived key, replacing any previous
// entry for that key. Returns the key.
func (s *Store) Put(kind string, payload []byte) (string, error) {
	if err := s.validator.Validate(payload); err != nil {
		return "", fmt.Errorf("cache %s: %w", kind, err)
	}

	key := utils.PayloadKey(payload)
	path := s.entryPath(kind, key)
	if !s.layout.Contains(path) {
		return "", fmt.Errorf("cache %s: key %q escapes the cache", kind, key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("cache %s: %w", kind, err)
	}

	compressed := s.enc.EncodeAll(payload, make([]byte, 0, len(payload)/2))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return "", fmt.Errorf("cache %s: %w", kind, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("cache %s: %w", kind, err)
	}

	s.logger.Debug("payload cached",
		zap.String("kind", kind),
		zap.String("key", key),
		zap.Int("raw_bytes", len(payload)),
		zap.Int("stored_bytes", len(compressed)),
	)
	return key, nil
}

// Get returns the cached payload for a key.
func (s *Store) Get(kind, key string) ([]byte, error) {
	if err := utils.ValidateID(key); err != nil {
		return nil, fmt.Errorf("cache %s: %w", kind, err)
	}
	data, err := os.ReadFile(s.entryPath(kind, key))
	if err != nil {
		return nil, fmt.Errorf("cache %s: %w", kind, err)
	}
	payload, err := s.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("cache %s: decode %s: %w", kind, key, err)
	}
	return payload, nil
}

// Keys lists the cached keys of one kind, sorted. A kind never written
// lists as empty.
func (s *Store) Keys(kind string) ([]string, error) {
	entries, err := os.ReadDir(s.layout.CacheKind(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache %s: %w", kind, err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, cacheExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, cacheExt))
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases the shared codecs.
func (s *Store) Close() {
	s.enc.Close()
	s.dec.Close()
}

func (s *Store) entryPath(kind, key string) string {
	return filepath.Join(s.layout.CacheKind(kind), key+cacheExt)
}
