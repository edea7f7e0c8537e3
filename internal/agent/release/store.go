package release

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// Release is an installed agent version on disk.
type Release struct {
	Manifest Manifest
	Dir      string
}

// BinaryPath returns the absolute path of the release binary.
func (r Release) BinaryPath() string {
	return filepath.Join(r.Dir, r.Manifest.Binary)
}

// Version returns the release version string.
func (r Release) Version() string {
	return r.Manifest.Version
}

// Store reads and writes releases under a root directory. Each release
// occupies root/<version>/ with its binary and manifest.yaml.
type Store struct {
	root   string
	logger *zap.Logger
}

// NewStore creates a store rooted at dir.
func NewStore(root string, logger *zap.Logger) *Store {
	return &Store{root: root, logger: logger}
}

// Root returns the releases root directory.
func (s *Store) Root() string {
	return s.root
}

// Scan lists all well-formed releases. Directories with missing or
// invalid manifests are skipped with a warning, never fatal.
func (s *Store) Scan() ([]Release, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan releases: %w", err)
	}

	var releases []Release
	for _, entry := range entries {
		// Staging directories are dot-prefixed until renamed into place.
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		dir := filepath.Join(s.root, entry.Name())
		data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
		if err != nil {
			continue
		}
		m, err := ParseManifest(data)
		if err != nil {
			s.logger.Warn("skipping release with invalid manifest",
				zap.String("dir", dir),
				zap.Error(err),
			)
			continue
		}
		releases = append(releases, Release{Manifest: m, Dir: dir})
	}
	return releases, nil
}

// Current returns the highest-versioned release, if any exists.
func (s *Store) Current() (Release, bool) {
	releases, err := s.Scan()
	if err != nil {
		s.logger.Warn("release scan failed", zap.Error(err))
		return Release{}, false
	}
	if len(releases) == 0 {
		return Release{}, false
	}

	best := releases[0]
	for _, rel := range releases[1:] {
		if CompareVersions(rel.Version(), best.Version()) > 0 {
			best = rel
		}
	}
	return best, true
}

// Verify checks the release binary against its manifest checksum.
func (s *Store) Verify(rel Release) error {
	f, err := os.Open(rel.BinaryPath())
	if err != nil {
		return fmt.Errorf("verify %s: %w", rel.Version(), err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return err
	}
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("verify %s: %w", rel.Version(), err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if sum != rel.Manifest.Checksum {
		return fmt.Errorf("verify %s: checksum mismatch, manifest %s, binary %s",
			rel.Version(), rel.Manifest.Checksum, sum)
	}
	return nil
}

// Add installs a new release from a binary stream. The binary is hashed
// while writing and rejected on checksum mismatch; the release directory
// appears atomically via rename so watchers never observe a half-written
// release.
func (s *Store) Add(m Manifest, binary io.Reader) (Release, error) {
	if err := m.Validate(); err != nil {
		return Release{}, err
	}

	finalDir := filepath.Join(s.root, m.Version)
	if _, err := os.Stat(finalDir); err == nil {
		return Release{}, fmt.Errorf("release %s already installed", m.Version)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return Release{}, fmt.Errorf("add release: %w", err)
	}

	tmpDir, err := os.MkdirTemp(s.root, ".staging-")
	if err != nil {
		return Release{}, fmt.Errorf("add release: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	f, err := os.OpenFile(filepath.Join(tmpDir, m.Binary), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o755)
	if err != nil {
		return Release{}, fmt.Errorf("add release: %w", err)
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		f.Close()
		return Release{}, err
	}
	if _, err := io.Copy(io.MultiWriter(f, h), binary); err != nil {
		f.Close()
		return Release{}, fmt.Errorf("add release %s: %w", m.Version, err)
	}
	if err := f.Close(); err != nil {
		return Release{}, fmt.Errorf("add release %s: %w", m.Version, err)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	if sum != m.Checksum {
		return Release{}, fmt.Errorf("add release %s: checksum mismatch, manifest %s, download %s",
			m.Version, m.Checksum, sum)
	}

	data, err := m.Encode()
	if err != nil {
		return Release{}, err
	}
	if err := os.WriteFile(filepath.Join(tmpDir, ManifestFile), data, 0o644); err != nil {
		return Release{}, fmt.Errorf("add release %s: %w", m.Version, err)
	}

	if err := os.Rename(tmpDir, finalDir); err != nil {
		return Release{}, fmt.Errorf("add release %s: %w", m.Version, err)
	}

	s.logger.Info("release installed",
		zap.String("version", m.Version),
		zap.String("dir", finalDir),
	)
	return Release{Manifest: m, Dir: finalDir}, nil
}
