package release

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// ManifestFile is the per-release metadata file name.
const ManifestFile = "manifest.yaml"

// Manifest describes one agent release.
type Manifest struct {
	Version   string    `yaml:"version"`
	Binary    string    `yaml:"binary"`
	Checksum  string    `yaml:"checksum"`
	CreatedAt time.Time `yaml:"created_at,omitempty"`
	Notes     string    `yaml:"notes,omitempty"`
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks the manifest holds everything a release needs.
func (m Manifest) Validate() error {
	if _, err := parseVersion(m.Version); err != nil {
		return err
	}
	if m.Binary == "" {
		return fmt.Errorf("manifest %s: missing binary name", m.Version)
	}
	if strings.ContainsAny(m.Binary, "/\\") {
		return fmt.Errorf("manifest %s: binary name must not contain path separators", m.Version)
	}
	if len(m.Checksum) != 64 {
		return fmt.Errorf("manifest %s: checksum must be 64 hex characters, got %d", m.Version, len(m.Checksum))
	}
	return nil
}

// Encode serializes the manifest back to YAML.
func (m Manifest) Encode() ([]byte, error) {
	return yaml.Marshal(m)
}

// CompareVersions orders two dotted versions. Returns -1, 0, or 1.
// Both versions must be well-formed; malformed input sorts lowest so a
// corrupt manifest can never win a current-release election.
func CompareVersions(a, b string) int {
	av, aerr := parseVersion(a)
	bv, berr := parseVersion(b)
	switch {
	case aerr != nil && berr != nil:
		return 0
	case aerr != nil:
		return -1
	case berr != nil:
		return 1
	}

	for i := 0; i < 3; i++ {
		if av[i] != bv[i] {
			if av[i] < bv[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func parseVersion(v string) ([3]int, error) {
	var out [3]int
	trimmed := strings.TrimPrefix(v, "v")
	parts := strings.Split(trimmed, ".")
	if len(parts) != 3 {
		return out, fmt.Errorf("version %q: want major.minor.patch", v)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return out, fmt.Errorf("version %q: bad component %q", v, p)
		}
		out[i] = n
	}
	return out, nil
}
