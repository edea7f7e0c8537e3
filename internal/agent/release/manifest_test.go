package release

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`
version: 1.4.2
binary: syncagent
checksum: ` + strings.Repeat("ab", 32) + `
created_at: 2026-08-01T10:00:00Z
notes: adds offline task replay
`)

	m, err := ParseManifest(data)
	require.NoError(t, err)
	assert.Equal(t, "1.4.2", m.Version)
	assert.Equal(t, "syncagent", m.Binary)
	assert.Len(t, m.Checksum, 64)
	assert.Equal(t, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), m.CreatedAt)
}

func TestParseManifestRejectsGarbage(t *testing.T) {
	_, err := ParseManifest([]byte("{{not yaml"))
	assert.Error(t, err)
}

func TestManifestValidate(t *testing.T) {
	valid := Manifest{
		Version:  "1.0.0",
		Binary:   "syncagent",
		Checksum: strings.Repeat("0", 64),
	}

	tests := []struct {
		name    string
		mutate  func(*Manifest)
		wantErr bool
	}{
		{"valid", func(m *Manifest) {}, false},
		{"bad version", func(m *Manifest) { m.Version = "latest" }, true},
		{"two part version", func(m *Manifest) { m.Version = "1.0" }, true},
		{"missing binary", func(m *Manifest) { m.Binary = "" }, true},
		{"binary with path", func(m *Manifest) { m.Binary = "../etc/passwd" }, true},
		{"short checksum", func(m *Manifest) { m.Checksum = "abcd" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid
			tt.mutate(&m)
			err := m.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestManifestEncodeRoundTrip(t *testing.T) {
	m := Manifest{
		Version:  "2.0.1",
		Binary:   "syncagent",
		Checksum: strings.Repeat("f", 64),
		Notes:    "hotfix",
	}

	data, err := m.Encode()
	require.NoError(t, err)

	back, err := ParseManifest(data)
	require.NoError(t, err)
	assert.Equal(t, m, back)
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.0.1", "1.0.0", 1},
		{"1.0.0", "1.0.1", -1},
		{"1.10.0", "1.9.9", 1},
		{"2.0.0", "1.99.99", 1},
		{"v1.2.3", "1.2.3", 0},
		{"garbage", "1.0.0", -1},
		{"1.0.0", "garbage", 1},
		{"garbage", "junk", 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CompareVersions(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}
