package release

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/infrastructure/resilience"
)

func newUpdateServer(t *testing.T, version string, binary []byte) *httptest.Server {
	t.Helper()

	sum := blake2b.Sum256(binary)
	m := Manifest{
		Version:  version,
		Binary:   "syncagent",
		Checksum: hex.EncodeToString(sum[:]),
	}
	manifestYAML, err := m.Encode()
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/"+ManifestFile, func(w http.ResponseWriter, r *http.Request) {
		w.Write(manifestYAML)
	})
	mux.HandleFunc("/"+version+"/syncagent", func(w http.ResponseWriter, r *http.Request) {
		w.Write(binary)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestUpdaterCheckAndDownload(t *testing.T) {
	binary := []byte("remote-agent-v2")
	srv := newUpdateServer(t, "2.1.0", binary)

	store := NewStore(t.TempDir(), zap.NewNop())
	u := NewUpdater(srv.URL, store, zap.NewNop())
	u.client.SetRetryCount(0)

	m, err := u.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", m.Version)

	rel, err := u.Download(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, "2.1.0", rel.Version())
	require.NoError(t, store.Verify(rel))
}

func TestUpdaterCheckFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewStore(t.TempDir(), zap.NewNop())
	u := NewUpdater(srv.URL, store, zap.NewNop())
	u.client.SetRetryCount(0)

	_, err := u.Check(context.Background())
	assert.Error(t, err)
}

func TestUpdaterBreakerOpensAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewStore(t.TempDir(), zap.NewNop())
	u := NewUpdater(srv.URL, store, zap.NewNop())
	u.client.SetRetryCount(0)

	for i := 0; i < 3; i++ {
		_, err := u.Check(context.Background())
		require.Error(t, err)
	}

	_, err := u.Check(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}
