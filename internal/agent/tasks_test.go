package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterSyncTasksWritesBatch(t *testing.T) {
	r, runner, _ := newTestRegistrar(t, "1.0.0")
	defer r.Stop()

	r.Register(context.Background())
	require.Eventually(t, func() bool { return runner.started() == 1 }, time.Second, 10*time.Millisecond)

	_, daemonConn := wsPair(t)
	require.NotNil(t, r.AttachConn(daemonConn, "1.0.0"))

	names := []string{"workflow-save", "task-update", "agent-status"}
	require.NoError(t, r.RegisterSyncTasks(names))

	data, err := os.ReadFile(filepath.Join(r.cfg.DataDir, RegistrationsFile))
	require.NoError(t, err)

	var reg TaskRegistration
	require.NoError(t, sonic.Unmarshal(data, &reg))
	assert.Equal(t, names, reg.Tasks)
	assert.False(t, reg.RegisteredAt.IsZero())

	// The temp file never outlives the rename.
	_, err = os.Stat(filepath.Join(r.cfg.DataDir, RegistrationsFile+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestRegisterSyncTasksRequiresAgent(t *testing.T) {
	r, _, _ := newTestRegistrar(t, "1.0.0")

	err := r.RegisterSyncTasks([]string{"workflow-save"})
	assert.ErrorIs(t, err, ErrNoAgent)
}
