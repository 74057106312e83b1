package lock

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerGuard_Check_NoFile(t *testing.T) {
	guard := NewServerGuard(t.TempDir(), "/data")
	assert.NoError(t, guard.Check())
}

func TestServerGuard_Check_StaleProcess(t *testing.T) {
	dir := t.TempDir()
	guard := NewServerGuard(dir, "/data")

	// A very high PID that's unlikely to exist.
	require.NoError(t, os.WriteFile(guard.Path(), []byte("999999"), 0o644))

	assert.NoError(t, guard.Check())

	_, err := os.Stat(guard.Path())
	assert.True(t, os.IsNotExist(err), "stale PID file should be removed")
}

func TestServerGuard_Check_InvalidContent(t *testing.T) {
	guard := NewServerGuard(t.TempDir(), "/data")
	require.NoError(t, os.WriteFile(guard.Path(), []byte("not-a-pid"), 0o644))

	assert.NoError(t, guard.Check())
	_, err := os.Stat(guard.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestServerGuard_Check_LiveProcess(t *testing.T) {
	guard := NewServerGuard(t.TempDir(), "/data")

	// PID 1 always exists on Unix.
	require.NoError(t, os.WriteFile(guard.Path(), []byte("1"), 0o644))

	err := guard.Check()
	require.Error(t, err)
	var running *AlreadyRunningError
	require.ErrorAs(t, err, &running)
	assert.Equal(t, 1, running.PID)
}

func TestServerGuard_AcquireRelease(t *testing.T) {
	guard := NewServerGuard(t.TempDir(), "/data")

	require.NoError(t, guard.Acquire())

	data, err := os.ReadFile(guard.Path())
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))

	// Re-acquiring from the same process is allowed.
	require.NoError(t, guard.Acquire())

	guard.Release()
	_, err = os.Stat(guard.Path())
	assert.True(t, os.IsNotExist(err))

	// Release is idempotent.
	guard.Release()
}
