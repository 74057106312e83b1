package lock

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpLocker_AlwaysSucceeds(t *testing.T) {
	locker := NewNoOpLocker()
	ctx := context.Background()

	assert.NoError(t, locker.Acquire(ctx, "/data", "import"))
	// A second acquire does not block.
	assert.NoError(t, locker.Acquire(ctx, "/data", "wipe"))
	assert.NoError(t, locker.Release("/data"))

	locked, info, err := locker.IsLocked("/data")
	assert.NoError(t, err)
	assert.False(t, locked)
	assert.Nil(t, info)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeFlock, m)

	m, err = ParseMode("none")
	require.NoError(t, err)
	assert.Equal(t, ModeNone, m)

	_, err = ParseMode("redis")
	assert.Error(t, err)
}

func TestNewLocker(t *testing.T) {
	assert.IsType(t, &NoOpLocker{}, NewLocker(ModeNone, t.TempDir(), "a@b", 0))
	assert.IsType(t, &FileLocker{}, NewLocker(ModeFlock, t.TempDir(), "a@b", 0))
}

func TestLockPath_StablePerResource(t *testing.T) {
	dir := t.TempDir()
	a := LockPath(dir, "/srv/notes/data")
	b := LockPath(dir, "/srv/notes/data/")
	c := LockPath(dir, "/srv/other")

	assert.Equal(t, a, b, "trailing slash must not change the lock")
	assert.NotEqual(t, a, c)
	assert.Equal(t, dir, filepath.Dir(a))
	assert.Contains(t, filepath.Base(a), "pietrosoft-notes-")
}

func TestFileLocker_AcquireRelease(t *testing.T) {
	dir := t.TempDir()
	locker := NewFileLocker(dir, "alice@laptop", time.Second)
	ctx := context.Background()

	require.NoError(t, locker.Acquire(ctx, "/data", "export"))

	_, err := os.Stat(LockPath(dir, "/data"))
	assert.NoError(t, err, "lock file should exist")

	locked, info, err := locker.IsLocked("/data")
	require.NoError(t, err)
	assert.True(t, locked)
	require.NotNil(t, info)
	assert.Equal(t, "alice@laptop", info.Owner)
	assert.Equal(t, "export", info.Operation)
	assert.Equal(t, os.Getpid(), info.PID)

	require.NoError(t, locker.Release("/data"))

	locked, _, err = locker.IsLocked("/data")
	require.NoError(t, err)
	assert.False(t, locked)

	// Lock file is kept for the next holder.
	_, err = os.Stat(LockPath(dir, "/data"))
	assert.NoError(t, err)
}

func TestFileLocker_ReleaseNotHeld(t *testing.T) {
	locker := NewFileLocker(t.TempDir(), "alice@laptop", time.Second)
	assert.NoError(t, locker.Release("/never-locked"))
}

func TestFileLocker_TimeoutReturnsLockError(t *testing.T) {
	dir := t.TempDir()
	holder := NewFileLocker(dir, "alice@laptop", time.Second)
	waiter := NewFileLocker(dir, "bob@desktop", 150*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, holder.Acquire(ctx, "/data", "import"))
	defer func() { _ = holder.Release("/data") }()

	start := time.Now()
	err := waiter.Acquire(ctx, "/data", "wipe")
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)

	var lockErr *LockError
	require.True(t, errors.As(err, &lockErr))
	assert.Equal(t, "alice@laptop", lockErr.Owner)
	assert.Equal(t, "import", lockErr.Operation)
	assert.Contains(t, lockErr.Error(), "workspace is locked")
}

func TestFileLocker_ContextCancel(t *testing.T) {
	dir := t.TempDir()
	holder := NewFileLocker(dir, "alice@laptop", time.Second)
	waiter := NewFileLocker(dir, "bob@desktop", time.Minute)

	require.NoError(t, holder.Acquire(context.Background(), "/data", "import"))
	defer func() { _ = holder.Release("/data") }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := waiter.Acquire(ctx, "/data", "export")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFileLocker_DifferentResourcesIndependent(t *testing.T) {
	dir := t.TempDir()
	locker := NewFileLocker(dir, "alice@laptop", 100*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, locker.Acquire(ctx, "/data-a", "import"))
	require.NoError(t, locker.Acquire(ctx, "/data-b", "import"))
	assert.NoError(t, locker.Release("/data-a"))
	assert.NoError(t, locker.Release("/data-b"))
}

func TestFileLocker_SerializesGoroutines(t *testing.T) {
	dir := t.TempDir()
	locker := NewFileLocker(dir, "alice@laptop", 5*time.Second)
	ctx := context.Background()

	var mu sync.Mutex
	inside := 0
	maxInside := 0

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := locker.Acquire(ctx, "/data", "import"); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
			if err := locker.Release("/data"); err != nil {
				t.Errorf("Release: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
}
