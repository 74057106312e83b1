package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ServerGuard prevents two servers from running against the same data
// root. It uses a PID file in the lock directory.
type ServerGuard struct {
	path string
}

// NewServerGuard creates a guard for resource with its PID file in dir.
func NewServerGuard(dir, resource string) *ServerGuard {
	return &ServerGuard{path: PIDPath(dir, resource)}
}

// PIDPath returns the server PID file used for resource inside dir.
func PIDPath(dir, resource string) string {
	return strings.TrimSuffix(LockPath(dir, resource), ".lock") + ".pid"
}

// Path returns the PID file path.
func (g *ServerGuard) Path() string {
	return g.path
}

// Check verifies no other live process holds the guard.
// A stale PID file (process no longer running) is cleaned up.
func (g *ServerGuard) Check() error {
	data, err := os.ReadFile(g.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		_ = os.Remove(g.path)
		return nil
	}

	if pid != os.Getpid() && processExists(pid) {
		return &AlreadyRunningError{PID: pid}
	}

	_ = os.Remove(g.path)
	return nil
}

// Acquire checks the guard and writes the current PID.
func (g *ServerGuard) Acquire() error {
	if err := g.Check(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(g.path), 0o755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	if err := os.WriteFile(g.path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Release removes the PID file.
// Safe to call even if file doesn't exist.
func (g *ServerGuard) Release() {
	_ = os.Remove(g.path)
}

// AlreadyRunningError indicates a server already serves the data root.
type AlreadyRunningError struct {
	PID int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("server already running for this data directory (pid %d)", e.PID)
}

// processExists checks if a process with the given PID exists by sending
// signal 0.
func processExists(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
