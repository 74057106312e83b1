// Package lock serializes workspace operations across goroutines and
// processes. ModeNone uses NoOpLocker (single-writer assumption), ModeFlock
// uses FileLocker, an advisory flock on a per-data-root lock file.
package lock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

// Mode represents the coordination mode.
type Mode string

const (
	ModeNone  Mode = "none"
	ModeFlock Mode = "flock"
)

// ParseMode parses a lock mode string. Empty and "file" select ModeFlock.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeFlock, "file":
		return ModeFlock, nil
	case ModeNone:
		return ModeNone, nil
	default:
		return "", fmt.Errorf("unknown lock mode %q (want flock or none)", s)
	}
}

// DefaultTimeout bounds how long Acquire waits for a busy workspace.
const DefaultTimeout = 30 * time.Second

// DefaultPollInterval is the delay between non-blocking flock attempts.
const DefaultPollInterval = 50 * time.Millisecond

// filePrefix names lock and pid files in the lock directory.
const filePrefix = "pietrosoft-notes-"

// Lock is the holder record written into a held lock file.
type Lock struct {
	Owner     string    `yaml:"owner"`     // user@machine identifier
	Operation string    `yaml:"operation"` // export, import or wipe
	Acquired  time.Time `yaml:"acquired"`
	PID       int       `yaml:"pid"`
}

// LockInfo provides information about a lock holder.
type LockInfo struct {
	Owner     string
	Operation string
	Acquired  time.Time
	PID       int
}

// Locker defines the interface for workspace locking. resource is the
// absolute data root path.
type Locker interface {
	// Acquire blocks until the lock for resource is held, the locker's
	// timeout expires (*LockError) or ctx is done.
	Acquire(ctx context.Context, resource, operation string) error

	// Release releases the lock for resource.
	Release(resource string) error

	// IsLocked reports whether some process holds the lock for resource.
	IsLocked(resource string) (bool, *LockInfo, error)
}

// NewLocker creates a Locker appropriate for the given mode.
func NewLocker(mode Mode, dir, owner string, timeout time.Duration) Locker {
	switch mode {
	case ModeNone:
		return NewNoOpLocker()
	default:
		return NewFileLocker(dir, owner, timeout)
	}
}

// DefaultOwner returns "user@host" for the current process.
func DefaultOwner() string {
	name := "unknown"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return name + "@" + host
}

// NoOpLocker is a no-op locker.
// All operations succeed immediately with zero overhead.
type NoOpLocker struct{}

// NewNoOpLocker creates a new NoOpLocker.
func NewNoOpLocker() *NoOpLocker {
	return &NoOpLocker{}
}

// Acquire always succeeds for NoOpLocker.
func (l *NoOpLocker) Acquire(ctx context.Context, resource, operation string) error {
	return nil
}

// Release always succeeds for NoOpLocker.
func (l *NoOpLocker) Release(resource string) error {
	return nil
}

// IsLocked always returns false for NoOpLocker.
func (l *NoOpLocker) IsLocked(resource string) (bool, *LockInfo, error) {
	return false, nil, nil
}

// FileLocker implements advisory locking with flock(2).
//
// Lock files live in dir, not next to the data root: the root is renamed
// during import and its parent may not be writable. Lock files are never
// unlinked, since flock guards an inode rather than a path.
type FileLocker struct {
	dir     string
	owner   string
	timeout time.Duration
	poll    time.Duration

	mu   sync.Mutex
	held map[string]*os.File
}

// NewFileLocker creates a new FileLocker storing lock files in dir.
func NewFileLocker(dir, owner string, timeout time.Duration) *FileLocker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &FileLocker{
		dir:     dir,
		owner:   owner,
		timeout: timeout,
		poll:    DefaultPollInterval,
		held:    make(map[string]*os.File),
	}
}

// LockPath returns the lock file used for resource inside dir.
func LockPath(dir, resource string) string {
	return filepath.Join(dir, filePrefix+resourceID(resource)+".lock")
}

func resourceID(resource string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.Clean(resource))).String()
}

// Acquire takes an exclusive flock for resource, polling until the timeout.
func (l *FileLocker) Acquire(ctx context.Context, resource, operation string) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}

	path := LockPath(l.dir, resource)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(l.timeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			_ = f.Close()
			return fmt.Errorf("flock %s: %w", path, err)
		}
		if time.Now().After(deadline) {
			_ = f.Close()
			lockErr := &LockError{Resource: resource, Reason: "workspace is locked"}
			if info, err := readLock(path); err == nil {
				lockErr.Owner = info.Owner
				lockErr.Operation = info.Operation
				lockErr.PID = info.PID
			}
			return lockErr
		}
		select {
		case <-ctx.Done():
			_ = f.Close()
			return ctx.Err()
		case <-time.After(l.poll):
		}
	}

	if err := writeLock(f, &Lock{
		Owner:     l.owner,
		Operation: operation,
		Acquired:  time.Now().UTC(),
		PID:       os.Getpid(),
	}); err != nil {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
		return fmt.Errorf("write lock: %w", err)
	}

	l.mu.Lock()
	l.held[resource] = f
	l.mu.Unlock()
	return nil
}

// Release releases the lock for resource. Releasing a lock that is not
// held is a no-op.
func (l *FileLocker) Release(resource string) error {
	l.mu.Lock()
	f, ok := l.held[resource]
	delete(l.held, resource)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	_ = f.Truncate(0)
	unlockErr := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	closeErr := f.Close()
	if unlockErr != nil {
		unlockErr = fmt.Errorf("unlock: %w", unlockErr)
	}
	if closeErr != nil {
		closeErr = fmt.Errorf("close lock file: %w", closeErr)
	}
	return errors.Join(unlockErr, closeErr)
}

// IsLocked checks if resource is currently locked by any process,
// including this one.
func (l *FileLocker) IsLocked(resource string) (bool, *LockInfo, error) {
	path := LockPath(l.dir, resource)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = f.Close() }()

	err = unix.Flock(int(f.Fd()), unix.LOCK_SH|unix.LOCK_NB)
	if err == nil {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		return false, nil, nil
	}
	if !errors.Is(err, unix.EWOULDBLOCK) {
		return false, nil, fmt.Errorf("flock %s: %w", path, err)
	}

	lock, err := readLock(path)
	if err != nil {
		return true, nil, nil
	}
	return true, &LockInfo{
		Owner:     lock.Owner,
		Operation: lock.Operation,
		Acquired:  lock.Acquired,
		PID:       lock.PID,
	}, nil
}

func readLock(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, io.ErrUnexpectedEOF
	}

	var lock Lock
	if err := yaml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("parse lock file: %w", err)
	}
	return &lock, nil
}

func writeLock(f *os.File, lock *Lock) error {
	data, err := yaml.Marshal(lock)
	if err != nil {
		return fmt.Errorf("marshal lock: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err = f.WriteAt(data, 0)
	return err
}

// LockError represents a lock acquisition timeout.
type LockError struct {
	Resource  string
	Owner     string
	Operation string
	PID       int
	Reason    string
}

func (e *LockError) Error() string {
	if e.Owner == "" {
		return fmt.Sprintf("%s: %s", e.Resource, e.Reason)
	}
	return fmt.Sprintf("%s: %s (owner: %s, operation: %s, pid %d)", e.Resource, e.Reason, e.Owner, e.Operation, e.PID)
}
