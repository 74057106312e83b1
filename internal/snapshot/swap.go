package snapshot

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/natefinch/atomic"

	noteserrors "github.com/pietrospam/pietrosoft-notes-sub000/internal/errors"
)

// FallbackDirName is the data root created under the temp dir when the
// configured root cannot be created for lack of permission.
const FallbackDirName = "pietrosoft-notes-data"

// MaxEntryBytes caps a single extracted file.
const MaxEntryBytes = 1 << 30

// FS is the filesystem surface used by the directory swap. Tests inject
// failures through it.
type FS interface {
	MkdirAll(path string, perm fs.FileMode) error
	Rename(oldpath, newpath string) error
	RemoveAll(path string) error
	Stat(path string) (fs.FileInfo, error)
	WriteFile(path string, r io.Reader, perm fs.FileMode) error
}

// OSFS is the real filesystem. WriteFile goes through a temp file and a
// rename so a crash never leaves a torn file behind.
type OSFS struct{}

func (OSFS) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }
func (OSFS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }
func (OSFS) RemoveAll(path string) error { return os.RemoveAll(path) }
func (OSFS) Stat(path string) (fs.FileInfo, error) { return os.Stat(path) }

func (OSFS) WriteFile(path string, r io.Reader, perm fs.FileMode) error {
	if err := atomic.WriteFile(path, r); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}

// Swapper replaces a data root with the contents of an archive, keeping
// the previous root as a sibling backup until extraction succeeds.
type Swapper struct {
	fs      FS
	tempDir string
	logger  *slog.Logger
	now     func() time.Time
}

// NewSwapper creates a swapper. A nil fsys selects OSFS.
func NewSwapper(fsys FS, tempDir string, logger *slog.Logger) *Swapper {
	if fsys == nil {
		fsys = OSFS{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Swapper{fs: fsys, tempDir: tempDir, logger: logger, now: time.Now}
}

// SwapResult describes a completed swap.
type SwapResult struct {
	// Root is the data root now holding the archive contents. It differs
	// from the requested root after a permission fallback.
	Root      string
	Relocated bool
	Files     int
}

// Replace swaps the data root at root for the contents of zr.
//
// If the root cannot be created for lack of permission it is relocated
// under the temp dir. An existing root is renamed to a timestamped sibling
// before extraction. On extraction failure the partial root is removed
// and the backup renamed back, leaving the previous tree untouched.
func (s *Swapper) Replace(ctx context.Context, root string, zr *zip.Reader) (*SwapResult, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, noteserrors.ErrDataRootUnavailable(root, err)
	}

	target, relocated, existed, err := s.prepareRoot(abs)
	if err != nil {
		return nil, err
	}

	backup := ""
	if existed {
		backup = target + ".backup-" + s.now().UTC().Format("20060102-150405.000000000")
		if err := s.fs.Rename(target, backup); err != nil {
			return nil, noteserrors.ErrDataRootUnavailable(target, fmt.Errorf("move current data aside: %w", err))
		}
		s.logger.Debug("data root moved aside", "root", target, "backup", backup)
	}

	files, extractErr := s.extract(ctx, target, zr)
	if extractErr != nil {
		return nil, s.rollback(target, backup, zr, extractErr)
	}

	if backup != "" {
		if err := s.fs.RemoveAll(backup); err != nil {
			s.logger.Warn("failed to remove data root backup", "backup", backup, "error", err)
		}
	}

	return &SwapResult{Root: target, Relocated: relocated, Files: files}, nil
}

// prepareRoot makes sure a directory can live at root. existed reports
// whether one was already there.
func (s *Swapper) prepareRoot(root string) (target string, relocated, existed bool, err error) {
	if info, statErr := s.fs.Stat(root); statErr == nil {
		if !info.IsDir() {
			return "", false, false, noteserrors.ErrDataRootUnavailable(root, errors.New("not a directory"))
		}
		return root, false, true, nil
	}

	mkErr := s.fs.MkdirAll(root, 0o755)
	if mkErr == nil {
		return root, false, false, nil
	}
	if !errors.Is(mkErr, fs.ErrPermission) {
		return "", false, false, noteserrors.ErrDataRootUnavailable(root, mkErr)
	}

	fallback := filepath.Join(s.tempDir, FallbackDirName)
	s.logger.Warn("data root not writable, relocating", "root", root, "fallback", fallback, "error", mkErr)

	if info, statErr := s.fs.Stat(fallback); statErr == nil && info.IsDir() {
		return fallback, true, true, nil
	}
	if err := s.fs.MkdirAll(fallback, 0o755); err != nil {
		return "", false, false, noteserrors.ErrDataRootUnavailable(fallback, err)
	}
	return fallback, true, false, nil
}

// extract recreates root and writes every archive entry into it.
func (s *Swapper) extract(ctx context.Context, root string, zr *zip.Reader) (int, error) {
	if err := s.fs.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("recreate data root: %w", err)
	}

	files := 0
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		dest, err := safeJoin(root, f.Name)
		if err != nil {
			return files, err
		}
		if dest == root {
			continue
		}

		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			if err := s.fs.MkdirAll(dest, 0o755); err != nil {
				return files, fmt.Errorf("create %s: %w", f.Name, err)
			}
			continue
		}

		if err := s.extractFile(f, dest); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

func (s *Swapper) extractFile(f *zip.File, dest string) error {
	if f.UncompressedSize64 > MaxEntryBytes {
		return fmt.Errorf("entry %s too large: %d bytes (max %d)", f.Name, f.UncompressedSize64, MaxEntryBytes)
	}
	if err := s.fs.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	// Fake size headers are caught by the limit.
	lr := &limitReader{r: rc, remaining: MaxEntryBytes, name: f.Name}
	if err := s.fs.WriteFile(dest, lr, perm); err != nil {
		return fmt.Errorf("write %s: %w", f.Name, err)
	}
	return nil
}

// rollback undoes a failed extraction. When the backup cannot be moved
// back it reports ROLLBACK_FAILED; the backup is left where it is.
func (s *Swapper) rollback(root, backup string, zr *zip.Reader, cause error) error {
	s.logger.Warn("extraction failed, rolling back", "root", root, "error", cause)

	if err := s.fs.RemoveAll(root); err != nil {
		s.logger.Warn("failed to remove partially extracted root", "root", root, "error", err)
	}
	if backup != "" {
		if err := s.fs.Rename(backup, root); err != nil {
			return noteserrors.ErrRollbackFailed(backup, err)
		}
	}
	return noteserrors.ErrExtractFailed(cause).WithDetails(map[string]any{"entries": EntryNames(zr)})
}

// safeJoin resolves an entry name under root, rejecting names that would
// escape it.
func safeJoin(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.ReplaceAll(name, `\`, "/")))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes the data root", name)
	}

	dest := filepath.Join(root, clean)
	rel, err := filepath.Rel(root, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("entry %q escapes the data root", name)
	}
	return dest, nil
}

type limitReader struct {
	r         io.Reader
	remaining int64
	name      string
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, fmt.Errorf("entry %s exceeded size limit during extraction", l.name)
	}
	return n, err
}
