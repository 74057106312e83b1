package snapshot

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// makeZip builds an in-memory archive. Names ending in / become directory
// entries.
func makeZip(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		if !strings.HasSuffix(name, "/") {
			_, err = w.Write([]byte(entries[name]))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func openZip(t *testing.T, data []byte) *zip.Reader {
	t.Helper()
	zr, err := OpenArchive(data)
	require.NoError(t, err)
	return zr
}

// treeOf captures every file and directory under root. Directories map to
// "<dir>".
func treeOf(t *testing.T, root string) map[string]string {
	t.Helper()
	tree := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if d.IsDir() {
			tree[filepath.ToSlash(rel)] = "<dir>"
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return tree
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// faultFS wraps the real filesystem with injectable failures.
type faultFS struct {
	OSFS

	mu sync.Mutex
	// failWriteAt fails the Nth WriteFile call (1-based); 0 never fails.
	failWriteAt int
	writes      int
	// denyMkdir makes MkdirAll fail with a permission error for this path
	// and everything below it.
	denyMkdir string
	// failRenameFrom fails renames whose source has this suffix.
	failRenameFrom string
}

var errInjected = &fs.PathError{Op: "write", Path: "injected", Err: io.ErrShortWrite}

func (f *faultFS) WriteFile(path string, r io.Reader, perm fs.FileMode) error {
	f.mu.Lock()
	f.writes++
	n := f.writes
	f.mu.Unlock()

	if f.failWriteAt > 0 && n == f.failWriteAt {
		// Leave a torn file behind, as a real failure could.
		_ = os.WriteFile(path, []byte("partial"), perm)
		return errInjected
	}
	return f.OSFS.WriteFile(path, r, perm)
}

func (f *faultFS) MkdirAll(path string, perm fs.FileMode) error {
	if f.denyMkdir != "" && (path == f.denyMkdir || strings.HasPrefix(path, f.denyMkdir+string(filepath.Separator))) {
		return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrPermission}
	}
	return f.OSFS.MkdirAll(path, perm)
}

func (f *faultFS) Rename(oldpath, newpath string) error {
	if f.failRenameFrom != "" && strings.Contains(oldpath, f.failRenameFrom) {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fs.ErrPermission}
	}
	return f.OSFS.Rename(oldpath, newpath)
}

func mkdirs(root string, rel string) error {
	return os.MkdirAll(filepath.Join(root, filepath.FromSlash(rel)), 0o755)
}

func contextWithCancel(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	t.Cleanup(cancel)
	return ctx, cancel
}
