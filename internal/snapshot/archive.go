package snapshot

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Format is the backup generation(s) found in an archive.
type Format string

const (
	FormatNone   Format = "none"
	FormatLegacy Format = "legacy"
	FormatModern Format = "modern"
	FormatBoth   Format = "both"
)

// HasDump reports whether the format carries relational dumps.
func (f Format) HasDump() bool {
	return f == FormatModern || f == FormatBoth
}

// LegacyFolders are the per-entity folders of the pre-migration layout.
var LegacyFolders = []string{"notes", "clients", "projects"}

// ModernPrefix starts every dump entry name.
const ModernPrefix = DumpDir + "/"

// Inspection is the result of classifying an archive's entry names.
type Inspection struct {
	Format Format
	// LegacyFolders found anywhere in an entry path, sorted.
	LegacyFolders []string
	Modern        bool
	Entries       []string
}

// Inspect classifies entry names without extracting anything. Every path
// segment of every entry is matched against LegacyFolders; an entry name
// starting with db/ marks the modern layout.
func Inspect(names []string) *Inspection {
	segments := make(map[string]bool)
	modern := false
	for _, name := range names {
		norm := strings.ReplaceAll(name, `\`, "/")
		if strings.HasPrefix(name, ModernPrefix) {
			modern = true
		}
		for _, seg := range strings.Split(norm, "/") {
			if seg != "" {
				segments[seg] = true
			}
		}
	}

	insp := &Inspection{Modern: modern, Entries: names}
	for _, folder := range LegacyFolders {
		if segments[folder] {
			insp.LegacyFolders = append(insp.LegacyFolders, folder)
		}
	}
	sort.Strings(insp.LegacyFolders)

	legacy := len(insp.LegacyFolders) > 0
	switch {
	case legacy && modern:
		insp.Format = FormatBoth
	case modern:
		insp.Format = FormatModern
	case legacy:
		insp.Format = FormatLegacy
	default:
		insp.Format = FormatNone
	}
	return insp
}

// OpenArchive opens an in-memory zip archive.
func OpenArchive(data []byte) (*zip.Reader, error) {
	return zip.NewReader(bytes.NewReader(data), int64(len(data)))
}

// EntryNames returns the literal entry names of zr in archive order.
func EntryNames(zr *zip.Reader) []string {
	names := make([]string, len(zr.File))
	for i, f := range zr.File {
		names[i] = f.Name
	}
	return names
}

// BuildArchive walks root and writes every regular file into an in-memory
// zip at its slash-separated path relative to root. Directories get no
// entries of their own. Files matching an exclude pattern (doublestar
// syntax, relative to root) are skipped.
func BuildArchive(root string, exclude []string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if excluded(rel, exclude) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return addFile(zw, path, rel, info)
	})
	if err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

func addFile(zw *zip.Writer, path, name string, info fs.FileInfo) error {
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("header for %s: %w", name, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("compress %s: %w", name, err)
	}
	return nil
}

func excluded(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
