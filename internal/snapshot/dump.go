// Package snapshot exports a notes workspace into a single zip archive and
// restores it, across both the legacy file-tree layout and the relational
// dump layout.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/tidwall/gjson"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db"
)

// DumpDir is the folder, relative to the data root and to the archive
// root, holding the table dumps.
const DumpDir = "db"

// Dump file names, one JSON array per table.
const (
	ClientsFile      = "clients.json"
	ProjectsFile     = "projects.json"
	NotesFile        = "notes.json"
	AttachmentsFile  = "attachments.json"
	ActivityLogsFile = "activityLogs.json"
)

// LoadOrder lists the dump files parents first.
var LoadOrder = []string{ClientsFile, ProjectsFile, NotesFile, AttachmentsFile, ActivityLogsFile}

// ErrNotArray is returned by DecodeTable for documents that are not a JSON array.
var ErrNotArray = errors.New("dump document is not a JSON array")

// Dump is an in-memory copy of every workspace table.
type Dump struct {
	Clients      []db.Client
	Projects     []db.Project
	Notes        []db.Note
	Attachments  []db.Attachment
	ActivityLogs []db.ActivityLog
}

// Counts returns the row count of each table in the dump.
func (d *Dump) Counts() db.Counts {
	return db.Counts{
		Notes:        len(d.Notes),
		Clients:      len(d.Clients),
		Projects:     len(d.Projects),
		Attachments:  len(d.Attachments),
		ActivityLogs: len(d.ActivityLogs),
	}
}

// TableReader lists full table contents.
type TableReader interface {
	ListClients(ctx context.Context) ([]db.Client, error)
	ListProjects(ctx context.Context) ([]db.Project, error)
	ListNotes(ctx context.Context) ([]db.Note, error)
	ListAttachments(ctx context.Context) ([]db.Attachment, error)
	ListActivityLogs(ctx context.Context) ([]db.ActivityLog, error)
}

// ReadDump reads every table from r.
func ReadDump(ctx context.Context, r TableReader) (*Dump, error) {
	var d Dump
	var err error
	if d.Clients, err = r.ListClients(ctx); err != nil {
		return nil, err
	}
	if d.Projects, err = r.ListProjects(ctx); err != nil {
		return nil, err
	}
	if d.Notes, err = r.ListNotes(ctx); err != nil {
		return nil, err
	}
	if d.Attachments, err = r.ListAttachments(ctx); err != nil {
		return nil, err
	}
	if d.ActivityLogs, err = r.ListActivityLogs(ctx); err != nil {
		return nil, err
	}
	return &d, nil
}

// Files encodes the dump into its five documents keyed by file name.
func (d *Dump) Files() (map[string][]byte, error) {
	files := make(map[string][]byte, len(LoadOrder))
	var err error
	if files[ClientsFile], err = EncodeTable(d.Clients); err != nil {
		return nil, err
	}
	if files[ProjectsFile], err = EncodeTable(d.Projects); err != nil {
		return nil, err
	}
	if files[NotesFile], err = EncodeTable(d.Notes); err != nil {
		return nil, err
	}
	if files[AttachmentsFile], err = EncodeTable(d.Attachments); err != nil {
		return nil, err
	}
	if files[ActivityLogsFile], err = EncodeTable(d.ActivityLogs); err != nil {
		return nil, err
	}
	return files, nil
}

// WriteDump writes the five documents into dir, replacing each file
// atomically.
func WriteDump(dir string, d *Dump) error {
	files, err := d.Files()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}
	for _, name := range LoadOrder {
		if err := atomic.WriteFile(filepath.Join(dir, name), bytes.NewReader(files[name])); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// EncodeTable renders rows as a JSON array. Byte slices become base64
// strings. A nil slice encodes as [].
//
// Output is compact: indenting would also reformat the embedded note
// content documents.
func EncodeTable[T any](rows []T) ([]byte, error) {
	if rows == nil {
		rows = []T{}
	}
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode table: %w", err)
	}
	return append(data, '\n'), nil
}

// RowError reports a row that could not be decoded. The rest of the
// document still decodes.
type RowError struct {
	Index int
	ID    string
	Err   error
}

func (e *RowError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("row %d (id %s): %v", e.Index, e.ID, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Index, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// DecodeTable parses a dump document. Only the document structure is
// validated; each row is decoded on its own so a bad row (for instance a
// non-base64 attachment payload) is reported in rowErrs without failing
// the others.
func DecodeTable[T any](data []byte) (rows []T, rowErrs []*RowError, err error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, errors.New("dump document is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, nil, ErrNotArray
	}

	i := 0
	doc.ForEach(func(_, row gjson.Result) bool {
		var v T
		if err := json.Unmarshal([]byte(row.Raw), &v); err != nil {
			rowErrs = append(rowErrs, &RowError{Index: i, ID: row.Get("id").String(), Err: err})
		} else {
			rows = append(rows, v)
		}
		i++
		return true
	})
	return rows, rowErrs, nil
}
