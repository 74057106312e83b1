package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db"
	noteserrors "github.com/pietrospam/pietrosoft-notes-sub000/internal/errors"
)

// errUnparseable marks a dump document that is skipped as a whole.
var errUnparseable = errors.New("unparseable dump document")

// Reconciler wipes the relational store and reloads it from dump files.
//
// The wipe is one transaction. Each file then loads in its own
// transaction, parents first; a failing file stops the load but files
// committed before it stay loaded.
type Reconciler struct {
	store  *db.WorkspaceDB
	logger *slog.Logger
}

// NewReconciler creates a reconciler for store.
func NewReconciler(store *db.WorkspaceDB, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, logger: logger}
}

// Reconcile replaces the store contents with the dumps in dir. Missing or
// unparseable files are skipped and count zero. On a load failure the
// returned counts hold what was committed and the error is LOAD_FAILED.
func (r *Reconciler) Reconcile(ctx context.Context, dir string) (db.Counts, error) {
	var counts db.Counts

	if err := r.store.DeleteAll(ctx); err != nil {
		return counts, noteserrors.ErrWipeFailed(err)
	}

	loaders := []struct {
		file string
		dst  *int
		load func(context.Context, []byte) (int, error)
	}{
		{ClientsFile, &counts.Clients, r.loadClients},
		{ProjectsFile, &counts.Projects, r.loadProjects},
		{NotesFile, &counts.Notes, r.loadNotes},
		{AttachmentsFile, &counts.Attachments, r.loadAttachments},
		{ActivityLogsFile, &counts.ActivityLogs, r.loadActivityLogs},
	}

	for _, l := range loaders {
		path := filepath.Join(dir, l.file)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				r.logger.Debug("dump file absent, skipping", "file", l.file)
			} else {
				r.logger.Warn("dump file unreadable, skipping", "file", l.file, "error", err)
			}
			continue
		}

		n, err := l.load(ctx, data)
		if errors.Is(err, errUnparseable) {
			r.logger.Warn("dump file unparseable, skipping", "file", l.file, "error", err)
			continue
		}
		if err != nil {
			return counts, noteserrors.ErrLoadFailed(l.file, err).WithDetails(map[string]any{"imported": counts})
		}
		*l.dst = n
		r.logger.Debug("dump file loaded", "file", l.file, "rows", n)
	}

	return counts, nil
}

// decode parses a document and logs the rows that had to be dropped.
func decode[T any](r *Reconciler, file string, data []byte) ([]T, error) {
	rows, rowErrs, err := DecodeTable[T](data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errUnparseable, err)
	}
	for _, re := range rowErrs {
		r.logger.Warn("skipping undecodable row", "file", file, "index", re.Index, "id", re.ID, "error", re.Err)
	}
	return rows, nil
}

// insertAll inserts rows in one transaction.
func insertAll[T any](ctx context.Context, r *Reconciler, rows []T, insert func(*db.TxOps, *T) error) (int, error) {
	err := r.store.RunInTx(ctx, func(tx *db.TxOps) error {
		for i := range rows {
			if err := insert(tx, &rows[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *Reconciler) loadClients(ctx context.Context, data []byte) (int, error) {
	rows, err := decode[db.Client](r, ClientsFile, data)
	if err != nil {
		return 0, err
	}
	return insertAll(ctx, r, orderClients(rows), (*db.TxOps).InsertClient)
}

func (r *Reconciler) loadProjects(ctx context.Context, data []byte) (int, error) {
	rows, err := decode[db.Project](r, ProjectsFile, data)
	if err != nil {
		return 0, err
	}
	return insertAll(ctx, r, rows, (*db.TxOps).InsertProject)
}

func (r *Reconciler) loadNotes(ctx context.Context, data []byte) (int, error) {
	rows, err := decode[db.Note](r, NotesFile, data)
	if err != nil {
		return 0, err
	}
	return insertAll(ctx, r, orderNotes(rows), (*db.TxOps).InsertNote)
}

func (r *Reconciler) loadAttachments(ctx context.Context, data []byte) (int, error) {
	rows, err := decode[db.Attachment](r, AttachmentsFile, data)
	if err != nil {
		return 0, err
	}
	for i := range rows {
		a := &rows[i]
		if a.Size != int64(len(a.Data)) {
			r.logger.Warn("attachment size does not match payload, using payload length",
				"id", a.ID, "size", a.Size, "payload", len(a.Data))
			a.Size = int64(len(a.Data))
		}
	}
	return insertAll(ctx, r, rows, (*db.TxOps).InsertAttachment)
}

func (r *Reconciler) loadActivityLogs(ctx context.Context, data []byte) (int, error) {
	rows, err := decode[db.ActivityLog](r, ActivityLogsFile, data)
	if err != nil {
		return 0, err
	}
	return insertAll(ctx, r, rows, (*db.TxOps).InsertActivityLog)
}

// orderClients puts every client after its parent. Rows whose parent is
// missing from the batch keep their relative order and let the foreign
// key decide; cycles are appended last.
func orderClients(rows []db.Client) []db.Client {
	inBatch := make(map[string]bool, len(rows))
	for _, c := range rows {
		inBatch[c.ID] = true
	}

	out := make([]db.Client, 0, len(rows))
	placed := make(map[string]bool, len(rows))
	pending := rows
	for len(pending) > 0 {
		var next []db.Client
		for _, c := range pending {
			parent := c.ParentClientID
			if parent == nil || !inBatch[*parent] || placed[*parent] {
				out = append(out, c)
				placed[c.ID] = true
			} else {
				next = append(next, c)
			}
		}
		if len(next) == len(pending) {
			out = append(out, next...)
			break
		}
		pending = next
	}
	return out
}

// orderNotes loads timesheets after every other note so their task exists.
func orderNotes(rows []db.Note) []db.Note {
	out := make([]db.Note, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Type != db.NoteTypeTimesheet && out[j].Type == db.NoteTypeTimesheet
	})
	return out
}
