package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db"
	noteserrors "github.com/pietrospam/pietrosoft-notes-sub000/internal/errors"
	"github.com/pietrospam/pietrosoft-notes-sub000/internal/events"
	"github.com/pietrospam/pietrosoft-notes-sub000/internal/lock"
)

// ArchivePrefix starts every exported archive file name.
const ArchivePrefix = "pietrosoft-notes-backup-"

// Options configures an Engine. Zero values select defaults.
type Options struct {
	DataDir   string
	TempDir   string
	Exclude   []string
	FS        FS
	Locker    lock.Locker
	Publisher events.Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// Engine runs export, import and wipe against one workspace. Operations
// are serialized through the locker.
type Engine struct {
	store      *db.WorkspaceDB
	swapper    *Swapper
	reconciler *Reconciler
	locker     lock.Locker
	publisher  events.Publisher
	logger     *slog.Logger
	exclude    []string
	now        func() time.Time

	// lockKey is the configured root; it stays fixed after a relocation.
	lockKey string

	mu   sync.RWMutex
	root string
}

// Snapshot is an exported archive.
type Snapshot struct {
	OperationID string
	Filename    string
	Data        []byte
	Counts      db.Counts
}

// ImportSummary reports a completed import.
type ImportSummary struct {
	Success     bool      `json:"success"`
	Message     string    `json:"message"`
	Format      Format    `json:"format"`
	Imported    db.Counts `json:"imported"`
	DataRoot    string    `json:"dataRoot"`
	Relocated   bool      `json:"relocated,omitempty"`
	OperationID string    `json:"operationId"`
}

// ArchiveInfo describes an archive without extracting it.
type ArchiveInfo struct {
	Format        Format    `json:"format"`
	LegacyFolders []string  `json:"legacyFolders,omitempty"`
	Entries       []string  `json:"entries"`
	Manifest      *Manifest `json:"manifest,omitempty"`
}

// New creates an engine for store and the data root in opts.DataDir.
func New(store *db.WorkspaceDB, opts Options) (*Engine, error) {
	if opts.DataDir == "" {
		return nil, noteserrors.ErrConfigInvalid("data_dir", "must not be empty")
	}
	root, err := filepath.Abs(opts.DataDir)
	if err != nil {
		return nil, noteserrors.ErrConfigInvalid("data_dir", err.Error())
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	locker := opts.Locker
	if locker == nil {
		locker = lock.NewNoOpLocker()
	}
	pub := opts.Publisher
	if pub == nil {
		pub = events.NewNopPublisher()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	swapper := NewSwapper(opts.FS, opts.TempDir, logger)
	swapper.now = now

	return &Engine{
		store:      store,
		swapper:    swapper,
		reconciler: NewReconciler(store, logger),
		locker:     locker,
		publisher:  pub,
		logger:     logger,
		exclude:    opts.Exclude,
		now:        now,
		lockKey:    root,
		root:       root,
	}, nil
}

// DataRoot returns the effective data root. After a permission fallback it
// is the relocated root for the rest of the process lifetime.
func (e *Engine) DataRoot() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.root
}

func (e *Engine) setRoot(root string) {
	e.mu.Lock()
	e.root = root
	e.mu.Unlock()
}

// acquire takes the workspace lock, mapping a timeout to WORKSPACE_BUSY.
func (e *Engine) acquire(ctx context.Context, operation string) error {
	err := e.locker.Acquire(ctx, e.lockKey, operation)
	if err == nil {
		return nil
	}
	var lockErr *lock.LockError
	if errors.As(err, &lockErr) || errors.Is(err, context.DeadlineExceeded) {
		return noteserrors.ErrWorkspaceBusy(err)
	}
	return err
}

func (e *Engine) release() {
	if err := e.locker.Release(e.lockKey); err != nil {
		e.logger.Warn("failed to release workspace lock", "error", err)
	}
}

func (e *Engine) fail(topic, opID string, err error) error {
	code := "UNKNOWN"
	if ne := noteserrors.AsNotesError(err); ne != nil {
		code = string(ne.Code)
	}
	e.logger.Error("workspace operation failed", "operation", topic, "operation_id", opID, "code", code, "error", err)
	e.publisher.Publish(events.NewEvent(events.EventError, topic, opID, events.ErrorData{Code: code, Message: err.Error()}))
	return err
}

// Export dumps the store under <root>/db and archives the whole data root.
func (e *Engine) Export(ctx context.Context) (*Snapshot, error) {
	opID := uuid.NewString()
	log := e.logger.With("operation", events.TopicExport, "operation_id", opID)

	if err := e.acquire(ctx, events.TopicExport); err != nil {
		return nil, e.fail(events.TopicExport, opID, err)
	}
	defer e.release()

	root := e.DataRoot()
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, e.fail(events.TopicExport, opID, noteserrors.ErrDataRootNotFound(root))
	}

	dump, err := ReadDump(ctx, e.store)
	if err != nil {
		return nil, e.fail(events.TopicExport, opID, noteserrors.ErrDumpFailed(err))
	}
	if err := WriteDump(filepath.Join(root, DumpDir), dump); err != nil {
		return nil, e.fail(events.TopicExport, opID, noteserrors.ErrDumpFailed(err))
	}

	now := e.now()
	manifest := &Manifest{
		Version:     ManifestVersion,
		Application: "pietrosoft-notes",
		ExportedAt:  now.UTC(),
		OperationID: opID,
		Database:    string(e.store.Dialect()),
		Counts:      dump.Counts(),
	}
	if err := writeManifest(filepath.Join(root, DumpDir, ManifestFile), manifest); err != nil {
		return nil, e.fail(events.TopicExport, opID, noteserrors.ErrDumpFailed(err))
	}

	data, err := BuildArchive(root, e.exclude)
	if err != nil {
		return nil, e.fail(events.TopicExport, opID, noteserrors.ErrDumpFailed(err))
	}

	snap := &Snapshot{
		OperationID: opID,
		Filename:    ArchivePrefix + now.Format("20060102-150405") + ".zip",
		Data:        data,
		Counts:      manifest.Counts,
	}
	log.Info("workspace exported", "file", snap.Filename, "bytes", len(data), "rows", snap.Counts.Total())
	e.publisher.Publish(events.NewEvent(events.EventExported, events.TopicExport, opID, map[string]any{
		"filename": snap.Filename,
		"bytes":    len(data),
		"counts":   snap.Counts,
	}))
	return snap, nil
}

// Import validates archive, swaps it into the data root and, when it
// carries dumps, reloads the store from them.
func (e *Engine) Import(ctx context.Context, archive []byte) (*ImportSummary, error) {
	opID := uuid.NewString()
	log := e.logger.With("operation", events.TopicImport, "operation_id", opID)

	zr, err := OpenArchive(archive)
	if err != nil {
		return nil, e.fail(events.TopicImport, opID, noteserrors.ErrArchiveUnreadable(err))
	}
	insp := Inspect(EntryNames(zr))
	if insp.Format == FormatNone {
		return nil, e.fail(events.TopicImport, opID, noteserrors.ErrArchiveInvalid(
			"it contains neither a notes/, clients/ or projects/ folder nor a db/ dump",
		).WithDetails(map[string]any{"entries": insp.Entries}))
	}
	log.Info("archive accepted", "format", insp.Format, "entries", len(insp.Entries))

	if err := e.acquire(ctx, events.TopicImport); err != nil {
		return nil, e.fail(events.TopicImport, opID, err)
	}
	defer e.release()

	res, err := e.swapper.Replace(ctx, e.DataRoot(), zr)
	if err != nil {
		return nil, e.fail(events.TopicImport, opID, err)
	}
	if res.Relocated {
		log.Warn("data root relocated", "root", res.Root)
		e.setRoot(res.Root)
	}

	var counts db.Counts
	hasTables := insp.Format.HasDump() && e.hasTableDump(res.Root)
	if insp.Format.HasDump() && !hasTables {
		log.Info("db/ folder carries no table dump, store left untouched")
	}
	if hasTables {
		counts, err = e.reconciler.Reconcile(ctx, filepath.Join(res.Root, DumpDir))
		if err != nil {
			return nil, e.fail(events.TopicImport, opID, err)
		}
	} else {
		counts, err = CountLegacy(res.Root)
		if err != nil {
			log.Warn("failed to count legacy files", "error", err)
		}
	}

	summary := &ImportSummary{
		Success: true,
		Message: fmt.Sprintf("Imported %d notes, %d clients, %d projects, %d attachments and %d activity logs",
			counts.Notes, counts.Clients, counts.Projects, counts.Attachments, counts.ActivityLogs),
		Format:      insp.Format,
		Imported:    counts,
		DataRoot:    res.Root,
		Relocated:   res.Relocated,
		OperationID: opID,
	}
	log.Info("workspace imported", "files", res.Files, "rows", counts.Total())
	e.publisher.Publish(events.NewEvent(events.EventImported, events.TopicImport, opID, summary))
	return summary, nil
}

// hasTableDump reports whether at least one table dump file was extracted
// under <root>/db. A db/ folder holding only the manifest does not count.
func (e *Engine) hasTableDump(root string) bool {
	for _, name := range LoadOrder {
		info, err := e.swapper.fs.Stat(filepath.Join(root, DumpDir, name))
		if err == nil && !info.IsDir() {
			return true
		}
	}
	return false
}

// Wipe deletes every row in one transaction, then removes the data root.
// A filesystem failure is logged only; a database failure leaves the
// files alone.
func (e *Engine) Wipe(ctx context.Context) error {
	opID := uuid.NewString()
	log := e.logger.With("operation", events.TopicWipe, "operation_id", opID)

	if err := e.acquire(ctx, events.TopicWipe); err != nil {
		return e.fail(events.TopicWipe, opID, err)
	}
	defer e.release()

	if err := e.store.DeleteAll(ctx); err != nil {
		return e.fail(events.TopicWipe, opID, noteserrors.ErrWipeFailed(err))
	}

	root := e.DataRoot()
	if err := e.swapper.fs.RemoveAll(root); err != nil {
		log.Warn("failed to remove data root", "root", root, "error", err)
	}

	log.Info("workspace wiped", "root", root)
	e.publisher.Publish(events.NewEvent(events.EventWiped, events.TopicWipe, opID, nil))
	return nil
}

// Inspect classifies archive and reads its manifest, if any, without
// touching the workspace.
func (e *Engine) Inspect(archive []byte) (*ArchiveInfo, error) {
	return InspectArchive(archive)
}

// InspectArchive classifies archive and reads its db/manifest.yaml, if
// present and well formed.
func InspectArchive(archive []byte) (*ArchiveInfo, error) {
	zr, err := OpenArchive(archive)
	if err != nil {
		return nil, noteserrors.ErrArchiveUnreadable(err)
	}
	insp := Inspect(EntryNames(zr))
	info := &ArchiveInfo{
		Format:        insp.Format,
		LegacyFolders: insp.LegacyFolders,
		Entries:       insp.Entries,
	}

	for _, f := range zr.File {
		if f.Name != DumpDir+"/"+ManifestFile {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			break
		}
		data, err := io.ReadAll(io.LimitReader(rc, 1<<20))
		_ = rc.Close()
		if err != nil {
			break
		}
		if m, err := ParseManifest(data); err == nil {
			info.Manifest = m
		}
		break
	}
	return info, nil
}

func writeManifest(path string, m *Manifest) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	return OSFS{}.WriteFile(path, bytes.NewReader(data), 0o644)
}
