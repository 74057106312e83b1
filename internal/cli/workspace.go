package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/config"
	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db"
	"github.com/pietrospam/pietrosoft-notes-sub000/internal/events"
	"github.com/pietrospam/pietrosoft-notes-sub000/internal/lock"
	"github.com/pietrospam/pietrosoft-notes-sub000/internal/snapshot"
)

// workspace bundles the store and engine a command operates on.
type workspace struct {
	store  *db.WorkspaceDB
	engine *snapshot.Engine
}

func (w *workspace) Close() {
	if err := w.store.Close(); err != nil {
		slog.Warn("failed to close database", "error", err)
	}
}

// openWorkspace opens the configured store and builds an engine over it.
func openWorkspace(ctx context.Context, c *config.Config, pub events.Publisher) (*workspace, error) {
	dialect, err := c.Dialect()
	if err != nil {
		return nil, err
	}
	store, err := db.OpenWorkspaceWithDialect(ctx, c.DSN(), dialect)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	mode, err := c.LockMode()
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	engine, err := snapshot.New(store, snapshot.Options{
		DataDir:   c.DataDir,
		TempDir:   c.TempDir,
		Exclude:   c.Export.Exclude,
		Locker:    lock.NewLocker(mode, c.TempDir, lock.DefaultOwner(), c.Lock.Timeout),
		Publisher: pub,
		Logger:    slog.Default(),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &workspace{store: store, engine: engine}, nil
}
