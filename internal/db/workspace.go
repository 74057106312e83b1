package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db/driver"
)

// WorkspaceSchema is the migration prefix for the workspace tables.
const WorkspaceSchema = "workspace"

// TxRunner provides a transactional execution interface.
type TxRunner interface {
	// RunInTx executes the given function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	RunInTx(ctx context.Context, fn func(tx *TxOps) error) error
}

// TxOps provides database operations within a transaction.
// The context is stored and used for all operations, enabling cancellation
// and timeout propagation through the entire transaction.
type TxOps struct {
	tx      driver.Tx
	dialect driver.Dialect
	ctx     context.Context
}

// Exec executes a query within the transaction.
func (t *TxOps) Exec(query string, args ...any) (sql.Result, error) {
	return t.tx.Exec(t.ctx, driver.Rebind(t.dialect, query), args...)
}

// Query executes a query that returns rows within the transaction.
func (t *TxOps) Query(query string, args ...any) (*sql.Rows, error) {
	return t.tx.Query(t.ctx, driver.Rebind(t.dialect, query), args...)
}

// QueryRow executes a query that returns at most one row within the transaction.
func (t *TxOps) QueryRow(query string, args ...any) *sql.Row {
	return t.tx.QueryRow(t.ctx, driver.Rebind(t.dialect, query), args...)
}

// Context returns the context associated with this transaction.
func (t *TxOps) Context() context.Context {
	return t.ctx
}

// Dialect returns the database dialect.
func (t *TxOps) Dialect() driver.Dialect {
	return t.dialect
}

// WorkspaceDB provides operations on the workspace tables.
type WorkspaceDB struct {
	*DB
}

// OpenWorkspace opens the SQLite workspace database at path and applies
// pending migrations.
func OpenWorkspace(ctx context.Context, path string) (*WorkspaceDB, error) {
	return OpenWorkspaceWithDialect(ctx, path, driver.DialectSQLite)
}

// OpenWorkspaceWithDialect opens the workspace database with a specific dialect.
func OpenWorkspaceWithDialect(ctx context.Context, dsn string, dialect driver.Dialect) (*WorkspaceDB, error) {
	db, err := OpenWithDialect(dsn, dialect)
	if err != nil {
		return nil, err
	}
	return migrateWorkspace(ctx, db)
}

// OpenWorkspaceInMemory opens an isolated in-memory workspace database.
func OpenWorkspaceInMemory(ctx context.Context) (*WorkspaceDB, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, err
	}
	return migrateWorkspace(ctx, db)
}

func migrateWorkspace(ctx context.Context, db *DB) (*WorkspaceDB, error) {
	if err := db.Migrate(ctx, WorkspaceSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate workspace db: %w", err)
	}
	return &WorkspaceDB{DB: db}, nil
}

// RunInTx executes the given function within a database transaction.
// If fn returns an error, the transaction is rolled back.
// If fn returns nil, the transaction is committed.
func (w *WorkspaceDB) RunInTx(ctx context.Context, fn func(tx *TxOps) error) error {
	tx, err := w.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txOps := &TxOps{
		tx:      tx,
		dialect: w.Dialect(),
		ctx:     ctx,
	}

	if err := fn(txOps); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Ensure WorkspaceDB implements TxRunner
var _ TxRunner = (*WorkspaceDB)(nil)

// deleteOrder lists the workspace tables children first so a bulk delete
// never trips a foreign key.
var deleteOrder = []string{
	"activity_logs",
	"attachments",
	"notes",
	"projects",
	"clients",
}

// DeleteAll removes every row from the workspace tables inside tx.
func (t *TxOps) DeleteAll() error {
	for _, table := range deleteOrder {
		if _, err := t.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}

// DeleteAll removes every row from the workspace tables in one transaction.
func (w *WorkspaceDB) DeleteAll(ctx context.Context) error {
	return w.RunInTx(ctx, func(tx *TxOps) error {
		return tx.DeleteAll()
	})
}

// CountAll returns the row count of each workspace table.
func (w *WorkspaceDB) CountAll(ctx context.Context) (Counts, error) {
	var c Counts
	targets := []struct {
		table string
		dst   *int
	}{
		{"clients", &c.Clients},
		{"projects", &c.Projects},
		{"notes", &c.Notes},
		{"attachments", &c.Attachments},
		{"activity_logs", &c.ActivityLogs},
	}
	for _, t := range targets {
		if err := w.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(t.dst); err != nil {
			return Counts{}, fmt.Errorf("count %s: %w", t.table, err)
		}
	}
	return c, nil
}
