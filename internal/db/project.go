package db

import (
	"context"
	"database/sql"
	"fmt"
)

const projectColumns = `id, name, code, description, client_id, disabled, created_at, updated_at`

// ListProjects returns every project ordered by id.
func (w *WorkspaceDB) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := w.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []Project
	for rows.Next() {
		var p Project
		var code sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &code, &p.Description, &p.ClientID, &p.Disabled, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.Code = strPtr(code)
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// InsertProject inserts a project row. The client must already exist.
func (t *TxOps) InsertProject(p *Project) error {
	_, err := t.Exec(`INSERT INTO projects (`+projectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Code, p.Description, p.ClientID, p.Disabled,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert project %s: %w", p.ID, err)
	}
	return nil
}
