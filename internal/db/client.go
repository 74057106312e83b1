package db

import (
	"context"
	"database/sql"
	"fmt"
)

const clientColumns = `id, name, description, icon, color, parent_client_id, disabled, created_at, updated_at`

// ListClients returns every client ordered by id.
func (w *WorkspaceDB) ListClients(ctx context.Context) ([]Client, error) {
	rows, err := w.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var clients []Client
	for rows.Next() {
		var c Client
		var color, parentID sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Icon, &color, &parentID, &c.Disabled, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		c.Color = enumPtr[ClientColor](color)
		c.ParentClientID = strPtr(parentID)
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// InsertClient inserts a client row.
func (t *TxOps) InsertClient(c *Client) error {
	_, err := t.Exec(`INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, c.Icon, nullEnum(c.Color), c.ParentClientID, c.Disabled,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert client %s: %w", c.ID, err)
	}
	return nil
}
