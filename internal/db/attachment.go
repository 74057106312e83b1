package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const attachmentColumns = `id, note_id, filename, original_filename, mime_type, size, data, created_at`

// ListAttachments returns every attachment with its payload, ordered by id.
func (w *WorkspaceDB) ListAttachments(ctx context.Context) ([]Attachment, error) {
	rows, err := w.QueryContext(ctx, `SELECT `+attachmentColumns+` FROM attachments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attachments []Attachment
	for rows.Next() {
		var a Attachment
		var createdAt string
		if err := rows.Scan(&a.ID, &a.NoteID, &a.Filename, &a.OriginalFilename, &a.MimeType, &a.Size, &a.Data, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		a.CreatedAt = parseTime(createdAt)
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

// GetAttachment retrieves an attachment by id.
// Returns nil, nil when no attachment has that id.
func (w *WorkspaceDB) GetAttachment(ctx context.Context, id string) (*Attachment, error) {
	row := w.QueryRowContext(ctx, `SELECT `+attachmentColumns+` FROM attachments WHERE id = ?`, id)

	var a Attachment
	var createdAt string
	if err := row.Scan(&a.ID, &a.NoteID, &a.Filename, &a.OriginalFilename, &a.MimeType, &a.Size, &a.Data, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

// InsertAttachment inserts an attachment row. The owning note must exist.
func (t *TxOps) InsertAttachment(a *Attachment) error {
	_, err := t.Exec(`INSERT INTO attachments (`+attachmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.NoteID, a.Filename, a.OriginalFilename, a.MimeType, a.Size, a.Data, formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert attachment %s: %w", a.ID, err)
	}
	return nil
}
