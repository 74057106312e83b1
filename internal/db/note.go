package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

const noteColumns = `id, type, title, content, content_text, project_id, client_id,
	is_favorite, favorite_order, archived_at, deleted_at, created_at, updated_at,
	status, priority, ticket_phase_code, short_description, due_date, budget_hours,
	url, username, password,
	task_id, work_date, hours_worked, timesheet_description, imputation_state`

// ListNotes returns every note, including archived and soft-deleted ones,
// ordered by id.
func (w *WorkspaceDB) ListNotes(ctx context.Context) ([]Note, error) {
	rows, err := w.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notes []Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, *n)
	}
	return notes, rows.Err()
}

func scanNote(rows *sql.Rows) (*Note, error) {
	var n Note
	var noteType, createdAt, updatedAt string
	var content, projectID, clientID, archivedAt, deletedAt sql.NullString
	var status, priority, ticket, shortDesc, dueDate sql.NullString
	var url, username, password sql.NullString
	var taskID, workDate, tsDesc, imputation sql.NullString
	var favOrder sql.NullInt64
	var budget, hours sql.NullFloat64

	err := rows.Scan(
		&n.ID, &noteType, &n.Title, &content, &n.ContentText, &projectID, &clientID,
		&n.IsFavorite, &favOrder, &archivedAt, &deletedAt, &createdAt, &updatedAt,
		&status, &priority, &ticket, &shortDesc, &dueDate, &budget,
		&url, &username, &password,
		&taskID, &workDate, &hours, &tsDesc, &imputation,
	)
	if err != nil {
		return nil, fmt.Errorf("scan note: %w", err)
	}

	n.Type = NoteType(noteType)
	if content.Valid && content.String != "" {
		n.Content = json.RawMessage(content.String)
	}
	n.ProjectID = strPtr(projectID)
	n.ClientID = strPtr(clientID)
	n.FavoriteOrder = int64Ptr(favOrder)
	n.ArchivedAt = timePtr(archivedAt)
	n.DeletedAt = timePtr(deletedAt)
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)

	n.Status = enumPtr[TaskStatus](status)
	n.Priority = enumPtr[TaskPriority](priority)
	n.TicketPhaseCode = strPtr(ticket)
	n.ShortDescription = strPtr(shortDesc)
	n.DueDate = strPtr(dueDate)
	n.BudgetHours = floatPtr(budget)

	n.URL = strPtr(url)
	n.Username = strPtr(username)
	n.Password = strPtr(password)

	n.TaskID = strPtr(taskID)
	n.WorkDate = strPtr(workDate)
	n.HoursWorked = floatPtr(hours)
	n.TimesheetDescription = strPtr(tsDesc)
	n.ImputationState = enumPtr[ImputationState](imputation)
	return &n, nil
}

// InsertNote inserts a note row. A timesheet's task must already exist.
func (t *TxOps) InsertNote(n *Note) error {
	var content any
	if len(n.Content) > 0 && string(n.Content) != "null" {
		content = string(n.Content)
	}

	_, err := t.Exec(`INSERT INTO notes (`+noteColumns+`) VALUES (
		?, ?, ?, ?, ?, ?, ?,
		?, ?, ?, ?, ?, ?,
		?, ?, ?, ?, ?, ?,
		?, ?, ?,
		?, ?, ?, ?, ?)`,
		n.ID, string(n.Type), n.Title, content, n.ContentText, n.ProjectID, n.ClientID,
		n.IsFavorite, n.FavoriteOrder, nullTime(n.ArchivedAt), nullTime(n.DeletedAt), formatTime(n.CreatedAt), formatTime(n.UpdatedAt),
		nullEnum(n.Status), nullEnum(n.Priority), n.TicketPhaseCode, n.ShortDescription, n.DueDate, n.BudgetHours,
		n.URL, n.Username, n.Password,
		n.TaskID, n.WorkDate, n.HoursWorked, n.TimesheetDescription, nullEnum(n.ImputationState),
	)
	if err != nil {
		return fmt.Errorf("insert note %s: %w", n.ID, err)
	}
	return nil
}
