package db

import (
	"context"
	"fmt"
)

const activityLogColumns = `id, task_id, event_type, description, created_at`

// ListActivityLogs returns every activity log entry in chronological order.
func (w *WorkspaceDB) ListActivityLogs(ctx context.Context) ([]ActivityLog, error) {
	rows, err := w.QueryContext(ctx, `SELECT `+activityLogColumns+` FROM activity_logs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var logs []ActivityLog
	for rows.Next() {
		var l ActivityLog
		var eventType, createdAt string
		if err := rows.Scan(&l.ID, &l.TaskID, &eventType, &l.Description, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity log: %w", err)
		}
		l.EventType = ActivityEventType(eventType)
		l.CreatedAt = parseTime(createdAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// InsertActivityLog appends an activity log entry for an existing task note.
func (t *TxOps) InsertActivityLog(l *ActivityLog) error {
	_, err := t.Exec(`INSERT INTO activity_logs (`+activityLogColumns+`) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.TaskID, string(l.EventType), l.Description, formatTime(l.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert activity log %s: %w", l.ID, err)
	}
	return nil
}
