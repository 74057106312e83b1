package db

import (
	"database/sql"
	"encoding/json"
	"time"
)

// NoteType discriminates the four kinds of note.
type NoteType string

const (
	NoteTypeGeneral    NoteType = "general"
	NoteTypeTask       NoteType = "task"
	NoteTypeConnection NoteType = "connection"
	NoteTypeTimesheet  NoteType = "timesheet"
)

// TaskStatus is the workflow state of a task note.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// TaskPriority ranks task notes.
type TaskPriority string

const (
	TaskPriorityLow      TaskPriority = "low"
	TaskPriorityMedium   TaskPriority = "medium"
	TaskPriorityHigh     TaskPriority = "high"
	TaskPriorityCritical TaskPriority = "critical"
)

// ImputationState tells whether a timesheet entry has been booked.
type ImputationState string

const (
	ImputationDraft ImputationState = "draft"
	ImputationFinal ImputationState = "final"
)

// ClientColor is one of the fixed client palette entries.
type ClientColor string

const (
	ColorBlue   ClientColor = "blue"
	ColorGreen  ClientColor = "green"
	ColorRed    ClientColor = "red"
	ColorYellow ClientColor = "yellow"
	ColorPurple ClientColor = "purple"
	ColorOrange ClientColor = "orange"
	ColorPink   ClientColor = "pink"
	ColorGray   ClientColor = "gray"
)

// ActivityEventType classifies task activity log entries.
type ActivityEventType string

const (
	ActivityCreated           ActivityEventType = "created"
	ActivityFieldChanged      ActivityEventType = "field_changed"
	ActivityTimesheetChanged  ActivityEventType = "timesheet_changed"
	ActivityAttachmentChanged ActivityEventType = "attachment_changed"
	ActivityArchived          ActivityEventType = "archived"
	ActivityFavorited         ActivityEventType = "favorited"
)

// Client is a customer. A client may have one parent client.
type Client struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Icon           string       `json:"icon"`
	Color          *ClientColor `json:"color"`
	ParentClientID *string      `json:"parentClientId"`
	Disabled       bool         `json:"disabled"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// Project belongs to exactly one client.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        *string   `json:"code"`
	Description string    `json:"description"`
	ClientID    string    `json:"clientId"`
	Disabled    bool      `json:"disabled"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Note is a general note, task, connection or timesheet entry. Fields of
// the other kinds stay nil.
type Note struct {
	ID            string          `json:"id"`
	Type          NoteType        `json:"type"`
	Title         string          `json:"title"`
	Content       json.RawMessage `json:"content"`
	ContentText   string          `json:"contentText"`
	ProjectID     *string         `json:"projectId"`
	ClientID      *string         `json:"clientId"`
	IsFavorite    bool            `json:"isFavorite"`
	FavoriteOrder *int64          `json:"favoriteOrder"`
	ArchivedAt    *time.Time      `json:"archivedAt"`
	DeletedAt     *time.Time      `json:"deletedAt"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	// Task
	Status           *TaskStatus   `json:"status"`
	Priority         *TaskPriority `json:"priority"`
	TicketPhaseCode  *string       `json:"ticketPhaseCode"`
	ShortDescription *string       `json:"shortDescription"`
	DueDate          *string       `json:"dueDate"`
	BudgetHours      *float64      `json:"budgetHours"`

	// Connection. Password is kept in clear text.
	URL      *string `json:"url"`
	Username *string `json:"username"`
	Password *string `json:"password"`

	// Timesheet
	TaskID               *string          `json:"taskId"`
	WorkDate             *string          `json:"workDate"`
	HoursWorked          *float64         `json:"hoursWorked"`
	TimesheetDescription *string          `json:"timesheetDescription"`
	ImputationState      *ImputationState `json:"imputationState"`
}

// Attachment is a binary file owned by a note. Size always equals len(Data)
// once stored. Data encodes as base64 in JSON.
type Attachment struct {
	ID               string    `json:"id"`
	NoteID           string    `json:"noteId"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"originalFilename"`
	MimeType         string    `json:"mimeType"`
	Size             int64     `json:"size"`
	Data             []byte    `json:"data"`
	CreatedAt        time.Time `json:"createdAt"`
}

// ActivityLog is an append-only history entry of a task note.
type ActivityLog struct {
	ID          string            `json:"id"`
	TaskID      string            `json:"taskId"`
	EventType   ActivityEventType `json:"eventType"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Counts holds one row count per workspace table.
type Counts struct {
	Notes        int `json:"notes" yaml:"notes"`
	Clients      int `json:"clients" yaml:"clients"`
	Projects     int `json:"projects" yaml:"projects"`
	Attachments  int `json:"attachments" yaml:"attachments"`
	ActivityLogs int `json:"activityLogs" yaml:"activityLogs"`
}

// Total returns the sum of all table counts.
func (c Counts) Total() int {
	return c.Notes + c.Clients + c.Projects + c.Attachments + c.ActivityLogs
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	ts := parseTime(ns.String)
	return &ts
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	i := ni.Int64
	return &i
}

// enumPtr converts a nullable column into a pointer to a string enum.
func enumPtr[T ~string](ns sql.NullString) *T {
	if !ns.Valid {
		return nil
	}
	v := T(ns.String)
	return &v
}

// nullEnum converts an optional string enum into a driver argument.
func nullEnum[T ~string](v *T) any {
	if v == nil {
		return nil
	}
	return string(*v)
}
