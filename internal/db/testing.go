package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// NewTestWorkspaceDB creates an in-memory workspace database for testing.
// The database is automatically closed when the test completes.
// Schema migrations are applied automatically.
func NewTestWorkspaceDB(t testing.TB) *WorkspaceDB {
	t.Helper()

	wdb, err := OpenWorkspaceInMemory(context.Background())
	if err != nil {
		t.Fatalf("create test workspace db: %v", err)
	}

	t.Cleanup(func() {
		_ = wdb.Close()
	})

	return wdb
}

// TestFixture is the set of rows inserted by SeedTestWorkspace.
type TestFixture struct {
	Clients      []Client
	Projects     []Project
	Notes        []Note
	Attachments  []Attachment
	ActivityLogs []ActivityLog
}

// Counts returns the per-table row counts of the fixture.
func (f *TestFixture) Counts() Counts {
	return Counts{
		Notes:        len(f.Notes),
		Clients:      len(f.Clients),
		Projects:     len(f.Projects),
		Attachments:  len(f.Attachments),
		ActivityLogs: len(f.ActivityLogs),
	}
}

// NewTestFixture builds a small workspace touching every table and foreign
// key: a parent and child client, a project, a task with a timesheet, a
// favorited connection, a binary attachment and task history.
func NewTestFixture() *TestFixture {
	ts := time.Date(2024, 3, 1, 9, 30, 0, 123000000, time.UTC)
	str := func(s string) *string { return &s }
	f64 := func(v float64) *float64 { return &v }
	order := int64(1)
	blue := ColorBlue
	status := TaskStatusInProgress
	prio := TaskPriorityHigh
	final := ImputationFinal

	return &TestFixture{
		Clients: []Client{
			{ID: "c-acme", Name: "Acme", Description: "Main client", Icon: "building", Color: &blue, CreatedAt: ts, UpdatedAt: ts},
			{ID: "c-acme-labs", Name: "Acme Labs", Icon: "flask", ParentClientID: str("c-acme"), CreatedAt: ts, UpdatedAt: ts},
		},
		Projects: []Project{
			{ID: "p-portal", Name: "Portal", Code: str("PRT"), ClientID: "c-acme-labs", CreatedAt: ts, UpdatedAt: ts},
		},
		Notes: []Note{
			{
				ID: "n-task", Type: NoteTypeTask, Title: "Build login",
				Content:     json.RawMessage(`{"type":"doc","content":[{"type":"paragraph"}]}`),
				ContentText: "login page", ProjectID: str("p-portal"), ClientID: str("c-acme-labs"),
				Status: &status, Priority: &prio, TicketPhaseCode: str("PRT-12"), DueDate: str("2024-03-15"), BudgetHours: f64(12.5),
				CreatedAt: ts, UpdatedAt: ts,
			},
			{
				ID: "n-conn", Type: NoteTypeConnection, Title: "Staging DB",
				URL: str("postgres://staging"), Username: str("admin"), Password: str("s3cret"),
				IsFavorite: true, FavoriteOrder: &order,
				CreatedAt: ts, UpdatedAt: ts,
			},
			{
				ID: "n-ts", Type: NoteTypeTimesheet, Title: "Login work",
				TaskID: str("n-task"), WorkDate: str("2024-03-02"), HoursWorked: f64(3.25),
				TimesheetDescription: str("form layout"), ImputationState: &final,
				CreatedAt: ts, UpdatedAt: ts,
			},
		},
		Attachments: []Attachment{
			{
				ID: "a-bin", NoteID: "n-task", Filename: "a-bin.bin", OriginalFilename: "dump.bin",
				MimeType: "application/octet-stream", Size: 6, Data: []byte{0x00, 0xff, 0xfe, 0x80, 'o', 'k'},
				CreatedAt: ts,
			},
		},
		ActivityLogs: []ActivityLog{
			{ID: "l-1", TaskID: "n-task", EventType: ActivityCreated, Description: "Task created", CreatedAt: ts},
			{ID: "l-2", TaskID: "n-task", EventType: ActivityTimesheetChanged, Description: "3.25h logged", CreatedAt: ts.Add(time.Hour)},
		},
	}
}

// SeedTestWorkspace inserts NewTestFixture into wdb and returns it.
func SeedTestWorkspace(t testing.TB, wdb *WorkspaceDB) *TestFixture {
	t.Helper()

	f := NewTestFixture()
	err := wdb.RunInTx(context.Background(), func(tx *TxOps) error {
		for i := range f.Clients {
			if err := tx.InsertClient(&f.Clients[i]); err != nil {
				return err
			}
		}
		for i := range f.Projects {
			if err := tx.InsertProject(&f.Projects[i]); err != nil {
				return err
			}
		}
		for i := range f.Notes {
			if err := tx.InsertNote(&f.Notes[i]); err != nil {
				return err
			}
		}
		for i := range f.Attachments {
			if err := tx.InsertAttachment(&f.Attachments[i]); err != nil {
				return err
			}
		}
		for i := range f.ActivityLogs {
			if err := tx.InsertActivityLog(&f.ActivityLogs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed test workspace: %v", err)
	}
	return f
}
