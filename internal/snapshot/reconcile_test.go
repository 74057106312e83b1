package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db"
	noteserrors "github.com/pietrospam/pietrosoft-notes-sub000/internal/errors"
)

// fixtureDumpDir writes the standard fixture as dump files.
func fixtureDumpDir(t *testing.T) (string, *db.TestFixture) {
	t.Helper()
	f := db.NewTestFixture()
	dir := filepath.Join(t.TempDir(), DumpDir)
	require.NoError(t, WriteDump(dir, &Dump{
		Clients:      f.Clients,
		Projects:     f.Projects,
		Notes:        f.Notes,
		Attachments:  f.Attachments,
		ActivityLogs: f.ActivityLogs,
	}))
	return dir, f
}

func writeDumpFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReconcile_FullDump(t *testing.T) {
	wdb := db.NewTestWorkspaceDB(t)
	dir, f := fixtureDumpDir(t)

	counts, err := NewReconciler(wdb, nil).Reconcile(t.Context(), dir)
	require.NoError(t, err)
	assert.Equal(t, f.Counts(), counts)

	got, err := ReadDump(t.Context(), wdb)
	require.NoError(t, err)
	if diff := cmp.Diff(f.Attachments, got.Attachments); diff != "" {
		t.Errorf("attachments mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(f.Clients, got.Clients); diff != "" {
		t.Errorf("clients mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcile_ReplacesExistingRows(t *testing.T) {
	wdb := db.NewTestWorkspaceDB(t)
	db.SeedTestWorkspace(t, wdb)

	dir := filepath.Join(t.TempDir(), DumpDir)
	writeDumpFile(t, dir, ClientsFile, `[{"id":"c-new","name":"New"}]`)

	counts, err := NewReconciler(wdb, nil).Reconcile(t.Context(), dir)
	require.NoError(t, err)
	assert.Equal(t, db.Counts{Clients: 1}, counts)

	after, err := wdb.CountAll(t.Context())
	require.NoError(t, err)
	assert.Equal(t, db.Counts{Clients: 1}, after)
}

func TestReconcile_PartialDump(t *testing.T) {
	wdb := db.NewTestWorkspaceDB(t)
	dir := filepath.Join(t.TempDir(), DumpDir)
	writeDumpFile(t, dir, ClientsFile, `[{"id":"c1","name":"One"},{"id":"c2","name":"Two"}]`)
	writeDumpFile(t, dir, ProjectsFile, `[{"id":"p1","name":"P","clientId":"c1"}]`)

	counts, err := NewReconciler(wdb, nil).Reconcile(t.Context(), dir)
	require.NoError(t, err)
	assert.Equal(t, db.Counts{Clients: 2, Projects: 1}, counts)
}

func TestReconcile_EmptyDir(t *testing.T) {
	wdb := db.NewTestWorkspaceDB(t)
	db.SeedTestWorkspace(t, wdb)

	counts, err := NewReconciler(wdb, nil).Reconcile(t.Context(), filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Zero(t, counts.Total())

	after, err := wdb.CountAll(t.Context())
	require.NoError(t, err)
	assert.Zero(t, after.Total(), "store is wiped even when nothing is loaded")
}

func TestReconcile_UnparseableFileSkipped(t *testing.T) {
	wdb := db.NewTestWorkspaceDB(t)
	dir := filepath.Join(t.TempDir(), DumpDir)
	writeDumpFile(t, dir, ClientsFile, `[{"id":"c1","name":"One"}]`)
	writeDumpFile(t, dir, ProjectsFile, `{"not":"an array"}`)
	writeDumpFile(t, dir, NotesFile, `[{"id":"n1","type":"general","title":"Hi"`)
	writeDumpFile(t, dir, ActivityLogsFile, `[]`)

	counts, err := NewReconciler(wdb, nil).Reconcile(t.Context(), dir)
	require.NoError(t, err)
	assert.Equal(t, db.Counts{Clients: 1}, counts)
}

func TestReconcile_LoadFailureKeepsEarlierFiles(t *testing.T) {
	wdb := db.NewTestWorkspaceDB(t)
	dir := filepath.Join(t.TempDir(), DumpDir)
	writeDumpFile(t, dir, ClientsFile, `[{"id":"c1","name":"One"}]`)
	writeDumpFile(t, dir, ProjectsFile, `[{"id":"p1","name":"P","clientId":"c1"}]`)
	// n2 references a project that does not exist.
	writeDumpFile(t, dir, NotesFile, `[
		{"id":"n1","type":"general","title":"ok"},
		{"id":"n2","type":"general","title":"dangling","projectId":"p-missing"}
	]`)
	writeDumpFile(t, dir, ActivityLogsFile, `[]`)

	counts, err := NewReconciler(wdb, nil).Reconcile(t.Context(), dir)
	require.Error(t, err)

	ne := noteserrors.AsNotesError(err)
	require.NotNil(t, ne)
	assert.Equal(t, noteserrors.CodeLoadFailed, ne.Code)
	assert.Contains(t, ne.What, NotesFile)

	want := db.Counts{Clients: 1, Projects: 1}
	assert.Equal(t, want, counts)
	details, ok := ne.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, want, details["imported"])

	after, err := wdb.CountAll(t.Context())
	require.NoError(t, err)
	assert.Equal(t, want, after, "the failing file rolls back as a whole")
}

func TestReconcile_WipeFailure(t *testing.T) {
	wdb := db.NewTestWorkspaceDB(t)
	require.NoError(t, wdb.Close())

	dir, _ := fixtureDumpDir(t)
	_, err := NewReconciler(wdb, nil).Reconcile(t.Context(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, &noteserrors.NotesError{Code: noteserrors.CodeWipeFailed})
}

func TestReconcile_ChildClientBeforeParent(t *testing.T) {
	wdb := db.NewTestWorkspaceDB(t)
	dir := filepath.Join(t.TempDir(), DumpDir)
	writeDumpFile(t, dir, ClientsFile, `[
		{"id":"grandchild","name":"G","parentClientId":"child"},
		{"id":"child","name":"C","parentClientId":"root"},
		{"id":"root","name":"R"}
	]`)

	counts, err := NewReconciler(wdb, nil).Reconcile(t.Context(), dir)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Clients)
}

func TestReconcile_TimesheetBeforeTask(t *testing.T) {
	wdb := db.NewTestWorkspaceDB(t)
	dir := filepath.Join(t.TempDir(), DumpDir)
	writeDumpFile(t, dir, NotesFile, `[
		{"id":"ts","type":"timesheet","title":"t","taskId":"task","workDate":"2024-01-02","hoursWorked":1.5},
		{"id":"task","type":"task","title":"T","status":"pending"}
	]`)

	counts, err := NewReconciler(wdb, nil).Reconcile(t.Context(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Notes)
}

func TestReconcile_AttachmentSizeNormalised(t *testing.T) {
	wdb := db.NewTestWorkspaceDB(t)
	dir := filepath.Join(t.TempDir(), DumpDir)
	writeDumpFile(t, dir, NotesFile, `[{"id":"n1","type":"general","title":"t"}]`)
	// "aGVsbG8=" is "hello"; the declared size is wrong.
	writeDumpFile(t, dir, AttachmentsFile, `[{"id":"a1","noteId":"n1","filename":"h.txt","mimeType":"text/plain","size":999,"data":"aGVsbG8="}]`)

	_, err := NewReconciler(wdb, nil).Reconcile(t.Context(), dir)
	require.NoError(t, err)

	a, err := wdb.GetAttachment(t.Context(), "a1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, int64(5), a.Size)
	assert.Equal(t, []byte("hello"), a.Data)
}

func TestReconcile_BadAttachmentRowSkipped(t *testing.T) {
	wdb := db.NewTestWorkspaceDB(t)
	dir := filepath.Join(t.TempDir(), DumpDir)
	writeDumpFile(t, dir, NotesFile, `[{"id":"n1","type":"general","title":"t"}]`)
	writeDumpFile(t, dir, AttachmentsFile, `[
		{"id":"a1","noteId":"n1","size":2,"data":"aGk="},
		{"id":"a2","noteId":"n1","size":2,"data":"%%%"}
	]`)

	counts, err := NewReconciler(wdb, nil).Reconcile(t.Context(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Attachments)

	missing, err := wdb.GetAttachment(t.Context(), "a2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOrderClients(t *testing.T) {
	p := func(s string) *string { return &s }
	in := []db.Client{
		{ID: "b", ParentClientID: p("a")},
		{ID: "orphan", ParentClientID: p("elsewhere")},
		{ID: "a"},
		{ID: "x", ParentClientID: p("y")},
		{ID: "y", ParentClientID: p("x")},
	}

	var ids []string
	for _, c := range orderClients(in) {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"orphan", "a", "b", "x", "y"}, ids)
}
