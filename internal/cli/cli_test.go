package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db"
	noteserrors "github.com/pietrospam/pietrosoft-notes-sub000/internal/errors"
)

// testWorkspace points every NOTES_* setting at a temp directory.
type testWorkspace struct {
	dir     string
	dataDir string
	dbPath  string
}

func newTestWorkspace(t *testing.T) *testWorkspace {
	t.Helper()
	dir := t.TempDir()
	ws := &testWorkspace{
		dir:     dir,
		dataDir: filepath.Join(dir, "data"),
		dbPath:  filepath.Join(dir, "notes.db"),
	}
	t.Setenv("DATA_DIR", "")
	t.Setenv("NOTES_DATA_DIR", ws.dataDir)
	t.Setenv("NOTES_TEMP_DIR", filepath.Join(dir, "tmp"))
	t.Setenv("NOTES_DATABASE_DRIVER", "sqlite")
	t.Setenv("NOTES_DATABASE_SQLITE_PATH", ws.dbPath)
	t.Setenv("NOTES_LOG_FORMAT", "json")
	t.Setenv("NOTES_LOG_LEVEL", "error")
	return ws
}

// seed fills the store with the db test fixture and writes two data files.
func (w *testWorkspace) seed(t *testing.T) *db.TestFixture {
	t.Helper()
	store, err := db.OpenWorkspace(context.Background(), w.dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()
	fixture := db.SeedTestWorkspace(t, store)

	files := map[string]string{
		"notes/n1.json":   `{"id":"n1"}`,
		"clients/c1.json": `{"id":"c1"}`,
	}
	for rel, content := range files {
		path := filepath.Join(w.dataDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fixture
}

func (w *testWorkspace) counts(t *testing.T) db.Counts {
	t.Helper()
	store, err := db.OpenWorkspace(context.Background(), w.dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()
	c, err := store.CountAll(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return c
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return buf.String(), err
}

func TestExportWipeImport_RoundTrip(t *testing.T) {
	ws := newTestWorkspace(t)
	fixture := ws.seed(t)
	archive := filepath.Join(ws.dir, "backup.zip")

	output, err := runCLI(t, "export", "-o", archive)
	if err != nil {
		t.Fatalf("export: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Exported") {
		t.Errorf("export output = %q", output)
	}

	if output, err := runCLI(t, "wipe", "--yes"); err != nil {
		t.Fatalf("wipe: %v\n%s", err, output)
	}
	if _, err := os.Stat(ws.dataDir); !os.IsNotExist(err) {
		t.Errorf("data dir still present after wipe: %v", err)
	}
	if got := ws.counts(t); got != (db.Counts{}) {
		t.Errorf("counts after wipe = %+v", got)
	}

	output, err = runCLI(t, "import", archive)
	if err != nil {
		t.Fatalf("import: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Imported") {
		t.Errorf("import output = %q", output)
	}
	if got, want := ws.counts(t), fixture.Counts(); got != want {
		t.Errorf("counts after import = %+v, want %+v", got, want)
	}
	data, err := os.ReadFile(filepath.Join(ws.dataDir, "notes", "n1.json"))
	if err != nil || string(data) != `{"id":"n1"}` {
		t.Errorf("restored note = %q, %v", data, err)
	}
}

func TestExport_Stdout(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.seed(t)

	output, err := runCLI(t, "export", "-o", "-")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(output, "PK\x03\x04") {
		t.Errorf("stdout does not start with a zip header: %q", output[:min(len(output), 8)])
	}
}

func TestInspect_ListsEntries(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.seed(t)
	archive := filepath.Join(ws.dir, "backup.zip")
	if _, err := runCLI(t, "export", "-o", archive); err != nil {
		t.Fatalf("export: %v", err)
	}

	output, err := runCLI(t, "inspect", "--list", archive)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"both", "db/notes.json", "notes/n1.json", "exported at"} {
		if !strings.Contains(output, want) {
			t.Errorf("inspect output missing %q:\n%s", want, output)
		}
	}
}

func TestInspect_NotAZip(t *testing.T) {
	ws := newTestWorkspace(t)
	path := filepath.Join(ws.dir, "junk.zip")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := runCLI(t, "inspect", path)
	if ne := noteserrors.AsNotesError(err); ne == nil || ne.Code != noteserrors.CodeArchiveUnreadable {
		t.Errorf("err = %v, want ARCHIVE_UNREADABLE", err)
	}
}

func TestWipe_RequiresConfirmation(t *testing.T) {
	ws := newTestWorkspace(t)
	ws.seed(t)

	_, err := runCLI(t, "wipe")
	if err == nil {
		t.Fatal("expected an error without --yes")
	}
	if _, statErr := os.Stat(ws.dataDir); statErr != nil {
		t.Errorf("data dir touched: %v", statErr)
	}
}

func TestImport_MissingFile(t *testing.T) {
	newTestWorkspace(t)
	if _, err := runCLI(t, "import", filepath.Join(t.TempDir(), "nope.zip")); err == nil {
		t.Fatal("expected an error for a missing archive")
	}
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	newTestWorkspace(t)
	t.Setenv("NOTES_DATABASE_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("NOTES_DATABASE_POSTGRES_DSN", "postgres://notes:hunter2@db:5432/notes")

	output, err := runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(output, "hunter2") {
		t.Errorf("secret leaked:\n%s", output)
	}
	if !strings.Contains(output, "data_dir:") || !strings.Contains(output, "sqlite") {
		t.Errorf("unexpected output:\n%s", output)
	}
}

func TestConfigGet(t *testing.T) {
	newTestWorkspace(t)
	t.Setenv("NOTES_SERVER_PORT", "9123")

	tests := []struct {
		key  string
		want string
	}{
		{"server.port", "9123"},
		{"database.driver", "sqlite"},
		{"log.format", "json"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			output, err := runCLI(t, "config", "get", tt.key)
			if err != nil {
				t.Fatalf("config get: %v", err)
			}
			if strings.TrimSpace(output) != tt.want {
				t.Errorf("got %q, want %q", strings.TrimSpace(output), tt.want)
			}
		})
	}

	if _, err := runCLI(t, "config", "get", "server.nope"); err == nil {
		t.Error("expected an error for an unknown key")
	}
}

func TestInvalidConfig(t *testing.T) {
	newTestWorkspace(t)
	t.Setenv("NOTES_LOCK_MODE", "bogus")

	_, err := runCLI(t, "config", "show")
	if ne := noteserrors.AsNotesError(err); ne == nil || ne.Code != noteserrors.CodeConfigInvalid {
		t.Errorf("err = %v, want CONFIG_INVALID", err)
	}
}

func TestVersion_SkipsConfig(t *testing.T) {
	newTestWorkspace(t)
	t.Setenv("NOTES_LOCK_MODE", "bogus")

	output, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(output, "notes version ") {
		t.Errorf("output = %q", output)
	}
}

func TestRelocationWarning_FollowUpCommandsUseDataDir(t *testing.T) {
	ws := newTestWorkspace(t)
	relocated := filepath.Join(ws.dir, "tmp", "pietrosoft-notes-data")

	msg := relocationWarning(relocated)
	if !strings.Contains(msg, "DATA_DIR="+relocated) {
		t.Fatalf("warning does not name the DATA_DIR override:\n%s", msg)
	}

	// Follow the advice in a fresh command: the relocated root is exported.
	if err := os.MkdirAll(filepath.Join(relocated, "notes"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(relocated, "notes", "moved.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NOTES_DATA_DIR", "")
	t.Setenv("DATA_DIR", relocated)

	archive := filepath.Join(ws.dir, "after-relocation.zip")
	if output, err := runCLI(t, "export", "-o", archive); err != nil {
		t.Fatalf("export: %v\n%s", err, output)
	}
	output, err := runCLI(t, "inspect", "--list", archive)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if !strings.Contains(output, "notes/moved.json") {
		t.Errorf("export did not read the relocated root:\n%s", output)
	}
}
