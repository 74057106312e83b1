package snapshot

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db"
)

func TestEncodeTable_EmptyIsArray(t *testing.T) {
	data, err := EncodeTable[db.Client](nil)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestEncodeTable_AttachmentIsBase64(t *testing.T) {
	payload := []byte{0x00, 0xff, 0xc3, 0x28, 0x80}
	data, err := EncodeTable([]db.Attachment{{ID: "a1", NoteID: "n1", Size: 5, Data: payload}})
	require.NoError(t, err)

	got := gjson.GetBytes(data, "0.data").String()
	assert.Equal(t, base64.StdEncoding.EncodeToString(payload), got)
	assert.Equal(t, "n1", gjson.GetBytes(data, "0.noteId").String())
}

func TestDecodeTable_BinaryFidelity(t *testing.T) {
	// Every byte value, most of which are not valid UTF-8 on their own.
	payload := make([]byte, 256)
	for i := range payload {
		payload[i] = byte(i)
	}
	in := []db.Attachment{{ID: "a1", NoteID: "n1", Filename: "f", MimeType: "application/octet-stream", Size: 256, Data: payload}}

	data, err := EncodeTable(in)
	require.NoError(t, err)

	out, rowErrs, err := DecodeTable[db.Attachment](data)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeTable_BadRowDoesNotFailDocument(t *testing.T) {
	doc := `[
		{"id":"a1","noteId":"n1","size":2,"data":"aGk="},
		{"id":"a2","noteId":"n1","size":3,"data":"!!not base64!!"},
		{"id":"a3","noteId":"n1","size":0,"data":""}
	]`

	rows, rowErrs, err := DecodeTable[db.Attachment]([]byte(doc))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a1", rows[0].ID)
	assert.Equal(t, []byte("hi"), rows[0].Data)
	assert.Equal(t, "a3", rows[1].ID)

	require.Len(t, rowErrs, 1)
	assert.Equal(t, 1, rowErrs[0].Index)
	assert.Equal(t, "a2", rowErrs[0].ID)
	assert.Contains(t, rowErrs[0].Error(), "id a2")
}

func TestDecodeTable_StructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"object", `{"id":"c1"}`},
		{"invalid json", `[{"id":`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeTable[db.Client]([]byte(tt.doc))
			assert.Error(t, err)
		})
	}

	_, _, err := DecodeTable[db.Client]([]byte(`{"id":"c1"}`))
	assert.ErrorIs(t, err, ErrNotArray)
}

func TestDecodeTable_NoteContentKeptVerbatim(t *testing.T) {
	doc := `[{"id":"n1","type":"general","title":"t","content":{"type":"doc","content":[{"type":"text","text":"hi"}]},"contentText":"hi"}]`
	rows, rowErrs, err := DecodeTable[db.Note]([]byte(doc))
	require.NoError(t, err)
	require.Empty(t, rowErrs)
	require.Len(t, rows, 1)
	assert.JSONEq(t, `{"type":"doc","content":[{"type":"text","text":"hi"}]}`, string(rows[0].Content))
}

func TestWriteDump(t *testing.T) {
	wdb := db.NewTestWorkspaceDB(t)
	fixture := db.SeedTestWorkspace(t, wdb)

	dump, err := ReadDump(context.Background(), wdb)
	require.NoError(t, err)
	assert.Equal(t, fixture.Counts(), dump.Counts())

	dir := filepath.Join(t.TempDir(), "db")
	require.NoError(t, WriteDump(dir, dump))

	for _, name := range LoadOrder {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.True(t, gjson.ValidBytes(data), name)
		assert.True(t, gjson.ParseBytes(data).IsArray(), name)
	}

	data, err := os.ReadFile(filepath.Join(dir, NotesFile))
	require.NoError(t, err)
	assert.Equal(t, int64(3), gjson.GetBytes(data, "#").Int())
	assert.Equal(t, "s3cret", gjson.GetBytes(data, `#(id=="n-conn").password`).String())
}

func TestManifestRoundTrip(t *testing.T) {
	m := &Manifest{Version: ManifestVersion, Application: "pietrosoft-notes", OperationID: "op", Database: "sqlite",
		Counts: db.Counts{Notes: 3, Clients: 2}}
	data, err := m.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), "activityLogs: 0")

	got, err := ParseManifest(data)
	require.NoError(t, err)
	assert.Equal(t, m.Counts, got.Counts)
	assert.Equal(t, "op", got.OperationID)
}
