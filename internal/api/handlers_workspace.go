package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db"
)

// WorkspaceStatus summarises the live workspace.
type WorkspaceStatus struct {
	DataRoot string    `json:"dataRoot"`
	Database string    `json:"database"`
	Counts   db.Counts `json:"counts"`
}

func (s *Server) workspaceStatus(ctx context.Context) (*WorkspaceStatus, error) {
	counts, err := s.counts.Counts(ctx)
	if err != nil {
		return nil, err
	}
	return &WorkspaceStatus{
		DataRoot: s.engine.DataRoot(),
		Database: string(s.store.Dialect()),
		Counts:   counts,
	}, nil
}

// handleStatus reports the data root and row counts.
// GET /api/workspace/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.workspaceStatus(r.Context())
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, st)
}

// handleExport streams a backup archive of the whole workspace.
// GET /api/workspace/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Export(r.Context())
	if err != nil {
		HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Length", strconv.Itoa(len(snap.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": snap.Filename}))
	w.Header().Set("X-Operation-Id", snap.OperationID)
	if _, err := w.Write(snap.Data); err != nil {
		s.logger.Debug("error writing export", "file", snap.Filename, "error", err)
	}
}

// handleImport restores the workspace from an uploaded archive.
// POST /api/workspace/import (multipart field "file")
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	summary, err := s.engine.Import(r.Context(), data)
	s.counts.Invalidate()
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, summary)
}

// handleInspect classifies an uploaded archive without importing it.
// POST /api/workspace/inspect (multipart field "file")
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	info, err := s.engine.Inspect(data)
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, info)
}

// handleWipe deletes every record and the data root.
// POST /api/workspace/wipe
func (s *Server) handleWipe(w http.ResponseWriter, r *http.Request) {
	err := s.engine.Wipe(r.Context())
	s.counts.Invalidate()
	if err != nil {
		HandleError(w, err)
		return
	}
	JSONResponse(w, map[string]any{"success": true})
}

// readUpload reads the multipart "file" field, bounded by maxImportBytes.
// On failure it has already written the response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxImportBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			JSONError(w, fmt.Sprintf("archive exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		JSONError(w, "failed to parse form", http.StatusBadRequest)
		return nil, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, _, err := r.FormFile("file")
	if err != nil {
		JSONError(w, "file is required", http.StatusBadRequest)
		return nil, false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		JSONError(w, fmt.Sprintf("failed to read file: %v", err), http.StatusInternalServerError)
		return nil, false
	}
	return data, true
}
