package api

import (
	"mime"
	"net/http"
	"strconv"

	noteserrors "github.com/pietrospam/pietrosoft-notes-sub000/internal/errors"
)

// handleGetAttachment serves a stored attachment payload.
// GET /api/attachments/{id}[?download=1]
func (s *Server) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	a, err := s.store.GetAttachment(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}
	if a == nil {
		HandleError(w, noteserrors.ErrAttachmentNotFound(id))
		return
	}

	contentType := a.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	name := a.OriginalFilename
	if name == "" {
		name = a.Filename
	}

	disposition := "inline"
	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); download {
		disposition = "attachment"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(a.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if _, err := w.Write(a.Data); err != nil {
		// Client may have disconnected; just log and return
		s.logger.Debug("error writing attachment", "id", id, "error", err)
	}
}
