// Package api provides the HTTP API and websocket event stream for a notes
// workspace.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	noteserrors "github.com/pietrospam/pietrosoft-notes-sub000/internal/errors"
)

// APIError is the standard error response format.
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// JSONResponse writes a successful JSON response.
func JSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// JSONError writes a simple error response.
func JSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIError{Error: message})
}

// HandleError inspects error type and writes appropriate response.
// NotesErrors keep their code and details; anything else is a 500.
func HandleError(w http.ResponseWriter, err error) {
	var notesErr *noteserrors.NotesError
	if errors.As(err, &notesErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(notesErr.HTTPStatus())
		_ = json.NewEncoder(w).Encode(APIError{
			Error:   notesErr.Error(),
			Code:    string(notesErr.Code),
			Details: notesErr.Details,
		})
		return
	}
	JSONError(w, err.Error(), http.StatusInternalServerError)
}

// JSONResponseStatus writes a JSON response with a specific status code.
func JSONResponseStatus(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
