// Package errors provides structured error types for the notes workspace.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for workspace operations.
const (
	// Archive errors
	CodeArchiveInvalid    Code = "ARCHIVE_INVALID"
	CodeArchiveUnreadable Code = "ARCHIVE_UNREADABLE"

	// Data root errors
	CodeDataRootNotFound    Code = "DATA_ROOT_NOT_FOUND"
	CodeDataRootUnavailable Code = "DATA_ROOT_UNAVAILABLE"
	CodeExtractFailed       Code = "EXTRACT_FAILED"
	CodeRollbackFailed      Code = "ROLLBACK_FAILED"

	// Relational store errors
	CodeWipeFailed Code = "WIPE_FAILED"
	CodeLoadFailed Code = "LOAD_FAILED"
	CodeDumpFailed Code = "DUMP_FAILED"

	// Coordination
	CodeWorkspaceBusy Code = "WORKSPACE_BUSY"

	// Attachments
	CodeAttachmentNotFound Code = "ATTACHMENT_NOT_FOUND"

	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
)

// Category groups error codes for HTTP status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryConflict
	CategoryInternal
)

var codeCategories = map[Code]Category{
	CodeArchiveInvalid:      CategoryBadRequest,
	CodeArchiveUnreadable:   CategoryBadRequest,
	CodeDataRootNotFound:    CategoryNotFound,
	CodeDataRootUnavailable: CategoryInternal,
	CodeExtractFailed:       CategoryInternal,
	CodeRollbackFailed:      CategoryInternal,
	CodeWipeFailed:          CategoryInternal,
	CodeLoadFailed:          CategoryInternal,
	CodeDumpFailed:          CategoryInternal,
	CodeWorkspaceBusy:       CategoryConflict,
	CodeAttachmentNotFound:  CategoryNotFound,
	CodeConfigInvalid:       CategoryBadRequest,
}

// HTTPStatus returns the HTTP status code for a category.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryNotFound:
		return 404
	case CategoryBadRequest:
		return 400
	case CategoryConflict:
		return 409
	default:
		return 500
	}
}

// NotesError is the structured error type surfaced to callers of the
// workspace engine, the HTTP API and the CLI.
type NotesError struct {
	Code    Code   `json:"code"`
	What    string `json:"what"`
	Why     string `json:"why,omitempty"`
	Fix     string `json:"fix,omitempty"`
	Details any    `json:"details,omitempty"`
	Cause   error  `json:"-"`
}

// Error implements the error interface.
func (e *NotesError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *NotesError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *NotesError) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString("\n\nCause: ")
		b.WriteString(e.Cause.Error())
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category for HTTP status mapping.
func (e *NotesError) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *NotesError) HTTPStatus() int {
	return e.Category().HTTPStatus()
}

// MarshalJSON implements json.Marshaler.
func (e *NotesError) MarshalJSON() ([]byte, error) {
	type alias NotesError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is a NotesError with the same code.
func (e *NotesError) Is(target error) bool {
	t, ok := target.(*NotesError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *NotesError) WithCause(err error) *NotesError {
	c := *e
	c.Cause = err
	return &c
}

// WithDetails returns a copy of the error carrying diagnostic details.
func (e *NotesError) WithDetails(details any) *NotesError {
	c := *e
	c.Details = details
	return &c
}

// --- Error constructors ---

// ErrArchiveInvalid is returned when an archive carries neither a legacy
// folder nor a db/ dump.
func ErrArchiveInvalid(reason string) *NotesError {
	return &NotesError{
		Code: CodeArchiveInvalid,
		What: "invalid backup archive",
		Why:  reason,
		Fix:  "Use an archive produced by 'notes export' or a legacy backup containing notes/, clients/ or projects/",
	}
}

// ErrArchiveUnreadable is returned when the uploaded bytes are not a zip archive.
func ErrArchiveUnreadable(err error) *NotesError {
	return &NotesError{
		Code:  CodeArchiveUnreadable,
		What:  "backup archive could not be read",
		Why:   "The file is not a valid zip archive",
		Cause: err,
	}
}

// ErrDataRootNotFound is returned when exporting a workspace whose data root does not exist.
func ErrDataRootNotFound(path string) *NotesError {
	return &NotesError{
		Code: CodeDataRootNotFound,
		What: fmt.Sprintf("data directory %s not found", path),
		Why:  "There is nothing to export yet",
		Fix:  "Create some notes first, or point DATA_DIR at an existing workspace",
	}
}

// ErrDataRootUnavailable is returned when the data root cannot be created,
// even after relocating to the temporary directory.
func ErrDataRootUnavailable(path string, err error) *NotesError {
	return &NotesError{
		Code:  CodeDataRootUnavailable,
		What:  fmt.Sprintf("data directory %s could not be prepared", path),
		Fix:   "Check permissions on the data directory and its parent",
		Cause: err,
	}
}

// ErrExtractFailed is returned when extraction fails and the previous data
// root was restored.
func ErrExtractFailed(err error) *NotesError {
	return &NotesError{
		Code:  CodeExtractFailed,
		What:  "failed to extract backup archive",
		Why:   "The previous workspace files were restored",
		Cause: err,
	}
}

// ErrRollbackFailed is returned when the backup of the data root could not
// be moved back into place.
func ErrRollbackFailed(backup string, err error) *NotesError {
	return &NotesError{
		Code:  CodeRollbackFailed,
		What:  "failed to restore the previous data directory",
		Why:   fmt.Sprintf("The pre-import copy is still available at %s", backup),
		Fix:   "Move the backup directory back into place manually",
		Cause: err,
	}
}

// ErrWipeFailed is returned when the relational wipe transaction fails.
func ErrWipeFailed(err error) *NotesError {
	return &NotesError{
		Code:  CodeWipeFailed,
		What:  "failed to delete workspace records",
		Why:   "The delete transaction was rolled back; no records were removed",
		Cause: err,
	}
}

// ErrLoadFailed is returned when a dump file could not be loaded into the store.
func ErrLoadFailed(file string, err error) *NotesError {
	return &NotesError{
		Code:  CodeLoadFailed,
		What:  fmt.Sprintf("failed to load %s", file),
		Why:   "Tables loaded before this file were kept",
		Cause: err,
	}
}

// ErrDumpFailed is returned when the relational dump could not be produced.
func ErrDumpFailed(err error) *NotesError {
	return &NotesError{
		Code:  CodeDumpFailed,
		What:  "failed to dump workspace records",
		Cause: err,
	}
}

// ErrWorkspaceBusy is returned when another export, import or wipe holds
// the workspace lock.
func ErrWorkspaceBusy(err error) *NotesError {
	return &NotesError{
		Code:  CodeWorkspaceBusy,
		What:  "workspace is busy",
		Why:   "Another export, import or wipe is in progress",
		Fix:   "Retry once the running operation has finished",
		Cause: err,
	}
}

// ErrAttachmentNotFound is returned when no attachment has the given id.
func ErrAttachmentNotFound(id string) *NotesError {
	return &NotesError{
		Code: CodeAttachmentNotFound,
		What: fmt.Sprintf("attachment %s not found", id),
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *NotesError {
	return &NotesError{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
		Fix:  "Check notes.yaml and the NOTES_* environment variables",
	}
}

// AsNotesError attempts to convert an error to a NotesError.
// Returns nil if the error is not a NotesError.
func AsNotesError(err error) *NotesError {
	var notesErr *NotesError
	if stderrors.As(err, &notesErr) {
		return notesErr
	}
	return nil
}

// Wrap wraps a generic error into a NotesError with unknown code.
func Wrap(err error, what string) *NotesError {
	return &NotesError{
		Code:  Code("UNKNOWN"),
		What:  what,
		Cause: err,
	}
}
