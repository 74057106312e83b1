package cli

import (
	"fmt"
	"io"

	noteserrors "github.com/pietrospam/pietrosoft-notes-sub000/internal/errors"
)

// PrintError prints an error with appropriate formatting.
// If the error is a NotesError, it uses the user-friendly format.
// Otherwise, it prints a simple error message.
func PrintError(w io.Writer, err error) {
	if notesErr := noteserrors.AsNotesError(err); notesErr != nil {
		_, _ = fmt.Fprintln(w, styles.Error.Render(notesErr.UserMessage()))
		if verbose {
			// In verbose mode, also print the error code and details
			_, _ = fmt.Fprintf(w, "\nCode: %s\n", notesErr.Code)
			if notesErr.Details != nil {
				_, _ = fmt.Fprintf(w, "Details: %v\n", notesErr.Details)
			}
		}
		return
	}
	_, _ = fmt.Fprintln(w, styles.Error.Render("Error: "+err.Error()))
}
