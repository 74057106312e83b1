package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/events"
	noteserrors "github.com/pietrospam/pietrosoft-notes-sub000/internal/errors"
)

// newWipeCmd creates the wipe command
func newWipeCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete every record and the data directory",
		Long: `Delete every relational record in one transaction, then remove the data
directory. If the delete fails nothing is removed.

This cannot be undone. Export first if you may need the data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return &noteserrors.NotesError{
					Code: noteserrors.CodeConfigInvalid,
					What: "wipe needs confirmation",
					Fix:  "Re-run with --yes",
				}
			}

			ws, err := openWorkspace(cmd.Context(), cfg, events.NewLogPublisher(slog.Default()))
			if err != nil {
				return err
			}
			defer ws.Close()

			if err := ws.engine.Wipe(cmd.Context()); err != nil {
				return err
			}
			printf(cmd, "%s %s\n", styles.Success.Render("Wiped"), ws.engine.DataRoot())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the wipe")

	return cmd
}
