package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/events"
)

// newImportCmd creates the import command
func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <archive>",
		Short: "Replace the workspace with a backup archive",
		Long: `Replace the data directory with the contents of a backup archive and,
when the archive carries a db/ dump, reload every relational table from it.

Legacy archives (notes/, clients/ and projects/ folders only) replace the
data directory and leave the database alone. If extraction fails the
previous data directory is restored.

Example:
  notes import pietrosoft-notes-backup-20240701-140509.zip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read archive: %w", err)
			}

			ws, err := openWorkspace(cmd.Context(), cfg, events.NewLogPublisher(slog.Default()))
			if err != nil {
				return err
			}
			defer ws.Close()

			summary, err := ws.engine.Import(cmd.Context(), data)
			if err != nil {
				return err
			}

			printf(cmd, "%s %s\n", styles.Success.Render("Imported"), summary.Message)
			printf(cmd, "%s\n", row("format", summary.Format))
			printf(cmd, "%s\n", row("data root", summary.DataRoot))
			printf(cmd, "%s\n", renderCounts(summary.Imported))
			if summary.Relocated {
				printf(cmd, "\n%s\n", styles.Warning.Render(relocationWarning(summary.DataRoot)))
			}
			return nil
		},
	}
	return cmd
}

// relocationWarning explains a permission fallback. The relocation only
// lasts for this process, so later commands must be pointed at the new root.
func relocationWarning(root string) string {
	return fmt.Sprintf("The data directory was not writable; files were restored to %s.\n"+
		"Later commands still read the configured data directory. Run them with\n"+
		"  DATA_DIR=%s\n"+
		"(or NOTES_DATA_DIR, or data_dir in notes.yaml) to keep using the restored files.", root, root)
}
