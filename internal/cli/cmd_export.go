package cli

import (
	"bytes"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/events"
)

// newExportCmd creates the export command
func newExportCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a backup archive of the workspace",
		Long: `Write a backup archive holding the data directory and a db/ dump of
every relational table.

The archive is named pietrosoft-notes-backup-<timestamp>.zip and written to
the current directory unless -o is given. Use -o - to write to stdout.

Example:
  notes export
  notes export -o backups/today.zip
  notes export -o - > backup.zip`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := openWorkspace(cmd.Context(), cfg, events.NewLogPublisher(slog.Default()))
			if err != nil {
				return err
			}
			defer ws.Close()

			snap, err := ws.engine.Export(cmd.Context())
			if err != nil {
				return err
			}

			if outputFile == "-" {
				_, err := out(cmd).Write(snap.Data)
				return err
			}

			path := outputFile
			if path == "" {
				path = snap.Filename
			}
			if err := atomic.WriteFile(path, bytes.NewReader(snap.Data)); err != nil {
				return fmt.Errorf("write archive: %w", err)
			}

			abs, _ := filepath.Abs(path)
			printf(cmd, "%s %s\n", styles.Success.Render("Exported"), abs)
			printf(cmd, "%s\n", row("size", humanBytes(int64(len(snap.Data)))))
			printf(cmd, "%s\n", renderCounts(snap.Counts))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (- for stdout)")

	return cmd
}

// humanBytes formats n using binary units.
func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
