package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/snapshot"
)

// newInspectCmd creates the inspect command
func newInspectCmd() *cobra.Command {
	var listEntries bool

	cmd := &cobra.Command{
		Use:   "inspect <archive>",
		Short: "Show what a backup archive contains without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read archive: %w", err)
			}
			info, err := snapshot.InspectArchive(data)
			if err != nil {
				return err
			}

			printf(cmd, "%s\n", styles.Title.Render(args[0]))
			printf(cmd, "%s\n", row("format", info.Format))
			if len(info.LegacyFolders) > 0 {
				printf(cmd, "%s\n", row("folders", strings.Join(info.LegacyFolders, ", ")))
			}
			printf(cmd, "%s\n", row("entries", len(info.Entries)))

			if m := info.Manifest; m != nil {
				printf(cmd, "%s\n", row("exported at", m.ExportedAt.Format("2006-01-02 15:04:05 MST")))
				printf(cmd, "%s\n", row("database", m.Database))
				printf(cmd, "%s\n", renderCounts(m.Counts))
			}

			if listEntries {
				printf(cmd, "\n")
				for _, name := range info.Entries {
					printf(cmd, "  %s\n", styles.Subtle.Render(name))
				}
			}

			if info.Format == snapshot.FormatNone {
				printf(cmd, "\n%s\n", styles.Warning.Render("This archive cannot be imported."))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&listEntries, "list", "l", false, "list every entry")

	return cmd
}
