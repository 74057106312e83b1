package cli

import (
	"runtime"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X ...internal/cli.version=v1.2.3".
var version = "0.1.0-dev"

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show notes version",
		Args:  cobra.NoArgs,
		// version needs no configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			printf(cmd, "notes version %s (%s)\n", version, runtime.Version())
		},
	}
}
