// Package cli implements the notes command-line interface.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/config"
)

var (
	cfgFile string
	verbose bool

	// cfg is loaded once before any command that needs it runs.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Notes and time-tracking workspace backups",
		Long: `notes exports, restores and resets a notes workspace: the relational
store (clients, projects, notes, attachments, activity logs) together with
the files under the data directory.

Quick start:
  notes export                 Write a backup archive to the current directory
  notes import backup.zip      Replace the workspace with an archive
  notes inspect backup.zip     Show what an archive contains
  notes serve                  Start the HTTP API`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./notes.yaml)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newWipeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the root command and prints any error.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		PrintError(os.Stderr, err)
	}
	return err
}

// loadConfig reads notes.yaml and NOTES_* variables, then installs the
// default logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(config.NewViper(), cfgFile)
	if err != nil {
		return err
	}
	cfg = c

	logger, err := newLogger(cfg, verbose, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if verbose {
		logger.Debug("configuration loaded", "data_dir", cfg.DataDir, "database", cfg.Database.Driver)
	}
	return nil
}

// out is where command results are printed.
func out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

func printf(cmd *cobra.Command, format string, a ...any) {
	_, _ = fmt.Fprintf(out(cmd), format, a...)
}
