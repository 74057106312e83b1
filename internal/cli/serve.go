package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/api"
	"github.com/pietrospam/pietrosoft-notes-sub000/internal/events"
	"github.com/pietrospam/pietrosoft-notes-sub000/internal/lock"
)

// newServeCmd creates the serve command for the API server
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the notes API server.

The API server provides:
  • Workspace export, import, inspect and wipe
  • Attachment downloads
  • Operation events over WebSocket (/api/ws)

Only one server may serve a data directory at a time.

Example:
  notes serve              # Listen on server.host:server.port
  notes serve --port 3000  # Override the port`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				port, _ := cmd.Flags().GetInt("port")
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			guard := lock.NewServerGuard(cfg.TempDir, cfg.DataDir)
			if err := guard.Acquire(); err != nil {
				var running *lock.AlreadyRunningError
				if errors.As(err, &running) {
					slog.Error("another server owns this data directory", "pid", running.PID, "pid_file", guard.Path())
				}
				return err
			}
			defer guard.Release()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pub := events.NewLogPublisher(slog.Default(), events.WithInnerPublisher(events.NewMemoryPublisher()))
			defer pub.Close()

			ws, err := openWorkspace(ctx, cfg, pub)
			if err != nil {
				return err
			}
			defer ws.Close()

			server := api.New(ws.engine, ws.store, pub, &api.Config{
				Addr:           cfg.Addr(),
				MaxImportBytes: cfg.Server.MaxImportBytes,
				Logger:         slog.Default(),
			})

			printf(cmd, "%s %s\n", styles.Title.Render("notes API"), styles.Subtle.Render("http://"+cfg.Addr()))
			printf(cmd, "%s\n", styles.Subtle.Render("Press Ctrl+C to stop"))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.StartContext(gctx)
			})
			g.Go(func() error {
				<-gctx.Done()
				if ctx.Err() != nil {
					slog.Info("shutting down")
				}
				return nil
			})
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntP("port", "p", 0, "port to listen on (default from config)")

	return cmd
}
