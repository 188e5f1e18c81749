package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskdock/taskdock/internal/backup"
	"github.com/taskdock/taskdock/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local API server",
	Long: `Run the local HTTP API with a WebSocket change feed.

Endpoints:
  /api/tasks, /api/documents, /api/settings   JSON API over the live data
  /api/export, /api/import                    backup round trip
  /ws                                         change feed (one event per mutation)

With inbox.enabled in the config, a backup file dropped into the inbox
directory is validated and imported automatically.

Example usage:
  taskdock serve                 # Listen on the configured address
  taskdock serve --addr :9000    # Override the listen address`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		addr := cfg.Server.Addr
		if flagAddr, _ := cmd.Flags().GetString("addr"); flagAddr != "" {
			addr = flagAddr
		}

		srv := server.New(app.st, app.tasks, app.docs, app.coord, &server.Config{
			Addr:   addr,
			Logger: newLogger("[api] "),
		})
		if err := srv.Start(); err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if cfg.Inbox.Enabled {
			inbox, err := backup.NewInbox(cfg.InboxDir(), func(env *backup.Envelope) error {
				res, err := backup.Restore(ctx, app.st, app.coord, backup.Controllers{
					Tasks:     app.tasks,
					Documents: app.docs,
				}, env)
				if err != nil {
					return err
				}
				srv.Publish(server.EventImportComplete, res)
				return nil
			}, &backup.InboxConfig{Logger: newLogger("[inbox] ")})
			if err != nil {
				return err
			}
			go func() {
				if err := inbox.Start(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "Inbox error: %v\n", err)
				}
			}()
		}

		fmt.Printf("taskdock API on http://%s\n", srv.Addr())
		fmt.Printf("Change feed: ws://%s/ws\n", srv.Addr())
		fmt.Println("\nPress Ctrl+C to stop...")

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		return srv.Stop()
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
