package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/taskdock/taskdock/internal/config"
	"github.com/taskdock/taskdock/internal/persist"
	"github.com/taskdock/taskdock/internal/store"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "taskdock",
	Short: "Local-first personal task tracker",
	Long: `taskdock keeps your tasks, documents, and board settings in a local
SQLite database. Edits are autosaved with a short debounce, and the full
data set can be exported to (and restored from) a portable JSON backup.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgFile != "" {
			cfg, err = config.LoadFile(cfgFile)
		} else {
			cfg, err = config.Load()
		}
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.taskdock/config.yaml)")
}

// newLogger builds the application logger, rotating to a file when one
// is configured.
func newLogger(prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
		}
	}
	return log.New(out, prefix, log.LstdFlags)
}

// app bundles the opened store and hydrated controllers for a command
// invocation.
type app struct {
	st    *store.Store
	coord *persist.Coordinator
	tasks *persist.TaskController
	docs  *persist.DocumentController
}

// openApp opens the store and hydrates both controllers.
func openApp(ctx context.Context) (*app, error) {
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	logger := newLogger("[taskdock] ")
	coord := persist.NewCoordinator()
	tasks := persist.NewTaskController(st, coord, persist.TaskConfig{
		Debounce: cfg.TaskDebounce(),
		Logger:   logger,
	})
	docs := persist.NewDocumentController(st, coord, persist.DocumentConfig{
		Debounce: cfg.DocumentDebounce(),
		Logger:   logger,
	})
	tasks.AttachDocuments(docs)

	if err := tasks.Hydrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to hydrate tasks: %w", err)
	}
	if err := docs.Hydrate(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to hydrate documents: %w", err)
	}

	return &app{st: st, coord: coord, tasks: tasks, docs: docs}, nil
}

// close flushes pending writes and releases the store.
func (a *app) close() {
	a.tasks.Flush()
	a.docs.Flush()
	a.tasks.Close()
	a.docs.Close()
	_ = a.st.Close()
}
