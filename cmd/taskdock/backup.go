package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/taskdock/taskdock/internal/backup"
	"github.com/taskdock/taskdock/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export all data to a backup file",
	Long: `Export tasks, documents, and settings to a versioned JSON backup.

With no file argument the backup is written to stdout, so it can be
piped or redirected. Pending autosaves are flushed first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		app.tasks.Flush()
		app.docs.Flush()

		text, err := backup.Export(cmd.Context(), app.st)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			fmt.Println(text)
			return nil
		}

		if err := os.WriteFile(args[0], []byte(text+"\n"), 0o644); err != nil {
			return fmt.Errorf("failed to write backup: %w", err)
		}
		fmt.Println(ui.Success("Exported to " + args[0]))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all data from a backup file",
	Long: `Validate a backup file and replace the entire database with its
contents. This is destructive: current tasks, documents, and settings
are all overwritten. Documents in the backup whose task is missing are
dropped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read backup: %w", err)
		}

		env, err := backup.ParseImportFile(string(data))
		if err != nil {
			var verr *backup.ValidationError
			if errors.As(err, &verr) && verr.TooNew {
				return fmt.Errorf("this backup was made by a newer taskdock: %s", verr.Reason)
			}
			return err
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			var confirmed bool
			prompt := huh.NewConfirm().
				Title(fmt.Sprintf("Replace ALL current data with %d tasks and %d documents?", len(env.Tasks), len(env.Documents))).
				Description("The current database contents will be overwritten.").
				Value(&confirmed)
			if err := prompt.Run(); err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Import cancelled.")
				return nil
			}
		}

		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		res, err := backup.Restore(cmd.Context(), app.st, app.coord, backup.Controllers{
			Tasks:     app.tasks,
			Documents: app.docs,
		}, env)
		if err != nil {
			return err
		}

		fmt.Println(ui.ImportSummary(res.Tasks, res.Documents, res.DroppedDocuments))
		return nil
	},
}

func init() {
	importCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(exportCmd, importCmd)
}
