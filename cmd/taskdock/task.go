package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/taskdock/taskdock/internal/model"
	"github.com/taskdock/taskdock/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <label>",
	Short: "Create a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		task, err := app.tasks.CreateTask(strings.Join(args, " "))
		if err != nil {
			return err
		}

		if due, _ := cmd.Flags().GetString("due"); due != "" {
			date, err := parseDue(due)
			if err != nil {
				return err
			}
			if err := app.tasks.SetDueDate(task.ID, date); err != nil {
				return err
			}
		}
		if link, _ := cmd.Flags().GetString("link"); link != "" {
			if err := app.tasks.SetLink(task.ID, link); err != nil {
				return err
			}
		}

		task, _ = app.tasks.Task(task.ID)
		fmt.Println(ui.Success("Created " + task.Label))
		fmt.Println(ui.TaskLine(task, app.tasks.Column(task.ID)))
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		fmt.Println(ui.TaskList(app.tasks.Tasks(), app.tasks.Settings()))
		return nil
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one task in detail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		task, err := resolveTask(app, args[0])
		if err != nil {
			return err
		}

		fmt.Println(ui.TaskDetail(task, app.tasks.Column(task.ID), app.tasks.CustomFields()))
		for _, doc := range app.docs.ForTask(task.ID) {
			fmt.Printf("  doc: %s (%s)\n", doc.Title, doc.ID[:8])
		}
		return nil
	},
}

var taskStartCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Move a task to the in-progress column",
	Args:  cobra.ExactArgs(1),
	RunE:  setColumnRun(model.ColumnInProgress),
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Move a task to the done column",
	Args:  cobra.ExactArgs(1),
	RunE:  setColumnRun(model.ColumnDone),
}

var taskRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a task and its documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		task, err := resolveTask(app, args[0])
		if err != nil {
			return err
		}
		if err := app.tasks.DeleteTask(task.ID); err != nil {
			return err
		}

		fmt.Println(ui.Success("Deleted " + task.Label))
		return nil
	},
}

var taskDueCmd = &cobra.Command{
	Use:   "due <id> <date>",
	Short: "Set a task due date (natural language or YYYY-MM-DD)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		task, err := resolveTask(app, args[0])
		if err != nil {
			return err
		}
		date, err := parseDue(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		if err := app.tasks.SetDueDate(task.ID, date); err != nil {
			return err
		}

		fmt.Println(ui.Success(fmt.Sprintf("%s due %s", task.Label, date)))
		return nil
	},
}

var subAddCmd = &cobra.Command{
	Use:   "sub <task-id> <label>",
	Short: "Add a sub-task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		task, err := resolveTask(app, args[0])
		if err != nil {
			return err
		}
		if _, err := app.tasks.AddSubTask(task.ID, strings.Join(args[1:], " ")); err != nil {
			return err
		}

		task, _ = app.tasks.Task(task.ID)
		fmt.Println(ui.TaskDetail(task, app.tasks.Column(task.ID), nil))
		return nil
	},
}

var subToggleCmd = &cobra.Command{
	Use:   "toggle <task-id> <sub-id>",
	Short: "Toggle a sub-task's completed state",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		task, err := resolveTask(app, args[0])
		if err != nil {
			return err
		}

		subID := args[1]
		for _, st := range task.SubTasks {
			if strings.HasPrefix(st.ID, subID) {
				subID = st.ID
				break
			}
		}
		if err := app.tasks.ToggleSubTask(task.ID, subID); err != nil {
			return err
		}

		task, _ = app.tasks.Task(task.ID)
		fmt.Println(ui.TaskDetail(task, app.tasks.Column(task.ID), nil))
		return nil
	},
}

// setColumnRun builds a RunE that moves a task to the given column.
func setColumnRun(column string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		task, err := resolveTask(app, args[0])
		if err != nil {
			return err
		}
		if err := app.tasks.SetColumn(task.ID, column); err != nil {
			return err
		}

		fmt.Println(ui.TaskLine(task, column))
		return nil
	}
}

// resolveTask finds a task by full id, unique id prefix, or exact label.
func resolveTask(app *app, ref string) (*model.Task, error) {
	if task, ok := app.tasks.Task(ref); ok {
		return task, nil
	}

	var match *model.Task
	for _, task := range app.tasks.Tasks() {
		if strings.HasPrefix(task.ID, ref) || task.Label == ref {
			if match != nil {
				return nil, fmt.Errorf("ambiguous task reference %q", ref)
			}
			match = task
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no task matches %q", ref)
	}
	return match, nil
}

// parseDue turns natural language ("tomorrow", "next friday") or a
// literal YYYY-MM-DD string into a due date.
func parseDue(text string) (string, error) {
	if _, err := time.Parse("2006-01-02", text); err == nil {
		return text, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(text, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to parse due date %q: %w", text, err)
	}
	if r == nil {
		return "", fmt.Errorf("could not understand due date %q", text)
	}
	return r.Time.Format("2006-01-02"), nil
}

func init() {
	taskAddCmd.Flags().String("due", "", "due date (natural language or YYYY-MM-DD)")
	taskAddCmd.Flags().String("link", "", "reference URL")

	taskCmd.AddCommand(taskAddCmd, taskListCmd, taskShowCmd, taskStartCmd, taskDoneCmd, taskRmCmd, taskDueCmd, subAddCmd, subToggleCmd)
	rootCmd.AddCommand(taskCmd)
}
