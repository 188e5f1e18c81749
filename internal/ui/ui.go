// Package ui renders taskdock CLI output with terminal styling.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/taskdock/taskdock/internal/model"
)

// Status icons
const (
	iconNotStarted = "○"
	iconInProgress = "◐"
	iconDone       = "●"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	columnColors = map[string]lipgloss.Color{
		model.ColumnNotStarted: lipgloss.Color("252"),
		model.ColumnInProgress: lipgloss.Color("214"),
		model.ColumnDone:       lipgloss.Color("42"),
	}

	dueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Underline(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// Success formats a confirmation line.
func Success(msg string) string {
	return successStyle.Render("✓ " + msg)
}

// Error formats a failure line.
func Error(msg string) string {
	return errorStyle.Render("✗ " + msg)
}

// columnIcon returns the status icon for a kanban column.
func columnIcon(column string) string {
	switch column {
	case model.ColumnInProgress:
		return iconInProgress
	case model.ColumnDone:
		return iconDone
	default:
		return iconNotStarted
	}
}

// TaskLine renders one task as a single list row.
func TaskLine(task *model.Task, column string) string {
	color, ok := columnColors[column]
	if !ok {
		color = columnColors[model.ColumnNotStarted]
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Foreground(color).Render(columnIcon(column)))
	b.WriteString(" ")
	b.WriteString(task.Label)

	if len(task.SubTasks) > 0 {
		done := 0
		for _, st := range task.SubTasks {
			if st.Completed {
				done++
			}
		}
		b.WriteString(mutedStyle.Render(fmt.Sprintf(" [%d/%d]", done, len(task.SubTasks))))
	}
	if task.DueDate != "" {
		b.WriteString(" ")
		b.WriteString(dueStyle.Render("due " + task.DueDate))
	}
	b.WriteString(mutedStyle.Render("  " + shortID(task.ID)))

	return b.String()
}

// TaskList renders the full task list grouped in persisted order.
func TaskList(tasks []*model.Task, settings model.Settings) string {
	if len(tasks) == 0 {
		return mutedStyle.Render("No tasks.")
	}

	var b strings.Builder
	for _, task := range tasks {
		column := settings.ColumnByID[task.ID]
		if column == "" {
			column = model.ColumnNotStarted
		}
		b.WriteString(TaskLine(task, column))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// TaskDetail renders one task with sub-tasks, link, and custom fields.
func TaskDetail(task *model.Task, column string, fields []model.CustomFieldDefinition) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(task.Label))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("id: " + task.ID))
	b.WriteString("\n")
	b.WriteString("column: " + column)
	b.WriteString("\n")

	if task.DueDate != "" {
		b.WriteString(dueStyle.Render("due " + task.DueDate))
		b.WriteString("\n")
	}
	if task.Link != "" {
		b.WriteString(linkStyle.Render(task.Link))
		b.WriteString("\n")
	}

	for _, def := range fields {
		if value, ok := task.CustomFields[def.ID]; ok && value != "" {
			b.WriteString(fmt.Sprintf("%s: %s\n", def.Label, value))
		}
	}

	for _, st := range task.SubTasks {
		mark := "[ ]"
		if st.Completed {
			mark = "[x]"
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", mark, st.Label))
	}

	return strings.TrimRight(b.String(), "\n")
}

// ImportSummary renders the outcome of a backup import.
func ImportSummary(tasks, documents, dropped int) string {
	line := fmt.Sprintf("Imported %d tasks and %d documents", tasks, documents)
	if dropped > 0 {
		line += mutedStyle.Render(fmt.Sprintf(" (%d orphaned documents dropped)", dropped))
	}
	return Success(line)
}

// shortID abbreviates a UUID for list display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
