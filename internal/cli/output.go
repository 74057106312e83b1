package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db"
)

// Styles holds the lipgloss styles used for command output.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Subtle  lipgloss.Style
}

// DefaultStyles returns the default output styling.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(14),
		Value: lipgloss.NewStyle().
			Bold(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")),
		Warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		Error: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		Subtle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
	}
}

var styles = DefaultStyles()

// row renders one "label value" line.
func row(label string, value any) string {
	return styles.Label.Render(label) + styles.Value.Render(fmt.Sprint(value))
}

// renderCounts renders per-table row counts, one table per line.
func renderCounts(c db.Counts) string {
	lines := []string{
		row("notes", c.Notes),
		row("clients", c.Clients),
		row("projects", c.Projects),
		row("attachments", c.Attachments),
		row("activity logs", c.ActivityLogs),
	}
	return strings.Join(lines, "\n")
}
