// Package summary renders the end-of-run report printed to stderr.
package summary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/optiply-target/internal/core/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#06B6D4"))

	streamStyle = lipgloss.NewStyle().
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#A6E3A1"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F38BA8"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C7086"))
)

// Render formats the per-stream counters as a human-readable report.
func Render(summary map[string]domain.StreamSummary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Processing Summary"))
	b.WriteString("\n")

	streams := make([]string, 0, len(summary))
	for name := range summary {
		streams = append(streams, name)
	}
	sort.Strings(streams)

	var total domain.StreamSummary
	for _, name := range streams {
		sum := summary[name]
		total.Success += sum.Success
		total.Fail += sum.Fail
		total.Existing += sum.Existing
		total.Updated += sum.Updated

		b.WriteString(streamStyle.Render(name))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
			okStyle.Render(fmt.Sprintf("created: %d", sum.Success)),
			okStyle.Render(fmt.Sprintf("updated: %d", sum.Updated)),
			mutedStyle.Render(fmt.Sprintf("existing: %d", sum.Existing)),
			failStyle.Render(fmt.Sprintf("failed: %d", sum.Fail)),
		))
	}

	b.WriteString(mutedStyle.Render(fmt.Sprintf(
		"total: %d records (%d created, %d updated, %d existing, %d failed)",
		total.Total(), total.Success, total.Updated, total.Existing, total.Fail)))
	b.WriteString("\n")
	return b.String()
}
