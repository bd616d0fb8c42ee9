package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/export"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C6FE0"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA"))
	barStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C6FE0"))
)

// terminalWidth returns the width of stdout, or 80 when it is not a
// terminal.
func terminalWidth() int {
	w, _, err := term.GetSize(os.Stdout.Fd())
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// renderBreakdown renders a ranked list with a share bar per row.
func renderBreakdown(w io.Writer, title string, items []domain.BreakdownItem, width int) {
	fmt.Fprintln(w, titleStyle.Render(title))
	if len(items) == 0 {
		fmt.Fprintln(w, dimStyle.Render("  no data"))
		return
	}

	const fixed = 2 + 1 + 9 + 1 + 6 + 1
	barWidth := 20
	nameWidth := width - fixed - barWidth - 1
	if nameWidth < 16 {
		nameWidth = 16
	}
	for _, it := range items {
		filled := min(max(int(it.Percentage/100*float64(barWidth)), 0), barWidth)
		bar := barStyle.Render(strings.Repeat("█", filled)) + dimStyle.Render(strings.Repeat("░", barWidth-filled))
		fmt.Fprintf(w, "  %-*s %9s %5.1f%% %s\n",
			nameWidth, truncate(it.Name, nameWidth),
			export.FormatSeconds(it.TotalTime),
			it.Percentage,
			bar,
		)
	}
}

// truncate shortens s to n runes with a trailing ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
