package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/xvierd/notetime/internal/export"
)

var formatSeconds = export.FormatSeconds

// relativeTime renders t relative to now, e.g. "3 minutes ago".
func relativeTime(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// Run shows the dashboard on the alternate screen until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(
		NewModel(opts),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// RenderStatus renders a one-shot plain summary of snap for non-interactive
// output.
func RenderStatus(snap Snapshot, width int) string {
	st := snap.State
	color := statusColor(st.Status())
	bold := lipgloss.NewStyle().Bold(true).Foreground(color)

	var b strings.Builder
	label := statusLabel(st)
	b.WriteString(bold.Render(label))
	b.WriteString("\n")

	if s := st.CurrentSession; s != nil {
		fmt.Fprintf(&b, "%s  %s\n", s.File.Path, formatClock(s.Elapsed(snap.Now)))
	}

	if today := snap.Today; today != nil {
		fmt.Fprintf(&b, "Today: %s in %d sessions", formatSeconds(today.TotalTime), today.TotalSessions)
		if today.IsFallback {
			fmt.Fprintf(&b, " (showing %s)", today.SourceDate)
		}
		b.WriteString("\n")
		for i, f := range today.Files {
			if i == 5 {
				break
			}
			b.WriteString(fmt.Sprintf("  %-*s %8s %5.1f%%\n", nameWidth(width), truncate(f.Name, nameWidth(width)), formatSeconds(f.TotalTime), f.Percentage))
		}
	}

	if len(snap.Timeline) > 0 {
		last := snap.Timeline[0]
		fmt.Fprintf(&b, "Last session: %s, %s\n", last.FileName, relativeTime(time.UnixMilli(last.EndTime), snap.Now))
	}
	return b.String()
}

func nameWidth(width int) int {
	if width <= 0 {
		width = 80
	}
	return max(16, width-20)
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
