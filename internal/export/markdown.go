package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xvierd/notetime/internal/domain"
)

// WriteMarkdown writes a period report.
func WriteMarkdown(w io.Writer, stats *domain.AggregatedStats, generated time.Time) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# notetime report: %s\n\n", stats.Period)
	fmt.Fprintf(&b, "Generated: %s\n\n", generated.Format("2006-01-02 15:04"))
	if stats.IsFallback {
		fmt.Fprintf(&b, "No activity today; showing %s.\n\n", stats.SourceDate)
	}

	fmt.Fprintf(&b, "- Total time: %s\n", FormatSeconds(stats.TotalTime))
	fmt.Fprintf(&b, "- Sessions: %d\n", stats.TotalSessions)
	fmt.Fprintf(&b, "- Active days: %d\n", stats.ActiveDays)
	fmt.Fprintf(&b, "- Files: %d, folders: %d, tags: %d\n", stats.TotalFiles, stats.TotalFolders, stats.TotalTags)
	if stats.MostUsedTag != "" {
		fmt.Fprintf(&b, "- Most used tag: #%s\n", stats.MostUsedTag)
	}
	if stats.LastActive != "" {
		fmt.Fprintf(&b, "- Last active: %s\n", stats.LastActive)
	}

	writeSection(&b, "Categories", stats.Categories)
	writeSection(&b, "Files", stats.Files)
	writeSection(&b, "Folders", stats.Folders)
	writeSection(&b, "Tags", stats.Tags)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeSection(b *strings.Builder, title string, items []domain.BreakdownItem) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	b.WriteString("| Name | Time | Sessions | Share |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, it := range items {
		fmt.Fprintf(b, "| %s | %s | %d | %.1f%% |\n",
			strings.ReplaceAll(it.Name, "|", `\|`), FormatSeconds(it.TotalTime), it.SessionCount, it.Percentage)
	}
}

// FormatSeconds renders seconds as "1h 5m", "5m 3s" or "42s".
func FormatSeconds(sec float64) string {
	d := time.Duration(sec * float64(time.Second)).Round(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
