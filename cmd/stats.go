package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/xvierd/notetime/internal/adapters/tui"
	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/export"
	"github.com/xvierd/notetime/internal/services"
)

var (
	statsPeriod   string
	statsFilter   string
	timelineLimit int
	topN          int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregated statistics for a period",
	Long:  `Show tracked time for a period, broken down by category, file, folder and tag. --filter fuzzy-matches breakdown names.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		period, err := domain.ParsePeriod(statsPeriod)
		if err != nil {
			return err
		}
		stats, err := app.tracking.AggregatedStats(cmd.Context(), period, app.clock.Now())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}
		if statsFilter != "" {
			stats.Categories = services.FilterBreakdown(stats.Categories, statsFilter)
			stats.Files = services.FilterBreakdown(stats.Files, statsFilter)
			stats.Folders = services.FilterBreakdown(stats.Folders, statsFilter)
			stats.Tags = services.FilterBreakdown(stats.Tags, statsFilter)
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, stats)
		}
		renderStats(out, stats, terminalWidth())
		return nil
	},
}

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's totals",
	Long:  `Show today's tracked time. When nothing was tracked today the most recent day with data is shown instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := snapshot(cmd.Context(), app.tracking, 1)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, snap.Today)
		}
		fmt.Fprint(out, tui.RenderStatus(snap, terminalWidth()))
		return nil
	},
}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := app.tracking.Timeline(cmd.Context(), timelineLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			if entries == nil {
				entries = []domain.TimelineEntry{}
			}
			return printJSON(out, entries)
		}
		renderTimeline(out, entries, app.clock.Now())
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVarP(&statsPeriod, "period", "p", string(domain.PeriodWeek), "Time period: today, week, month, year or all")
	statsCmd.Flags().StringVarP(&statsFilter, "filter", "f", "", "Fuzzy filter for breakdown names")
	timelineCmd.Flags().IntVarP(&timelineLimit, "limit", "n", 20, "Maximum number of sessions")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(todayCmd)
	rootCmd.AddCommand(timelineCmd)
	rootCmd.AddCommand(newTopCmd("files", "Rank files by total time", func(n int) []domain.BreakdownItem {
		return app.tracking.Query().TopFiles(n)
	}))
	rootCmd.AddCommand(newTopCmd("folders", "Rank folders by total time", func(n int) []domain.BreakdownItem {
		return app.tracking.Query().TopFolders(n)
	}))
	rootCmd.AddCommand(newTopCmd("tags", "Rank tags by total time", func(n int) []domain.BreakdownItem {
		return app.tracking.Query().TopTags(n)
	}))
}

// newTopCmd builds one of the all-time ranking commands.
func newTopCmd(use, short string, top func(n int) []domain.BreakdownItem) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			items := top(topN)
			out := cmd.OutOrStdout()
			if jsonOutput {
				if items == nil {
					items = []domain.BreakdownItem{}
				}
				return printJSON(out, items)
			}
			renderBreakdown(out, strings.ToUpper(use[:1])+use[1:], items, terminalWidth())
			return nil
		},
	}
	c.Flags().IntVarP(&topN, "top", "t", 10, "Number of entries, 0 for all")
	return c
}

func renderStats(w io.Writer, stats *domain.AggregatedStats, width int) {
	fmt.Fprintln(w, titleStyle.Render(stats.Period.Label()))
	row := func(label, value string) {
		fmt.Fprintf(w, "  %-12s %s\n", label, value)
	}
	row("Total", valueStyle.Render(export.FormatSeconds(stats.TotalTime)))
	row("Sessions", valueStyle.Render(fmt.Sprint(stats.TotalSessions)))
	row("Active days", valueStyle.Render(fmt.Sprint(stats.ActiveDays)))
	if stats.MostUsedTag != "" {
		row("Top tag", "#"+stats.MostUsedTag)
	}
	if stats.LastActive != "" {
		row("Last file", stats.LastActive)
	}
	fmt.Fprintln(w)

	renderBreakdown(w, "Categories", stats.Categories, width)
	fmt.Fprintln(w)
	renderBreakdown(w, "Files", stats.Files, width)
	fmt.Fprintln(w)
	renderBreakdown(w, "Folders", stats.Folders, width)
	fmt.Fprintln(w)
	renderBreakdown(w, "Tags", stats.Tags, width)
}

func renderTimeline(w io.Writer, entries []domain.TimelineEntry, now time.Time) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No sessions recorded yet.")
		return
	}
	for _, e := range entries {
		start := time.UnixMilli(e.StartTime)
		line := fmt.Sprintf("%s  %8s  %s", start.Format("2006-01-02 15:04"), export.FormatSeconds(e.Duration), e.FilePath)
		if len(e.Tags) > 0 {
			line += "  #" + strings.Join(e.Tags, " #")
		}
		fmt.Fprintf(w, "%s  %s\n", line, dimStyle.Render(humanize.RelTime(start, now, "ago", "from now")))
	}
}
