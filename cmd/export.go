package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/export"
)

var (
	exportFormat string
	exportKind   string
	exportPeriod string
	exportOutput string
	keepDays     int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export tracker data",
	Long: `Export tracker data.

  --format json   the full aggregate document, or every entry with --kind entries
  --format csv    one table: files, folders, tags, timeline or entries (--kind)
  --format md     a Markdown report for --period`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			bw := bufio.NewWriter(f)
			if err := runExport(cmd.Context(), bw); err != nil {
				return err
			}
			return bw.Flush()
		}
		return runExport(cmd.Context(), w)
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace tracker data with a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()

		data, err := export.ReadJSON(f)
		if err != nil {
			return err
		}
		if err := app.tracking.Import(cmd.Context(), data); err != nil {
			return fmt.Errorf("failed to import: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d files, %d folders, %d tags, %d days.\n",
			len(data.Files), len(data.Folders), len(data.Tags), len(data.Summary))
		return nil
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete daily summaries older than --keep-days",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := app.tracking.Cleanup(cmd.Context(), keepDays)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]int{"removed": n})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d daily summaries.\n", n)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json, csv or md")
	exportCmd.Flags().StringVar(&exportKind, "kind", string(export.KindFiles), "CSV rows: files, folders, tags, timeline or entries")
	exportCmd.Flags().StringVar(&exportPeriod, "period", string(domain.PeriodWeek), "Markdown report period")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")
	cleanupCmd.Flags().IntVar(&keepDays, "keep-days", 90, "Number of days of summaries to keep")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(cleanupCmd)
}

func runExport(ctx context.Context, w io.Writer) error {
	switch exportFormat {
	case "json":
		if exportKind == string(export.KindEntries) {
			entries, err := app.tracking.ExportEntries(ctx)
			if err != nil {
				return err
			}
			return export.WriteEntriesJSON(w, entries)
		}
		return export.WriteJSON(w, app.tracking.ExportSnapshot())

	case "csv":
		kind, err := export.ParseKind(exportKind)
		if err != nil {
			return err
		}
		var entries []domain.TimeEntry
		if kind == export.KindEntries {
			if entries, err = app.tracking.ExportEntries(ctx); err != nil {
				return err
			}
		}
		return export.WriteCSV(w, kind, app.tracking.ExportSnapshot(), entries)

	case "md", "markdown":
		period, err := domain.ParsePeriod(exportPeriod)
		if err != nil {
			return err
		}
		now := app.clock.Now()
		stats, err := app.tracking.AggregatedStats(ctx, period, now)
		if err != nil {
			return err
		}
		return export.WriteMarkdown(w, stats, now)

	default:
		return fmt.Errorf("unknown export format %q: must be json, csv or md", exportFormat)
	}
}
