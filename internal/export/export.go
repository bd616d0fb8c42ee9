// Package export writes tracker data and time entries as JSON, CSV and
// Markdown, and reads JSON exports back for import.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/xvierd/notetime/internal/domain"
)

// Kind selects the rows of a CSV export.
type Kind string

const (
	KindFiles    Kind = "files"
	KindFolders  Kind = "folders"
	KindTags     Kind = "tags"
	KindTimeline Kind = "timeline"
	KindEntries  Kind = "entries"
)

// Kinds lists every CSV kind.
var Kinds = []Kind{KindFiles, KindFolders, KindTags, KindTimeline, KindEntries}

// ParseKind validates a CSV kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownExportKind, s)
}

// WriteJSON writes the full aggregate document.
func WriteJSON(w io.Writer, data *domain.TrackerData) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode tracker data: %w", err)
	}
	return nil
}

// ReadJSON reads a document written by WriteJSON.
func ReadJSON(r io.Reader) (*domain.TrackerData, error) {
	var data domain.TrackerData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode tracker data: %v: %w", err, domain.ErrCorruptData)
	}
	data.Normalize()
	return &data, nil
}

// WriteEntriesJSON writes entries as a JSON array.
func WriteEntriesJSON(w io.Writer, entries []domain.TimeEntry) error {
	if entries == nil {
		entries = []domain.TimeEntry{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("failed to encode entries: %w", err)
	}
	return nil
}

// WriteCSV writes one kind of rows with a header line. Keyed stats are
// ordered by total time, descending, then by key.
func WriteCSV(w io.Writer, kind Kind, data *domain.TrackerData, entries []domain.TimeEntry) error {
	cw := csv.NewWriter(w)

	var rows [][]string
	switch kind {
	case KindFiles:
		rows = append(rows, []string{"path", "name", "folder", "total_time", "session_count", "average_session_time", "first_accessed", "last_accessed", "tags"})
		for _, k := range sortedKeys(data.Files, func(s *domain.FileTrackingStats) float64 { return s.TotalTime }) {
			s := data.Files[k]
			rows = append(rows, []string{
				s.Path, s.Name, s.Folder,
				formatFloat(s.TotalTime), strconv.Itoa(s.SessionCount), formatFloat(s.AverageSessionTime),
				formatInt(s.FirstAccessed), formatInt(s.LastAccessed),
				strings.Join(s.Tags, ";"),
			})
		}
	case KindFolders:
		rows = append(rows, []string{"path", "name", "total_time", "session_count", "average_session_time", "file_count", "first_accessed", "last_accessed"})
		for _, k := range sortedKeys(data.Folders, func(s *domain.FolderTrackingStats) float64 { return s.TotalTime }) {
			s := data.Folders[k]
			rows = append(rows, []string{
				s.Path, s.Name,
				formatFloat(s.TotalTime), strconv.Itoa(s.SessionCount), formatFloat(s.AverageSessionTime),
				strconv.Itoa(s.FileCount),
				formatInt(s.FirstAccessed), formatInt(s.LastAccessed),
			})
		}
	case KindTags:
		rows = append(rows, []string{"name", "total_time", "session_count", "average_session_time", "file_count", "folder_count", "first_accessed", "last_accessed"})
		for _, k := range sortedKeys(data.Tags, func(s *domain.TagTrackingStats) float64 { return s.TotalTime }) {
			s := data.Tags[k]
			rows = append(rows, []string{
				s.Name,
				formatFloat(s.TotalTime), strconv.Itoa(s.SessionCount), formatFloat(s.AverageSessionTime),
				strconv.Itoa(s.FileCount), strconv.Itoa(s.FolderCount),
				formatInt(s.FirstAccessed), formatInt(s.LastAccessed),
			})
		}
	case KindTimeline:
		rows = append(rows, []string{"id", "start_time", "end_time", "duration", "file_path", "file_name", "folder_path", "category", "tags"})
		if data.Timeline != nil {
			for _, e := range data.Timeline.Entries(0) {
				rows = append(rows, []string{
					e.ID, formatInt(e.StartTime), formatInt(e.EndTime), formatFloat(e.Duration),
					e.FilePath, e.FileName, e.FolderPath, e.Category, strings.Join(e.Tags, ";"),
				})
			}
		}
	case KindEntries:
		rows = append(rows, []string{"id", "start_time", "end_time", "duration_ms", "file_path", "file_name", "folder_path", "category", "tags", "is_active"})
		for _, e := range entries {
			rows = append(rows, []string{
				e.ID, formatInt(e.StartTime), formatInt(e.EndTime), formatInt(e.Duration),
				e.FilePath, e.FileName, e.FolderPath, e.Category, strings.Join(e.Tags, ";"),
				strconv.FormatBool(e.IsActive),
			})
		}
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownExportKind, kind)
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V, total func(V) float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ti, tj := total(m[keys[i]]), total(m[keys[j]])
		if ti != tj {
			return ti > tj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
