package domain

import (
	"fmt"
	"math"
	"path"
	"strings"
	"time"
)

// UncategorizedCategory is the category of entries with no tag and no folder.
const UncategorizedCategory = "uncategorized"

// RootFolder is the folder path of files that sit at the vault root.
const RootFolder = "/"

// TimeEntry is the immutable record of one completed tracking session.
// Instants are milliseconds since the Unix epoch. StartTime is moved forward
// by any paused time, so after a pause it is later than the moment the
// session began and Duration counts active time only.
type TimeEntry struct {
	ID         string   `json:"id"`
	StartTime  int64    `json:"startTime"`
	EndTime    int64    `json:"endTime"`
	Duration   int64    `json:"duration"`
	FilePath   string   `json:"filePath"`
	FileName   string   `json:"fileName"`
	FolderPath string   `json:"folderPath"`
	Tags       []string `json:"tags"`
	Category   string   `json:"category"`
	IsActive   bool     `json:"isActive"`
}

// NewTimeEntry builds a validated entry for the given file and interval.
// The category is derived once, here, from the tags and folder.
func NewTimeEntry(id string, file FileRef, tags []string, start, end time.Time, active bool) (TimeEntry, error) {
	e := TimeEntry{
		ID:         id,
		StartTime:  Millis(start),
		EndTime:    Millis(end),
		FilePath:   file.Path,
		FileName:   file.Name,
		FolderPath: file.Folder,
		Tags:       dedupe(tags),
		IsActive:   active,
	}
	e.Duration = e.EndTime - e.StartTime
	e.Category = DetermineCategory(e.Tags, e.FolderPath)
	if err := e.Validate(); err != nil {
		return TimeEntry{}, err
	}
	return e, nil
}

// Validate reports programmer misuse: negative or inconsistent durations and
// entries without a file.
func (e TimeEntry) Validate() error {
	if e.FilePath == "" {
		return fmt.Errorf("validation: %w: empty file path", ErrInvalidEntry)
	}
	if e.EndTime < e.StartTime {
		return fmt.Errorf("validation: %w: end %d before start %d", ErrInvalidEntry, e.EndTime, e.StartTime)
	}
	if e.Duration < 0 || e.Duration != e.EndTime-e.StartTime {
		return fmt.Errorf("validation: %w: duration %d does not match interval", ErrInvalidEntry, e.Duration)
	}
	return nil
}

// Start returns the start instant.
func (e TimeEntry) Start() time.Time { return FromMillis(e.StartTime) }

// End returns the end instant.
func (e TimeEntry) End() time.Time { return FromMillis(e.EndTime) }

// DurationSeconds converts the millisecond duration to seconds rounded to
// one decimal place, the unit used by every aggregate.
func (e TimeEntry) DurationSeconds() float64 {
	return RoundSeconds(e.Duration)
}

// Clone returns a copy that shares no slices with e.
func (e TimeEntry) Clone() TimeEntry {
	e.Tags = append([]string(nil), e.Tags...)
	return e
}

// TimelineEntry is the lightweight projection of a TimeEntry kept in the
// bounded timeline.
type TimelineEntry struct {
	ID         string   `json:"id"`
	StartTime  int64    `json:"startTime"`
	EndTime    int64    `json:"endTime"`
	Duration   float64  `json:"duration"`
	FilePath   string   `json:"filePath"`
	FileName   string   `json:"fileName"`
	FolderPath string   `json:"folderPath"`
	Tags       []string `json:"tags"`
	Category   string   `json:"category"`
}

// Timeline projects the entry for the timeline. Duration is in seconds.
func (e TimeEntry) Timeline() TimelineEntry {
	return TimelineEntry{
		ID:         e.ID,
		StartTime:  e.StartTime,
		EndTime:    e.EndTime,
		Duration:   e.DurationSeconds(),
		FilePath:   e.FilePath,
		FileName:   e.FileName,
		FolderPath: e.FolderPath,
		Tags:       append([]string(nil), e.Tags...),
		Category:   e.Category,
	}
}

// DetermineCategory returns the first tag, else the leaf name of a non-root
// folder, else UncategorizedCategory.
func DetermineCategory(tags []string, folderPath string) string {
	if len(tags) > 0 && tags[0] != "" {
		return tags[0]
	}
	folder := strings.Trim(folderPath, "/")
	if folder == "" || folder == "." {
		return UncategorizedCategory
	}
	return path.Base(folder)
}

// FileRef identifies a vault file. Paths are slash separated and relative to
// the vault root.
type FileRef struct {
	Path   string `json:"path"`
	Name   string `json:"name"`
	Folder string `json:"folder"`
}

// NewFileRef derives the name and folder of a vault-relative path. Files at
// the root get RootFolder.
func NewFileRef(p string) FileRef {
	p = strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	folder := path.Dir(p)
	if folder == "." || folder == "" {
		folder = RootFolder
	}
	return FileRef{Path: p, Name: path.Base(p), Folder: folder}
}

// IsZero reports whether the reference names no file.
func (f FileRef) IsZero() bool { return f.Path == "" }

// Millis converts an instant to milliseconds since the epoch.
func Millis(t time.Time) int64 { return t.UnixMilli() }

// FromMillis converts milliseconds since the epoch to a local instant.
func FromMillis(ms int64) time.Time { return time.UnixMilli(ms) }

// RoundSeconds converts milliseconds to seconds with one decimal place.
func RoundSeconds(ms int64) float64 {
	return math.Round(float64(ms)/100) / 10
}

func dedupe(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = appendUnique(out, v)
	}
	return out
}

// appendUnique appends v when it is non-empty and not already present.
func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
