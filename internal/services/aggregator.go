package services

import (
	"path"
	"sort"
	"time"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/ports"
)

// StatisticsAggregator maintains the keyed statistics, the timeline and the
// daily summaries. It exclusively owns that state; readers get copies.
// Not safe for concurrent use.
type StatisticsAggregator struct {
	clock ports.Clock
	data  *domain.TrackerData
}

// NewStatisticsAggregator creates an aggregator over an empty document.
func NewStatisticsAggregator(clock ports.Clock) *StatisticsAggregator {
	return &StatisticsAggregator{clock: clock, data: domain.NewTrackerData()}
}

// RecordEntry folds one completed session into every aggregate. Each call
// counts as a new session. Only malformed entries are rejected.
func (a *StatisticsAggregator) RecordEntry(e domain.TimeEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	now := a.clock.Now()
	seconds := e.DurationSeconds()

	a.updateFile(e, seconds, now)
	a.updateFolder(e, seconds, now)
	a.updateTags(e, seconds, now)
	a.data.Timeline.Insert(e.Timeline())
	a.updateSummary(e, seconds, now)

	a.data.LastUpdated = domain.Millis(now)
	return nil
}

func (a *StatisticsAggregator) updateFile(e domain.TimeEntry, seconds float64, now time.Time) {
	fs, ok := a.data.Files[e.FilePath]
	if !ok {
		fs = &domain.FileTrackingStats{
			Path:          e.FilePath,
			Name:          e.FileName,
			Folder:        e.FolderPath,
			FirstAccessed: domain.Millis(now),
			Tags:          []string{},
		}
		a.data.Files[e.FilePath] = fs
	}
	fs.TotalTime = domain.RoundTenth(fs.TotalTime + seconds)
	fs.SessionCount++
	fs.LastAccessed = e.EndTime
	fs.AverageSessionTime = fs.TotalTime / float64(fs.SessionCount)
	for _, tag := range e.Tags {
		fs.Tags = appendUnique(fs.Tags, tag)
	}
}

func (a *StatisticsAggregator) updateFolder(e domain.TimeEntry, seconds float64, now time.Time) {
	fs, ok := a.data.Folders[e.FolderPath]
	if !ok {
		fs = &domain.FolderTrackingStats{
			Path:          e.FolderPath,
			Name:          folderName(e.FolderPath),
			FirstAccessed: domain.Millis(now),
			Files:         []string{},
		}
		a.data.Folders[e.FolderPath] = fs
	}
	fs.TotalTime = domain.RoundTenth(fs.TotalTime + seconds)
	fs.SessionCount++
	fs.LastAccessed = e.EndTime
	fs.AverageSessionTime = fs.TotalTime / float64(fs.SessionCount)
	fs.Files = appendUnique(fs.Files, e.FileName)
	fs.FileCount = len(fs.Files)
}

func (a *StatisticsAggregator) updateTags(e domain.TimeEntry, seconds float64, now time.Time) {
	for _, tag := range e.Tags {
		ts, ok := a.data.Tags[tag]
		if !ok {
			ts = &domain.TagTrackingStats{
				Name:          tag,
				FirstAccessed: domain.Millis(now),
				Files:         []string{},
				Folders:       []string{},
			}
			a.data.Tags[tag] = ts
		}
		ts.TotalTime = domain.RoundTenth(ts.TotalTime + seconds)
		ts.SessionCount++
		ts.LastAccessed = e.EndTime
		ts.AverageSessionTime = ts.TotalTime / float64(ts.SessionCount)
		ts.Files = appendUnique(ts.Files, e.FilePath)
		ts.Folders = appendUnique(ts.Folders, e.FolderPath)
		ts.FileCount = len(ts.Files)
		ts.FolderCount = len(ts.Folders)
	}
}

// updateSummary rolls the entry into the summary of its end date. Must run
// after the tag stats are updated: mostUsedTag compares cumulative totals.
func (a *StatisticsAggregator) updateSummary(e domain.TimeEntry, seconds float64, now time.Time) {
	end := e.End()
	key := domain.DateKey(end)
	s, ok := a.data.Summary[key]
	if !ok {
		s = &domain.DailySummary{Date: key}
		a.data.Summary[key] = s
	}
	s.TotalTimeSpent = domain.RoundTenth(s.TotalTimeSpent + seconds)
	s.TotalSessions++
	s.LastActiveFile = e.FilePath
	s.LastActiveFolder = e.FolderPath

	for _, tag := range e.Tags {
		candidate := a.data.Tags[tag]
		if candidate == nil {
			continue
		}
		best := a.data.Tags[s.MostUsedTag]
		if s.MostUsedTag == "" || best == nil || candidate.TotalTime > best.TotalTime {
			s.MostUsedTag = tag
		}
	}

	s.Categories = domain.AddShare(s.Categories, e.Category, seconds)
	s.Files = domain.AddShare(s.Files, e.FilePath, seconds)
	s.Folders = domain.AddShare(s.Folders, e.FolderPath, seconds)
	for _, tag := range e.Tags {
		s.Tags = domain.AddShare(s.Tags, tag, seconds)
	}

	from := domain.Millis(domain.DayStart(end))
	to := domain.Millis(domain.DayStart(end).AddDate(0, 0, 1))
	s.TotalFiles = countAccessed(a.data.Files, from, to, func(f *domain.FileTrackingStats) int64 { return f.LastAccessed })
	s.TotalFolders = countAccessed(a.data.Folders, from, to, func(f *domain.FolderTrackingStats) int64 { return f.LastAccessed })
	s.TotalTags = countAccessed(a.data.Tags, from, to, func(t *domain.TagTrackingStats) int64 { return t.LastAccessed })
	s.LastUpdated = domain.Millis(now)
}

// countAccessed counts the stats last accessed within [from, to).
func countAccessed[T any](stats map[string]*T, from, to int64, accessed func(*T) int64) int {
	n := 0
	for _, st := range stats {
		if at := accessed(st); at >= from && at < to {
			n++
		}
	}
	return n
}

// QueryPeriod returns the merged view of period as of ref. It only reads.
func (a *StatisticsAggregator) QueryPeriod(period domain.Period, ref time.Time) (*domain.AggregatedStats, error) {
	return NewQueryLayer(a).AggregatedStats(period, ref)
}

// Snapshot returns a deep copy of the aggregate document.
func (a *StatisticsAggregator) Snapshot() *domain.TrackerData {
	return a.data.Clone()
}

// Restore replaces the aggregate document with a copy of data.
func (a *StatisticsAggregator) Restore(data *domain.TrackerData) {
	if data == nil {
		a.data = domain.NewTrackerData()
		return
	}
	c := data.Clone()
	c.Normalize()
	a.data = c
}

// PruneSummaries deletes the daily summaries dated before the given key and
// returns how many were removed.
func (a *StatisticsAggregator) PruneSummaries(before string) int {
	n := 0
	for key := range a.data.Summary {
		if key < before {
			delete(a.data.Summary, key)
			n++
		}
	}
	if n > 0 {
		a.data.LastUpdated = domain.Millis(a.clock.Now())
	}
	return n
}

// SummaryDates returns the dates with a summary in ascending order.
func (a *StatisticsAggregator) SummaryDates() []string {
	keys := make([]string, 0, len(a.data.Summary))
	for k := range a.data.Summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summary returns a copy of the summary for date.
func (a *StatisticsAggregator) Summary(date string) (*domain.DailySummary, bool) {
	s, ok := a.data.Summary[date]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// File returns a copy of the stats of one file.
func (a *StatisticsAggregator) File(p string) (domain.FileTrackingStats, bool) {
	fs, ok := a.data.Files[p]
	if !ok {
		return domain.FileTrackingStats{}, false
	}
	c := *fs
	c.Tags = append([]string(nil), fs.Tags...)
	return c, true
}

// Folder returns a copy of the stats of one folder.
func (a *StatisticsAggregator) Folder(p string) (domain.FolderTrackingStats, bool) {
	fs, ok := a.data.Folders[p]
	if !ok {
		return domain.FolderTrackingStats{}, false
	}
	c := *fs
	c.Files = append([]string(nil), fs.Files...)
	return c, true
}

// Tag returns a copy of the stats of one tag.
func (a *StatisticsAggregator) Tag(name string) (domain.TagTrackingStats, bool) {
	ts, ok := a.data.Tags[name]
	if !ok {
		return domain.TagTrackingStats{}, false
	}
	c := *ts
	c.Files = append([]string(nil), ts.Files...)
	c.Folders = append([]string(nil), ts.Folders...)
	return c, true
}

// Timeline returns up to n timeline entries, most recent first.
func (a *StatisticsAggregator) Timeline(n int) []domain.TimelineEntry {
	return a.data.Timeline.Entries(n)
}

// totals returns name, total and session count of every keyed stat of a
// kind, ordered by first access then name so ties are deterministic.
func (a *StatisticsAggregator) totals(kind string) []domain.TimeShare {
	type row struct {
		share domain.TimeShare
		first int64
	}
	var rows []row
	switch kind {
	case "files":
		for k, v := range a.data.Files {
			rows = append(rows, row{domain.TimeShare{Name: k, TotalTime: v.TotalTime, SessionCount: v.SessionCount}, v.FirstAccessed})
		}
	case "folders":
		for k, v := range a.data.Folders {
			rows = append(rows, row{domain.TimeShare{Name: k, TotalTime: v.TotalTime, SessionCount: v.SessionCount}, v.FirstAccessed})
		}
	case "tags":
		for k, v := range a.data.Tags {
			rows = append(rows, row{domain.TimeShare{Name: k, TotalTime: v.TotalTime, SessionCount: v.SessionCount}, v.FirstAccessed})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].first != rows[j].first {
			return rows[i].first < rows[j].first
		}
		return rows[i].share.Name < rows[j].share.Name
	})
	out := make([]domain.TimeShare, len(rows))
	for i, r := range rows {
		out[i] = r.share
	}
	return out
}

func folderName(folder string) string {
	if folder == domain.RootFolder {
		return domain.RootFolder
	}
	return path.Base(folder)
}

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
