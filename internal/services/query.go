package services

import (
	"sort"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/xvierd/notetime/internal/domain"
)

// QueryLayer builds read-only period views over the aggregator. Results
// never alias aggregator state.
type QueryLayer struct {
	agg *StatisticsAggregator
}

// NewQueryLayer creates a query layer reading from agg.
func NewQueryLayer(agg *StatisticsAggregator) *QueryLayer {
	return &QueryLayer{agg: agg}
}

// AggregatedStats merges the daily summaries of period as of ref.
func (q *QueryLayer) AggregatedStats(period domain.Period, ref time.Time) (*domain.AggregatedStats, error) {
	if _, err := domain.ParsePeriod(string(period)); err != nil {
		return nil, err
	}
	return q.merge(period, period.Dates(ref, q.agg.SummaryDates())), nil
}

// TodayStats returns the view for the day of ref. When that day has no data
// it falls back to the most recent summary and flags the result.
func (q *QueryLayer) TodayStats(ref time.Time) *domain.AggregatedStats {
	today := domain.DateKey(ref)
	if _, ok := q.agg.Summary(today); ok {
		return q.merge(domain.PeriodToday, []string{today})
	}
	dates := q.agg.SummaryDates()
	if len(dates) == 0 {
		return q.merge(domain.PeriodToday, []string{today})
	}
	latest := dates[len(dates)-1]
	stats := q.merge(domain.PeriodToday, []string{latest})
	stats.IsFallback = true
	stats.SourceDate = latest
	return stats
}

// Timeline returns up to limit entries, most recent first.
func (q *QueryLayer) Timeline(limit int) []domain.TimelineEntry {
	return q.agg.Timeline(limit)
}

// TopFiles ranks all-time file stats. n <= 0 returns all.
func (q *QueryLayer) TopFiles(n int) []domain.BreakdownItem {
	return top(q.agg.totals("files"), n)
}

// TopFolders ranks all-time folder stats. n <= 0 returns all.
func (q *QueryLayer) TopFolders(n int) []domain.BreakdownItem {
	return top(q.agg.totals("folders"), n)
}

// TopTags ranks all-time tag stats. n <= 0 returns all.
func (q *QueryLayer) TopTags(n int) []domain.BreakdownItem {
	return top(q.agg.totals("tags"), n)
}

func top(shares []domain.TimeShare, n int) []domain.BreakdownItem {
	items := breakdown(shares)
	if n > 0 && n < len(items) {
		items = items[:n]
	}
	return items
}

// FilterBreakdown keeps the items whose name fuzzy-matches query, in their
// original order. An empty query keeps everything.
func FilterBreakdown(items []domain.BreakdownItem, query string) []domain.BreakdownItem {
	if query == "" {
		return append([]domain.BreakdownItem(nil), items...)
	}
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	matches := fuzzy.Find(query, names)
	idx := make([]int, len(matches))
	for i, m := range matches {
		idx[i] = m.Index
	}
	sort.Ints(idx)
	out := make([]domain.BreakdownItem, 0, len(idx))
	for _, i := range idx {
		out = append(out, items[i])
	}
	return out
}

type shareAccumulator struct {
	order []string
	byKey map[string]*domain.TimeShare
}

func newShareAccumulator() *shareAccumulator {
	return &shareAccumulator{byKey: make(map[string]*domain.TimeShare)}
}

func (s *shareAccumulator) add(shares []domain.TimeShare) {
	for _, sh := range shares {
		cur, ok := s.byKey[sh.Name]
		if !ok {
			cur = &domain.TimeShare{Name: sh.Name}
			s.byKey[sh.Name] = cur
			s.order = append(s.order, sh.Name)
		}
		cur.TotalTime = domain.RoundTenth(cur.TotalTime + sh.TotalTime)
		cur.SessionCount += sh.SessionCount
	}
}

func (s *shareAccumulator) shares() []domain.TimeShare {
	out := make([]domain.TimeShare, len(s.order))
	for i, name := range s.order {
		out[i] = *s.byKey[name]
	}
	return out
}

func (q *QueryLayer) merge(period domain.Period, dates []string) *domain.AggregatedStats {
	stats := &domain.AggregatedStats{
		Period: period,
		Dates:  append([]string{}, dates...),
		Daily:  make([]domain.DailyTotal, 0, len(dates)),
	}
	categories := newShareAccumulator()
	files := newShareAccumulator()
	folders := newShareAccumulator()
	tags := newShareAccumulator()

	for _, date := range dates {
		s, ok := q.agg.Summary(date)
		if !ok {
			stats.Daily = append(stats.Daily, domain.DailyTotal{Date: date})
			continue
		}
		stats.ActiveDays++
		stats.TotalTime = domain.RoundTenth(stats.TotalTime + s.TotalTimeSpent)
		stats.TotalSessions += s.TotalSessions
		stats.LastActive = s.LastActiveFile
		stats.Daily = append(stats.Daily, domain.DailyTotal{Date: date, TotalTime: s.TotalTimeSpent, Sessions: s.TotalSessions})
		categories.add(s.Categories)
		files.add(s.Files)
		folders.add(s.Folders)
		tags.add(s.Tags)
	}

	stats.Categories = breakdown(categories.shares())
	stats.Files = breakdown(files.shares())
	stats.Folders = breakdown(folders.shares())
	stats.Tags = breakdown(tags.shares())
	stats.TotalFiles = len(stats.Files)
	stats.TotalFolders = len(stats.Folders)
	stats.TotalTags = len(stats.Tags)
	if len(stats.Tags) > 0 {
		stats.MostUsedTag = stats.Tags[0].Name
	}
	return stats
}

// breakdown sorts shares by total time, descending and stable, and sets
// each percentage against the sum of the list. All percentages are zero
// when the sum is zero.
func breakdown(shares []domain.TimeShare) []domain.BreakdownItem {
	items := make([]domain.BreakdownItem, len(shares))
	var total float64
	for i, sh := range shares {
		items[i] = domain.BreakdownItem{Name: sh.Name, TotalTime: sh.TotalTime, SessionCount: sh.SessionCount}
		total += sh.TotalTime
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].TotalTime > items[j].TotalTime
	})
	if total > 0 {
		for i := range items {
			items[i].Percentage = items[i].TotalTime / total * 100
		}
	}
	return items
}
