package services

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/testutil"
)

func seededQuery(t *testing.T) (*QueryLayer, time.Time) {
	t.Helper()
	clock := testutil.FixedClock()
	agg := NewStatisticsAggregator(clock)
	now := clock.Now()
	record := func(id, p string, tags []string, end time.Time, d time.Duration) {
		require.NoError(t, agg.RecordEntry(entryAt(t, id, p, tags, end, d)))
	}
	record("1", "work/plan.md", []string{"project"}, now, 30*time.Minute)
	record("2", "journal.md", nil, now.Add(time.Minute), 10*time.Minute)
	record("3", "work/plan.md", []string{"project"}, now.AddDate(0, 0, -3), 20*time.Minute)
	record("4", "ideas/x.md", []string{"idea"}, now.AddDate(0, 0, -20), time.Hour)
	record("5", "ideas/x.md", []string{"idea"}, now.AddDate(-1, 0, 0), time.Hour)
	return NewQueryLayer(agg), now
}

func TestQueryLayer_AggregatedStats(t *testing.T) {
	q, now := seededQuery(t)

	tests := []struct {
		period       domain.Period
		wantTotal    float64
		wantSessions int
		wantDays     int
	}{
		{domain.PeriodToday, 2400, 2, 1},
		{domain.PeriodWeek, 3600, 3, 2},
		{domain.PeriodMonth, 3600, 3, 2},
		{domain.PeriodAll, 10800, 5, 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			stats, err := q.AggregatedStats(tt.period, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, stats.TotalTime)
			assert.Equal(t, tt.wantSessions, stats.TotalSessions)
			assert.Equal(t, tt.wantDays, stats.ActiveDays)
			assert.False(t, stats.IsFallback)
		})
	}

	t.Run("week covers seven dates", func(t *testing.T) {
		stats, err := q.AggregatedStats(domain.PeriodWeek, now)
		require.NoError(t, err)
		assert.Len(t, stats.Dates, 7)
		assert.Len(t, stats.Daily, 7)
		assert.Equal(t, domain.DateKey(now), stats.Dates[6])
	})

	t.Run("breakdowns sorted with percentages", func(t *testing.T) {
		stats, err := q.AggregatedStats(domain.PeriodToday, now)
		require.NoError(t, err)
		require.Len(t, stats.Files, 2)
		assert.Equal(t, "work/plan.md", stats.Files[0].Name)
		assert.InDelta(t, 75.0, stats.Files[0].Percentage, 1e-9)
		assert.InDelta(t, 25.0, stats.Files[1].Percentage, 1e-9)
		assert.Equal(t, "project", stats.Categories[0].Name)
		assert.Equal(t, "project", stats.MostUsedTag)
		assert.Equal(t, "journal.md", stats.LastActive)
		assert.Equal(t, 2, stats.TotalFiles)
	})

	t.Run("invalid period", func(t *testing.T) {
		_, err := q.AggregatedStats("fortnight", now)
		assert.True(t, errors.Is(err, domain.ErrInvalidPeriod))
	})

	t.Run("results are copies", func(t *testing.T) {
		first, _ := q.AggregatedStats(domain.PeriodToday, now)
		first.Files[0].TotalTime = -1
		second, _ := q.AggregatedStats(domain.PeriodToday, now)
		assert.Equal(t, 1800.0, second.Files[0].TotalTime)
	})
}

func TestQueryLayer_TodayStats(t *testing.T) {
	q, now := seededQuery(t)

	t.Run("same day data", func(t *testing.T) {
		stats := q.TodayStats(now)
		assert.False(t, stats.IsFallback)
		assert.Equal(t, 2400.0, stats.TotalTime)
	})

	t.Run("falls back to latest summary", func(t *testing.T) {
		later := now.AddDate(0, 0, 2)
		stats := q.TodayStats(later)
		assert.True(t, stats.IsFallback)
		assert.Equal(t, domain.DateKey(now), stats.SourceDate)
		assert.Equal(t, 2400.0, stats.TotalTime)
	})

	t.Run("no data at all", func(t *testing.T) {
		empty := NewQueryLayer(NewStatisticsAggregator(testutil.FixedClock()))
		stats := empty.TodayStats(now)
		assert.False(t, stats.IsFallback)
		assert.Zero(t, stats.TotalTime)
		assert.Empty(t, stats.Files)
	})
}

func TestQueryLayer_Top(t *testing.T) {
	q, _ := seededQuery(t)

	files := q.TopFiles(0)
	require.Len(t, files, 3)
	assert.Equal(t, "ideas/x.md", files[0].Name)
	assert.Equal(t, 7200.0, files[0].TotalTime)
	assert.Equal(t, 2, files[0].SessionCount)

	assert.Len(t, q.TopFiles(1), 1)
	assert.Equal(t, "idea", q.TopTags(1)[0].Name)
	assert.Equal(t, "ideas", q.TopFolders(1)[0].Name)
}

func TestQueryLayer_StableTies(t *testing.T) {
	clock := testutil.FixedClock()
	agg := NewStatisticsAggregator(clock)
	now := clock.Now()
	for i, p := range []string{"c.md", "a.md", "b.md"} {
		require.NoError(t, agg.RecordEntry(entryAt(t, fmt.Sprint(i), p, nil, now.Add(time.Duration(i)*time.Minute), time.Minute)))
	}
	stats, err := NewQueryLayer(agg).AggregatedStats(domain.PeriodToday, now)
	require.NoError(t, err)
	names := []string{stats.Files[0].Name, stats.Files[1].Name, stats.Files[2].Name}
	assert.Equal(t, []string{"c.md", "a.md", "b.md"}, names, "ties keep insertion order")
}

func TestFilterBreakdown(t *testing.T) {
	items := []domain.BreakdownItem{
		{Name: "work/plan.md", TotalTime: 30},
		{Name: "journal.md", TotalTime: 20},
		{Name: "work/notes.md", TotalTime: 10},
	}

	got := FilterBreakdown(items, "work")
	require.Len(t, got, 2)
	assert.Equal(t, "work/plan.md", got[0].Name, "rank order is preserved")
	assert.Equal(t, "work/notes.md", got[1].Name)

	assert.Len(t, FilterBreakdown(items, ""), 3)
	assert.Empty(t, FilterBreakdown(items, "zzz"))
}

func TestQueryLayer_PercentageNormalization(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		clock := testutil.FixedClock()
		agg := NewStatisticsAggregator(clock)
		now := clock.Now()
		files := []string{"a.md", "b.md", "x/c.md", "y/d.md"}
		tags := []string{"work", "home"}

		n := rapid.IntRange(0, 40).Draw(rt, "entries")
		for i := 0; i < n; i++ {
			end := now.Add(-time.Duration(rapid.Int64Range(0, 10*86_400_000).Draw(rt, "ago")) * time.Millisecond)
			d := time.Duration(rapid.Int64Range(0, 3_600_000).Draw(rt, "duration")) * time.Millisecond
			et := rapid.SliceOfNDistinct(rapid.SampledFrom(tags), 0, 2, rapid.ID[string]).Draw(rt, "tags")
			e, err := domain.NewTimeEntry(fmt.Sprint(i), domain.NewFileRef(rapid.SampledFrom(files).Draw(rt, "file")), et, end.Add(-d), end, true)
			if err != nil {
				rt.Fatalf("entry: %v", err)
			}
			if err := agg.RecordEntry(e); err != nil {
				rt.Fatalf("record: %v", err)
			}
		}

		period := rapid.SampledFrom(domain.ValidPeriods).Draw(rt, "period")
		stats, err := NewQueryLayer(agg).AggregatedStats(period, now)
		if err != nil {
			rt.Fatalf("query: %v", err)
		}
		for name, items := range map[string][]domain.BreakdownItem{
			"categories": stats.Categories,
			"files":      stats.Files,
			"folders":    stats.Folders,
			"tags":       stats.Tags,
		} {
			var total, pct float64
			for i, it := range items {
				total += it.TotalTime
				pct += it.Percentage
				if i > 0 && items[i-1].TotalTime < it.TotalTime {
					rt.Fatalf("%s not sorted descending", name)
				}
			}
			if total > 0 && math.Abs(pct-100) > 0.1 {
				rt.Fatalf("%s percentages sum to %v", name, pct)
			}
			if total == 0 && pct != 0 {
				rt.Fatalf("%s percentages %v with zero total", name, pct)
			}
		}
	})
}
