package domain

import (
	"fmt"
	"sort"
	"time"
)

// DateKeyLayout formats calendar date keys.
const DateKeyLayout = "2006-01-02"

// Period selects the calendar dates a query covers.
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
	PeriodAll   Period = "all"
)

// ValidPeriods lists all supported period values.
var ValidPeriods = []Period{PeriodToday, PeriodWeek, PeriodMonth, PeriodYear, PeriodAll}

// ParsePeriod checks if a string is a valid period.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	for _, valid := range ValidPeriods {
		if p == valid {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w %q: must be one of today, week, month, year, all", ErrInvalidPeriod, s)
}

// Label returns a human-readable label.
func (p Period) Label() string {
	switch p {
	case PeriodToday:
		return "Today"
	case PeriodWeek:
		return "Last 7 days"
	case PeriodMonth:
		return "This month"
	case PeriodYear:
		return "This year"
	case PeriodAll:
		return "All time"
	default:
		return "Unknown"
	}
}

// DateKey returns the local calendar date key of t.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// DayStart returns local midnight of the day containing t.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ParseDateKey parses a key produced by DateKey in the location of ref.
func ParseDateKey(key string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateKeyLayout, key, loc)
}

// Dates resolves the ascending date keys belonging to p as of ref. For
// PeriodAll the keys are taken from available.
func (p Period) Dates(ref time.Time, available []string) []string {
	day := DayStart(ref)
	var first time.Time
	switch p {
	case PeriodToday:
		first = day
	case PeriodWeek:
		first = day.AddDate(0, 0, -6)
	case PeriodMonth:
		first = time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
	case PeriodYear:
		first = time.Date(day.Year(), time.January, 1, 0, 0, 0, 0, day.Location())
	case PeriodAll:
		keys := append([]string(nil), available...)
		sort.Strings(keys)
		return keys
	default:
		return nil
	}
	var keys []string
	for d := first; !d.After(day); d = d.AddDate(0, 0, 1) {
		keys = append(keys, DateKey(d))
	}
	return keys
}
