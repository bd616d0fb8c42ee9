package domain

import "encoding/json"

// DefaultTimelineLimit caps the number of timeline entries kept.
const DefaultTimelineLimit = 1000

// Timeline is a bounded list of session projections, most recent first by
// StartTime. Entries are held oldest-first so inserting the newest entry is
// an append; JSON uses most-recent-first order.
type Timeline struct {
	limit int
	items []TimelineEntry
}

// NewTimeline returns an empty timeline holding at most limit entries.
func NewTimeline(limit int) *Timeline {
	if limit <= 0 {
		limit = DefaultTimelineLimit
	}
	return &Timeline{limit: limit}
}

// Insert adds e at its position by StartTime and drops the oldest entries
// beyond the limit.
func (t *Timeline) Insert(e TimelineEntry) {
	i := len(t.items)
	for i > 0 && t.items[i-1].StartTime > e.StartTime {
		i--
	}
	if i == len(t.items) {
		t.items = append(t.items, e)
	} else {
		t.items = append(t.items, TimelineEntry{})
		copy(t.items[i+1:], t.items[i:])
		t.items[i] = e
	}
	if over := len(t.items) - t.limit; over > 0 {
		t.items = t.items[over:]
		if cap(t.items) > 2*t.limit {
			t.items = append(make([]TimelineEntry, 0, t.limit+1), t.items...)
		}
	}
}

// Len returns the number of entries.
func (t *Timeline) Len() int { return len(t.items) }

// Limit returns the capacity bound.
func (t *Timeline) Limit() int { return t.limit }

// Entries returns up to n entries, most recent first. n <= 0 means all.
func (t *Timeline) Entries(n int) []TimelineEntry {
	if n <= 0 || n > len(t.items) {
		n = len(t.items)
	}
	out := make([]TimelineEntry, 0, n)
	for i := len(t.items) - 1; i >= 0 && len(out) < n; i-- {
		e := t.items[i]
		e.Tags = append([]string(nil), e.Tags...)
		out = append(out, e)
	}
	return out
}

// Clone returns a deep copy.
func (t *Timeline) Clone() *Timeline {
	c := &Timeline{limit: t.limit, items: make([]TimelineEntry, len(t.items))}
	for i, e := range t.items {
		e.Tags = append([]string(nil), e.Tags...)
		c.items[i] = e
	}
	return c
}

// MarshalJSON encodes the entries most recent first.
func (t *Timeline) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Entries(0))
}

// UnmarshalJSON decodes a most-recent-first list, restoring order and the
// limit even when the stored list is unsorted or too long.
func (t *Timeline) UnmarshalJSON(data []byte) error {
	var entries []TimelineEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	if t.limit <= 0 {
		t.limit = DefaultTimelineLimit
	}
	t.items = nil
	for i := len(entries) - 1; i >= 0; i-- {
		t.Insert(entries[i])
	}
	return nil
}
