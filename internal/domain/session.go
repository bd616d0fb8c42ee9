package domain

import "time"

// TrackingSession is the live, mutable record of the file currently being
// tracked. At most one exists at a time and it is owned by TrackingState.
type TrackingSession struct {
	ID             string     `json:"id"`
	StartTime      time.Time  `json:"startTime"`
	File           FileRef    `json:"file"`
	Tags           []string   `json:"tags"`
	IsActive       bool       `json:"isActive"`
	LastActiveTime time.Time  `json:"lastActiveTime"`
	PausedAt       *time.Time `json:"pausedAt,omitempty"`
}

// NewTrackingSession starts an active session for file at now.
func NewTrackingSession(id string, file FileRef, tags []string, now time.Time) *TrackingSession {
	return &TrackingSession{
		ID:             id,
		StartTime:      now,
		File:           file,
		Tags:           dedupe(tags),
		IsActive:       true,
		LastActiveTime: now,
	}
}

// Pause marks the session inactive. Time stops accruing at now.
func (s *TrackingSession) Pause(now time.Time) {
	if !s.IsActive {
		return
	}
	s.IsActive = false
	s.PausedAt = &now
}

// Resume reactivates a paused session. StartTime moves forward by the
// paused interval so paused time never counts toward the entry.
func (s *TrackingSession) Resume(now time.Time) {
	if s.IsActive || s.PausedAt == nil {
		return
	}
	if paused := now.Sub(*s.PausedAt); paused > 0 {
		s.StartTime = s.StartTime.Add(paused)
	}
	s.PausedAt = nil
	s.IsActive = true
	s.LastActiveTime = now
}

// Touch records user activity in the session.
func (s *TrackingSession) Touch(now time.Time) {
	if s.IsActive {
		s.LastActiveTime = now
	}
}

// SetTags replaces the session tags.
func (s *TrackingSession) SetTags(tags []string) {
	s.Tags = dedupe(tags)
}

// EndTime is the instant the session stops counting if it ends at now.
func (s *TrackingSession) EndTime(now time.Time) time.Time {
	if s.PausedAt != nil {
		return *s.PausedAt
	}
	return now
}

// Elapsed returns the counted time as of now.
func (s *TrackingSession) Elapsed(now time.Time) time.Duration {
	d := s.EndTime(now).Sub(s.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// End converts the session into its immutable TimeEntry.
func (s *TrackingSession) End(now time.Time) (TimeEntry, error) {
	end := s.EndTime(now)
	if end.Before(s.StartTime) {
		end = s.StartTime
	}
	return NewTimeEntry(s.ID, s.File, s.Tags, s.StartTime, end, s.IsActive)
}

// Clone returns a deep copy.
func (s *TrackingSession) Clone() *TrackingSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Tags = append([]string(nil), s.Tags...)
	if s.PausedAt != nil {
		p := *s.PausedAt
		c.PausedAt = &p
	}
	return &c
}
