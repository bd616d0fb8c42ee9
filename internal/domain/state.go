package domain

import "time"

// PauseReason explains why tracking is paused.
type PauseReason string

const (
	PauseIdle    PauseReason = "idle"
	PauseAppBlur PauseReason = "app_blur"
	PauseManual  PauseReason = "manual"
)

// TrackerStatus is the coarse state of the tracker state machine.
type TrackerStatus string

const (
	StatusStopped  TrackerStatus = "stopped"
	StatusTracking TrackerStatus = "tracking"
	StatusPaused   TrackerStatus = "paused"
)

// TrackingState is the process-wide tracking state. CurrentSession is only
// set while IsTracking is true.
type TrackingState struct {
	IsTracking     bool
	IsPaused       bool
	PauseReason    PauseReason
	CurrentSession *TrackingSession
	LastActiveTime time.Time
}

// Status returns the state machine state.
func (s *TrackingState) Status() TrackerStatus {
	switch {
	case !s.IsTracking:
		return StatusStopped
	case s.IsPaused:
		return StatusPaused
	default:
		return StatusTracking
	}
}

// IsActive reports whether time is currently being counted.
func (s *TrackingState) IsActive() bool {
	return s.IsTracking && !s.IsPaused
}

// Clone returns a deep copy safe to hand to readers.
func (s *TrackingState) Clone() TrackingState {
	c := *s
	c.CurrentSession = s.CurrentSession.Clone()
	return c
}

// GetStatusLabel returns a human-readable label for the tracker status.
func GetStatusLabel(s TrackerStatus) string {
	switch s {
	case StatusStopped:
		return "Stopped"
	case StatusTracking:
		return "Tracking"
	case StatusPaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// GetPauseReasonLabel returns a human-readable label for a pause reason.
func GetPauseReasonLabel(r PauseReason) string {
	switch r {
	case PauseIdle:
		return "Idle"
	case PauseAppBlur:
		return "App in background"
	case PauseManual:
		return "Paused manually"
	default:
		return ""
	}
}
