package domain

import (
	"fmt"
	"time"
)

// ActivityEventType names a signal delivered by the host application.
type ActivityEventType string

const (
	EventActiveFileChanged ActivityEventType = "active_file_changed"
	EventFileModified      ActivityEventType = "file_modified"
	EventAppFocus          ActivityEventType = "app_focus"
	EventAppBlur           ActivityEventType = "app_blur"
	EventUserInput         ActivityEventType = "user_input"
	EventTabClosed         ActivityEventType = "tab_closed"
)

// ValidEventTypes lists every activity event the tracker understands.
var ValidEventTypes = []ActivityEventType{
	EventActiveFileChanged,
	EventFileModified,
	EventAppFocus,
	EventAppBlur,
	EventUserInput,
	EventTabClosed,
}

// ActivityEvent is one signal from the host. Path is empty for events that
// do not concern a file, and for active_file_changed when no file has focus.
// At is the host's timestamp and is informational only: the tracker times
// every event by its own clock on arrival.
type ActivityEvent struct {
	Type ActivityEventType `json:"type"`
	Path string            `json:"path,omitempty"`
	At   time.Time         `json:"at,omitempty"`
}

// Validate checks the event type.
func (e ActivityEvent) Validate() error {
	for _, t := range ValidEventTypes {
		if e.Type == t {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
}

// TrackerEventKind names a side effect of the tracker state machine.
type TrackerEventKind string

const (
	TrackingStarted TrackerEventKind = "tracking_started"
	TrackingStopped TrackerEventKind = "tracking_stopped"
	SessionStarted  TrackerEventKind = "session_started"
	SessionEnded    TrackerEventKind = "session_ended"
	TrackingPaused  TrackerEventKind = "paused"
	TrackingResumed TrackerEventKind = "resumed"
)

// TrackerEvent is published for every state machine side effect. Session is
// a copy of the affected session; Entry is set for SessionEnded; Reason is
// set for TrackingPaused.
type TrackerEvent struct {
	Kind    TrackerEventKind `json:"kind"`
	At      time.Time        `json:"at"`
	Session *TrackingSession `json:"session,omitempty"`
	Entry   *TimeEntry       `json:"entry,omitempty"`
	Reason  PauseReason      `json:"reason,omitempty"`
}
