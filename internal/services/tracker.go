package services

import (
	"path"
	"strings"
	"time"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/logging"
	"github.com/xvierd/notetime/internal/ports"
)

// TrackerConfig holds the tunables of the session state machine.
type TrackerConfig struct {
	// IdleThreshold is how long without input before tracking pauses.
	IdleThreshold time.Duration
	// TrackInactiveTime keeps counting while the host app is in the
	// background.
	TrackInactiveTime bool
	// InputDebounce is the minimum gap between idle timer rearms caused by
	// input.
	InputDebounce time.Duration
	// Extensions lists trackable file extensions. Empty means all files.
	Extensions []string
	// Ignore lists glob patterns of paths never tracked.
	Ignore []string
}

// DefaultTrackerConfig returns the defaults used when no config is loaded.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		IdleThreshold: 5 * time.Minute,
		InputDebounce: time.Second,
		Extensions:    []string{".md"},
		Ignore:        []string{"*.tmp", ".obsidian/*", ".trash/*"},
	}
}

// TrackerDeps are the collaborators of a SessionTracker.
type TrackerDeps struct {
	Clock     ports.Clock
	Scheduler ports.Scheduler
	// Tags may be nil, in which case sessions carry no tags.
	Tags ports.TagExtractor
	// Sink receives every TimeEntry when its session ends.
	Sink func(domain.TimeEntry)
	Bus  *EventBus
	// NewID defaults to domain.NewSessionID.
	NewID  func(time.Time) string
	Logger logging.Logger
}

// SessionTracker turns activity events into sessions. It is not safe for
// concurrent use; all calls and timer callbacks must be serialized.
type SessionTracker struct {
	cfg    TrackerConfig
	clock  ports.Clock
	sched  ports.Scheduler
	tags   ports.TagExtractor
	sink   func(domain.TimeEntry)
	bus    *EventBus
	newID  func(time.Time) string
	logger logging.Logger

	state   domain.TrackingState
	focused domain.FileRef

	idle      ports.Timer
	idleArmed time.Time
}

// NewSessionTracker creates a stopped tracker.
func NewSessionTracker(cfg TrackerConfig, deps TrackerDeps) *SessionTracker {
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = DefaultTrackerConfig().IdleThreshold
	}
	t := &SessionTracker{
		cfg:    cfg,
		clock:  deps.Clock,
		sched:  deps.Scheduler,
		tags:   deps.Tags,
		sink:   deps.Sink,
		bus:    deps.Bus,
		newID:  deps.NewID,
		logger: deps.Logger,
	}
	if t.newID == nil {
		t.newID = domain.NewSessionID
	}
	if t.logger == nil {
		t.logger = logging.NewNopLogger()
	}
	if t.bus == nil {
		t.bus = NewEventBus()
	}
	return t
}

// State returns a deep copy of the tracking state.
func (t *SessionTracker) State() domain.TrackingState {
	return t.state.Clone()
}

// CurrentSession returns a copy of the live session, or nil.
func (t *SessionTracker) CurrentSession() *domain.TrackingSession {
	return t.state.CurrentSession.Clone()
}

// FocusedFile returns the trackable file the host last reported as active.
func (t *SessionTracker) FocusedFile() domain.FileRef {
	return t.focused
}

// Start turns tracking on and begins a session for the focused file.
func (t *SessionTracker) Start() {
	if t.state.IsTracking {
		return
	}
	now := t.clock.Now()
	t.state.IsTracking = true
	t.state.IsPaused = false
	t.state.PauseReason = ""
	t.state.LastActiveTime = now
	t.publish(domain.TrackerEvent{Kind: domain.TrackingStarted, At: now})
	if !t.focused.IsZero() {
		t.beginSession(t.focused, now)
	}
	t.armIdle(t.cfg.IdleThreshold)
}

// Stop ends the current session and turns tracking off.
func (t *SessionTracker) Stop() {
	if !t.state.IsTracking {
		return
	}
	now := t.clock.Now()
	t.cancelIdle()
	t.endSession(now)
	t.state.IsTracking = false
	t.state.IsPaused = false
	t.state.PauseReason = ""
	t.publish(domain.TrackerEvent{Kind: domain.TrackingStopped, At: now})
}

// Pause stops counting time without ending the session.
func (t *SessionTracker) Pause(reason domain.PauseReason) {
	if !t.state.IsActive() {
		return
	}
	now := t.clock.Now()
	t.cancelIdle()
	t.state.IsPaused = true
	t.state.PauseReason = reason
	if s := t.state.CurrentSession; s != nil {
		s.Pause(now)
	}
	t.publish(domain.TrackerEvent{
		Kind:    domain.TrackingPaused,
		At:      now,
		Session: t.state.CurrentSession.Clone(),
		Reason:  reason,
	})
}

// Resume reactivates a paused tracker and its session.
func (t *SessionTracker) Resume() {
	if !t.state.IsTracking || !t.state.IsPaused {
		return
	}
	now := t.clock.Now()
	t.state.IsPaused = false
	t.state.PauseReason = ""
	t.state.LastActiveTime = now
	if s := t.state.CurrentSession; s != nil {
		s.Resume(now)
	}
	t.publish(domain.TrackerEvent{
		Kind:    domain.TrackingResumed,
		At:      now,
		Session: t.state.CurrentSession.Clone(),
	})
	t.armIdle(t.cfg.IdleThreshold)
}

// HandleEvent dispatches a host activity event.
func (t *SessionTracker) HandleEvent(ev domain.ActivityEvent) {
	switch ev.Type {
	case domain.EventActiveFileChanged:
		t.ActiveFileChanged(ev.Path)
	case domain.EventFileModified:
		t.FileModified(ev.Path)
	case domain.EventAppFocus:
		t.AppFocused()
	case domain.EventAppBlur:
		t.AppBlurred()
	case domain.EventUserInput:
		t.UserInput()
	case domain.EventTabClosed:
		t.TabClosed(ev.Path)
	default:
		t.logger.Warn("ignoring unknown activity event", "type", ev.Type)
	}
}

// ActiveFileChanged ends the current session and starts one for p. An empty
// or untrackable p means no file has focus.
func (t *SessionTracker) ActiveFileChanged(p string) {
	ref := t.trackable(p)
	if s := t.state.CurrentSession; s != nil && !ref.IsZero() && s.File.Path == ref.Path {
		t.UserInput()
		return
	}
	t.focused = ref
	if !t.state.IsTracking {
		return
	}
	now := t.clock.Now()
	t.endSession(now)

	if t.state.IsPaused && t.state.PauseReason == domain.PauseIdle {
		t.state.IsPaused = false
		t.state.PauseReason = ""
		t.publish(domain.TrackerEvent{Kind: domain.TrackingResumed, At: now})
	}
	if !ref.IsZero() {
		t.beginSession(ref, now)
		if t.state.IsPaused {
			t.state.CurrentSession.Pause(now)
		}
	}
	if !t.state.IsPaused {
		t.recordInput(now)
	}
}

// FileModified counts as input and refreshes the tags of the current
// session when it concerns the tracked file.
func (t *SessionTracker) FileModified(p string) {
	if s := t.state.CurrentSession; s != nil && p != "" {
		if ref := domain.NewFileRef(p); ref.Path == s.File.Path {
			s.SetTags(t.extractTags(ref))
		}
	}
	t.UserInput()
}

// AppFocused resumes tracking paused by an app blur.
func (t *SessionTracker) AppFocused() {
	if t.state.IsPaused && t.state.PauseReason == domain.PauseAppBlur {
		t.Resume()
	}
}

// AppBlurred pauses tracking unless inactive time is tracked.
func (t *SessionTracker) AppBlurred() {
	if t.cfg.TrackInactiveTime {
		return
	}
	t.Pause(domain.PauseAppBlur)
}

// UserInput records activity. It resumes an idle pause and otherwise
// pushes the idle deadline back.
func (t *SessionTracker) UserInput() {
	if !t.state.IsTracking {
		return
	}
	if t.state.IsPaused {
		if t.state.PauseReason == domain.PauseIdle {
			t.Resume()
		}
		return
	}
	t.recordInput(t.clock.Now())
}

// TabClosed ends the session of the closed file.
func (t *SessionTracker) TabClosed(p string) {
	if p == "" {
		return
	}
	ref := domain.NewFileRef(p)
	if t.focused.Path == ref.Path {
		t.focused = domain.FileRef{}
	}
	if s := t.state.CurrentSession; s != nil && s.File.Path == ref.Path {
		t.endSession(t.clock.Now())
	}
}

func (t *SessionTracker) recordInput(now time.Time) {
	t.state.LastActiveTime = now
	if s := t.state.CurrentSession; s != nil {
		s.Touch(now)
	}
	if t.idle == nil || now.Sub(t.idleArmed) >= t.cfg.InputDebounce {
		t.armIdle(t.cfg.IdleThreshold)
	}
}

func (t *SessionTracker) beginSession(ref domain.FileRef, now time.Time) {
	s := domain.NewTrackingSession(t.newID(now), ref, t.extractTags(ref), now)
	t.state.CurrentSession = s
	t.publish(domain.TrackerEvent{Kind: domain.SessionStarted, At: now, Session: s.Clone()})
}

// endSession flushes the current session, if any, as a TimeEntry.
func (t *SessionTracker) endSession(now time.Time) {
	s := t.state.CurrentSession
	if s == nil {
		return
	}
	t.state.CurrentSession = nil
	entry, err := s.End(now)
	if err != nil {
		t.logger.Error("failed to end session", "session", s.ID, "error", err)
		return
	}
	if t.sink != nil {
		t.sink(entry)
	}
	t.publish(domain.TrackerEvent{Kind: domain.SessionEnded, At: now, Session: s, Entry: &entry})
}

func (t *SessionTracker) extractTags(ref domain.FileRef) []string {
	if t.tags == nil {
		return nil
	}
	tags, err := t.tags.ExtractTags(ref.Path)
	if err != nil {
		t.logger.Warn("failed to read tags", "file", ref.Path, "error", err)
		return nil
	}
	return tags
}

func (t *SessionTracker) armIdle(d time.Duration) {
	t.cancelIdle()
	if t.sched == nil {
		return
	}
	t.idleArmed = t.clock.Now()
	t.idle = t.sched.AfterFunc(d, t.onIdle)
}

func (t *SessionTracker) cancelIdle() {
	if t.idle != nil {
		t.idle.Stop()
		t.idle = nil
	}
}

// onIdle pauses when the threshold has really elapsed since the last input.
// Debounced input may have moved the deadline, in which case it rearms for
// the remainder.
func (t *SessionTracker) onIdle() {
	t.idle = nil
	if !t.state.IsActive() {
		return
	}
	quiet := t.clock.Now().Sub(t.state.LastActiveTime)
	if quiet < t.cfg.IdleThreshold {
		t.armIdle(t.cfg.IdleThreshold - quiet)
		return
	}
	t.logger.Info("pausing after idle", "quiet", quiet.String())
	t.Pause(domain.PauseIdle)
}

// trackable resolves p to a file reference, or the zero reference when p is
// empty, has an untracked extension, or matches an ignore pattern.
func (t *SessionTracker) trackable(p string) domain.FileRef {
	if p == "" {
		return domain.FileRef{}
	}
	ref := domain.NewFileRef(p)
	if !Trackable(ref.Path, t.cfg.Extensions, t.cfg.Ignore) {
		return domain.FileRef{}
	}
	return ref
}

// Trackable reports whether a vault-relative path passes the extension and
// ignore filters. A pattern ending in "/*" matches everything below that
// directory.
func Trackable(p string, extensions, ignore []string) bool {
	if len(extensions) > 0 {
		ext := strings.ToLower(path.Ext(p))
		ok := false
		for _, e := range extensions {
			if strings.ToLower(e) == ext {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, pattern := range ignore {
		if dir, found := strings.CutSuffix(pattern, "/*"); found {
			if strings.HasPrefix(p, dir+"/") {
				return false
			}
			continue
		}
		if m, _ := path.Match(pattern, p); m {
			return false
		}
		if m, _ := path.Match(pattern, path.Base(p)); m {
			return false
		}
	}
	return true
}

func (t *SessionTracker) publish(ev domain.TrackerEvent) {
	t.bus.Publish(ev)
}
