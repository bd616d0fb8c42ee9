package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/logging"
	"github.com/xvierd/notetime/internal/ports"
)

// TrackingOptions configures a TrackingService.
type TrackingOptions struct {
	Tracker       TrackerConfig
	SaveDebounce  time.Duration
	SaveInterval  time.Duration
	RetentionDays int
	Tags          ports.TagExtractor
	NewID         func(time.Time) string
	Logger        logging.Logger
}

// DefaultTrackingOptions returns the defaults used when no config is loaded.
func DefaultTrackingOptions() TrackingOptions {
	return TrackingOptions{
		Tracker:      DefaultTrackerConfig(),
		SaveDebounce: 5 * time.Second,
		SaveInterval: time.Minute,
	}
}

// TrackingService wires the tracker, aggregator, query layer and persister
// together. Completed sessions flow from the tracker into the aggregator and
// the entry log.
//
// Without a loop every method must be called from one goroutine. With
// SetLoop, the ports.MCPStateProvider methods may be called from anywhere.
type TrackingService struct {
	storage ports.Storage
	clock   ports.Clock
	logger  logging.Logger
	opts    TrackingOptions

	bus       *EventBus
	tracker   *SessionTracker
	agg       *StatisticsAggregator
	query     *QueryLayer
	persister *Persister
	loop      *Loop
}

// Ensure TrackingService implements ports.MCPStateProvider.
var _ ports.MCPStateProvider = (*TrackingService)(nil)

// NewTrackingService creates the engine. Call Load before use.
func NewTrackingService(storage ports.Storage, clock ports.Clock, sched ports.Scheduler, opts TrackingOptions) *TrackingService {
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	s := &TrackingService{
		storage: storage,
		clock:   clock,
		logger:  opts.Logger,
		opts:    opts,
		bus:     NewEventBus(),
	}
	s.agg = NewStatisticsAggregator(clock)
	s.query = NewQueryLayer(s.agg)
	s.persister = NewPersister(storage, sched, s.agg.Snapshot, opts.SaveDebounce, opts.SaveInterval, opts.Logger)
	s.tracker = NewSessionTracker(opts.Tracker, TrackerDeps{
		Clock:     clock,
		Scheduler: sched,
		Tags:      opts.Tags,
		Sink:      s.saveToTracker,
		Bus:       s.bus,
		NewID:     opts.NewID,
		Logger:    opts.Logger,
	})
	return s
}

// SetLoop routes the thread-safe entry points through l.
func (s *TrackingService) SetLoop(l *Loop) { s.loop = l }

// Bus returns the tracker event bus.
func (s *TrackingService) Bus() *EventBus { return s.bus }

// Tracker returns the session tracker.
func (s *TrackingService) Tracker() *SessionTracker { return s.tracker }

// Aggregator returns the statistics aggregator.
func (s *TrackingService) Aggregator() *StatisticsAggregator { return s.agg }

// Query returns the query layer.
func (s *TrackingService) Query() *QueryLayer { return s.query }

// Persister returns the persister.
func (s *TrackingService) Persister() *Persister { return s.persister }

// Load restores the aggregate from storage and starts periodic saves. A
// missing document is created empty and saved at once. A corrupt one is
// logged and replaced the same way.
func (s *TrackingService) Load(ctx context.Context) error {
	data, err := s.storage.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrDataNotFound):
		data = domain.NewTrackerData()
		data.LastUpdated = domain.Millis(s.clock.Now())
		if err := s.storage.Save(ctx, data); err != nil {
			s.logger.Error("failed to create tracker data", "error", err)
		}
	case errors.Is(err, domain.ErrCorruptData):
		s.logger.Error("tracker data unreadable, starting empty", "error", err)
		data = domain.NewTrackerData()
		data.LastUpdated = domain.Millis(s.clock.Now())
		if err := s.storage.Save(ctx, data); err != nil {
			s.logger.Error("failed to replace tracker data", "error", err)
		}
	case err != nil:
		return fmt.Errorf("failed to load tracker data: %w", err)
	}
	s.agg.Restore(data)
	if s.opts.RetentionDays > 0 {
		if n := s.prune(s.opts.RetentionDays); n > 0 {
			s.logger.Info("pruned old summaries", "count", n)
		}
	}
	s.persister.Start()
	return nil
}

// HandleEvent feeds one activity event to the tracker.
func (s *TrackingService) HandleEvent(ev domain.ActivityEvent) {
	if err := ev.Validate(); err != nil {
		s.logger.Warn("dropping activity event", "error", err)
		return
	}
	s.tracker.HandleEvent(ev)
}

// saveToTracker records a completed session. Failures are logged and never
// reach the tracker.
func (s *TrackingService) saveToTracker(entry domain.TimeEntry) {
	if err := s.agg.RecordEntry(entry); err != nil {
		s.logger.Error("failed to record entry", "entry", entry.ID, "error", err)
		return
	}
	if err := s.storage.Append(context.Background(), entry); err != nil {
		s.logger.Error("failed to append entry", "entry", entry.ID, "error", err)
	}
	s.logger.Debug("session recorded", "file", entry.FilePath, "duration_ms", entry.Duration)
	s.persister.MarkDirty()
}

// ExportEntries returns every recorded entry in ascending start order.
func (s *TrackingService) ExportEntries(ctx context.Context) ([]domain.TimeEntry, error) {
	entries, err := s.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartTime < entries[j].StartTime
	})
	return entries, nil
}

// ExportSnapshot returns a deep copy of the aggregate.
func (s *TrackingService) ExportSnapshot() *domain.TrackerData {
	return s.agg.Snapshot()
}

// SyncPayload bundles both exports for a sync backend.
func (s *TrackingService) SyncPayload(ctx context.Context) (ports.SyncPayload, error) {
	entries, err := s.ExportEntries(ctx)
	if err != nil {
		return ports.SyncPayload{}, err
	}
	return ports.SyncPayload{Entries: entries, Snapshot: s.ExportSnapshot()}, nil
}

// Import replaces the aggregate with data and saves it.
func (s *TrackingService) Import(ctx context.Context, data *domain.TrackerData) error {
	s.agg.Restore(data)
	s.persister.MarkDirty()
	return s.persister.Flush(ctx)
}

// Cleanup deletes summaries older than keepDays days and saves.
func (s *TrackingService) Cleanup(ctx context.Context, keepDays int) (int, error) {
	if keepDays <= 0 {
		return 0, fmt.Errorf("keep days must be positive, got %d", keepDays)
	}
	n := s.prune(keepDays)
	if n == 0 {
		return 0, nil
	}
	return n, s.persister.Flush(ctx)
}

func (s *TrackingService) prune(keepDays int) int {
	cutoff := domain.DateKey(domain.DayStart(s.clock.Now()).AddDate(0, 0, -(keepDays - 1)))
	n := s.agg.PruneSummaries(cutoff)
	if n > 0 {
		s.persister.MarkDirty()
	}
	return n
}

// Shutdown stops tracking, cancels timers and flushes the aggregate.
func (s *TrackingService) Shutdown(ctx context.Context) error {
	s.tracker.Stop()
	return s.persister.Stop(ctx)
}

func (s *TrackingService) do(ctx context.Context, f func()) error {
	if s.loop == nil {
		f()
		return nil
	}
	return s.loop.Do(ctx, f)
}

// TrackingState returns a copy of the tracker state.
func (s *TrackingService) TrackingState(ctx context.Context) (domain.TrackingState, error) {
	var st domain.TrackingState
	err := s.do(ctx, func() { st = s.tracker.State() })
	return st, err
}

// AggregatedStats returns the merged view of period as of ref.
func (s *TrackingService) AggregatedStats(ctx context.Context, period domain.Period, ref time.Time) (*domain.AggregatedStats, error) {
	var (
		stats *domain.AggregatedStats
		qerr  error
	)
	if err := s.do(ctx, func() { stats, qerr = s.query.AggregatedStats(period, ref) }); err != nil {
		return nil, err
	}
	return stats, qerr
}

// TodayStats returns the view of the day of ref, with fallback.
func (s *TrackingService) TodayStats(ctx context.Context, ref time.Time) (*domain.AggregatedStats, error) {
	var stats *domain.AggregatedStats
	err := s.do(ctx, func() { stats = s.query.TodayStats(ref) })
	return stats, err
}

// Timeline returns up to limit entries, most recent first.
func (s *TrackingService) Timeline(ctx context.Context, limit int) ([]domain.TimelineEntry, error) {
	var entries []domain.TimelineEntry
	err := s.do(ctx, func() { entries = s.query.Timeline(limit) })
	return entries, err
}

// StartTracking turns tracking on.
func (s *TrackingService) StartTracking(ctx context.Context) error {
	return s.do(ctx, s.tracker.Start)
}

// StopTracking turns tracking off.
func (s *TrackingService) StopTracking(ctx context.Context) error {
	return s.do(ctx, s.tracker.Stop)
}

// PauseTracking pauses tracking manually. It fails with ErrNotTracking when
// tracking is off.
func (s *TrackingService) PauseTracking(ctx context.Context) error {
	var notTracking bool
	err := s.do(ctx, func() {
		if !s.tracker.State().IsTracking {
			notTracking = true
			return
		}
		s.tracker.Pause(domain.PauseManual)
	})
	if err != nil {
		return err
	}
	if notTracking {
		return domain.ErrNotTracking
	}
	return nil
}

// ResumeTracking resumes a paused tracker. It fails with ErrNotTracking
// when tracking is off.
func (s *TrackingService) ResumeTracking(ctx context.Context) error {
	var notTracking bool
	err := s.do(ctx, func() {
		if !s.tracker.State().IsTracking {
			notTracking = true
			return
		}
		s.tracker.Resume()
	})
	if err != nil {
		return err
	}
	if notTracking {
		return domain.ErrNotTracking
	}
	return nil
}

// NotifyOnIdle shows a notification whenever tracking pauses for idle. It
// returns the unsubscribe function.
func NotifyOnIdle(bus *EventBus, notifier ports.Notifier, logger logging.Logger) func() {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return bus.Subscribe(func(ev domain.TrackerEvent) {
		if ev.Kind != domain.TrackingPaused || ev.Reason != domain.PauseIdle {
			return
		}
		msg := "Tracking paused after inactivity."
		if ev.Session != nil {
			msg = fmt.Sprintf("Tracking of %s paused after inactivity.", ev.Session.File.Name)
		}
		if err := notifier.Notify("notetime", msg); err != nil {
			logger.Warn("failed to show notification", "error", err)
		}
	})
}
