package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/testutil"
)

type serviceHarness struct {
	clock *testutil.StubClock
	sched *testutil.FakeScheduler
	store *testutil.MemoryStorage
	svc   *TrackingService
}

func newServiceHarness(t *testing.T, store *testutil.MemoryStorage) *serviceHarness {
	t.Helper()
	clock := testutil.FixedClock()
	sched := testutil.NewFakeScheduler(clock)
	opts := DefaultTrackingOptions()
	opts.NewID = testutil.NewStubIDGenerator().New
	h := &serviceHarness{
		clock: clock,
		sched: sched,
		store: store,
		svc:   NewTrackingService(store, clock, sched, opts),
	}
	require.NoError(t, h.svc.Load(context.Background()))
	return h
}

func TestTrackingService_Load(t *testing.T) {
	t.Run("missing data is created immediately", func(t *testing.T) {
		store := testutil.NewMemoryStorage()
		newServiceHarness(t, store)
		stored := store.Stored()
		require.NotNil(t, stored)
		assert.Equal(t, domain.DataVersion, stored.Version)
		assert.Empty(t, stored.Files)
	})

	t.Run("corrupt data starts empty", func(t *testing.T) {
		store := testutil.NewMemoryStorage()
		store.LoadErr = fmt.Errorf("decode: %w", domain.ErrCorruptData)
		h := newServiceHarness(t, store)
		assert.Empty(t, h.svc.ExportSnapshot().Files)
		stored := store.Stored()
		require.NotNil(t, stored, "an empty document replaces corrupt data at once")
		assert.Equal(t, domain.DataVersion, stored.Version)
		assert.Empty(t, stored.Files)
	})

	t.Run("other read errors are returned", func(t *testing.T) {
		store := testutil.NewMemoryStorage()
		store.LoadErr = errors.New("permission denied")
		svc := NewTrackingService(store, testutil.FixedClock(), nil, DefaultTrackingOptions())
		assert.Error(t, svc.Load(context.Background()))
	})

	t.Run("existing data is restored", func(t *testing.T) {
		store := testutil.NewMemoryStorage()
		data := domain.NewTrackerData()
		data.Files["a.md"] = &domain.FileTrackingStats{Path: "a.md", TotalTime: 42, SessionCount: 1}
		require.NoError(t, store.Save(context.Background(), data))

		h := newServiceHarness(t, store)
		fs, ok := h.svc.Aggregator().File("a.md")
		require.True(t, ok)
		assert.Equal(t, 42.0, fs.TotalTime)
	})
}

func TestTrackingService_EndToEnd(t *testing.T) {
	store := testutil.NewMemoryStorage()
	h := newServiceHarness(t, store)
	ctx := context.Background()
	saves := store.SaveCount()

	h.svc.HandleEvent(domain.ActivityEvent{Type: domain.EventActiveFileChanged, Path: "work/a.md"})
	require.NoError(t, h.svc.StartTracking(ctx))
	h.sched.Advance(2 * time.Minute)
	h.svc.HandleEvent(domain.ActivityEvent{Type: domain.EventActiveFileChanged, Path: "b.md"})

	fs, ok := h.svc.Aggregator().File("work/a.md")
	require.True(t, ok, "entry reaches the aggregator synchronously")
	assert.Equal(t, 120.0, fs.TotalTime)
	assert.Equal(t, saves, store.SaveCount(), "durable save is debounced")

	h.sched.Advance(5 * time.Second)
	assert.Equal(t, saves+1, store.SaveCount())
	assert.Equal(t, 120.0, store.Stored().Files["work/a.md"].TotalTime)

	h.sched.Advance(time.Minute)
	require.NoError(t, h.svc.Shutdown(ctx))
	assert.Equal(t, 0, h.sched.Pending(), "all timers cancelled")

	entries, err := h.svc.ExportEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "work/a.md", entries[0].FilePath)
	assert.Equal(t, "b.md", entries[1].FilePath)
	assert.Less(t, entries[0].StartTime, entries[1].StartTime)
	assert.Equal(t, 65.0, store.Stored().Files["b.md"].TotalTime, "shutdown flushes")
}

func TestTrackingService_PersistenceFailure(t *testing.T) {
	store := testutil.NewMemoryStorage()
	h := newServiceHarness(t, store)
	ctx := context.Background()
	store.SaveErr = errors.New("disk full")
	store.AppendErr = errors.New("disk full")

	h.svc.HandleEvent(domain.ActivityEvent{Type: domain.EventActiveFileChanged, Path: "a.md"})
	require.NoError(t, h.svc.StartTracking(ctx))
	h.sched.Advance(time.Minute)
	h.svc.HandleEvent(domain.ActivityEvent{Type: domain.EventActiveFileChanged, Path: "b.md"})
	h.sched.Advance(10 * time.Second)

	fs, ok := h.svc.Aggregator().File("a.md")
	require.True(t, ok, "in-memory state survives write failures")
	assert.Equal(t, 60.0, fs.TotalTime)
	assert.True(t, h.svc.Persister().Dirty())
	assert.True(t, h.svc.Tracker().State().IsTracking)

	store.SaveErr = nil
	h.sched.Advance(time.Minute)
	assert.False(t, h.svc.Persister().Dirty(), "periodic save retries")
	assert.Equal(t, 60.0, store.Stored().Files["a.md"].TotalTime)
}

func TestTrackingService_ExportIsReadOnly(t *testing.T) {
	store := testutil.NewMemoryStorage()
	h := newServiceHarness(t, store)
	ctx := context.Background()
	h.svc.HandleEvent(domain.ActivityEvent{Type: domain.EventActiveFileChanged, Path: "a.md"})
	require.NoError(t, h.svc.StartTracking(ctx))
	h.sched.Advance(time.Minute)
	require.NoError(t, h.svc.StopTracking(ctx))

	snap := h.svc.ExportSnapshot()
	delete(snap.Files, "a.md")
	payload, err := h.svc.SyncPayload(ctx)
	require.NoError(t, err)
	assert.Len(t, payload.Entries, 1)
	assert.Contains(t, payload.Snapshot.Files, "a.md")
}

func TestTrackingService_PauseRequiresTracking(t *testing.T) {
	h := newServiceHarness(t, testutil.NewMemoryStorage())
	ctx := context.Background()
	assert.ErrorIs(t, h.svc.PauseTracking(ctx), domain.ErrNotTracking)
	assert.ErrorIs(t, h.svc.ResumeTracking(ctx), domain.ErrNotTracking)

	require.NoError(t, h.svc.StartTracking(ctx))
	require.NoError(t, h.svc.PauseTracking(ctx))
	st, err := h.svc.TrackingState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PauseManual, st.PauseReason)
	require.NoError(t, h.svc.ResumeTracking(ctx))
	st, _ = h.svc.TrackingState(ctx)
	assert.False(t, st.IsPaused)
}

func TestTrackingService_Cleanup(t *testing.T) {
	store := testutil.NewMemoryStorage()
	h := newServiceHarness(t, store)
	now := h.clock.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, h.svc.Aggregator().RecordEntry(entryAt(t, fmt.Sprint(i), "a.md", nil, now.AddDate(0, 0, -i), time.Minute)))
	}
	h.svc.Persister().MarkDirty()

	n, err := h.svc.Cleanup(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, store.Stored().Summary, 7)

	_, err = h.svc.Cleanup(context.Background(), 0)
	assert.Error(t, err)
}

func TestTrackingService_Import(t *testing.T) {
	store := testutil.NewMemoryStorage()
	h := newServiceHarness(t, store)
	data := domain.NewTrackerData()
	data.Tags["imported"] = &domain.TagTrackingStats{Name: "imported", TotalTime: 5, SessionCount: 1}

	require.NoError(t, h.svc.Import(context.Background(), data))
	assert.Contains(t, store.Stored().Tags, "imported")
	_, ok := h.svc.Aggregator().Tag("imported")
	assert.True(t, ok)
}

func TestTrackingService_ImportSkipsNullEntries(t *testing.T) {
	store := testutil.NewMemoryStorage()
	h := newServiceHarness(t, store)
	data := domain.NewTrackerData()
	data.Files["a.md"] = nil
	data.Files["b.md"] = &domain.FileTrackingStats{Path: "b.md", Name: "b.md", Folder: "/", TotalTime: 4, SessionCount: 1}
	data.Folders["/"] = nil
	data.Tags["x"] = nil
	data.Summary["2024-01-15"] = nil

	require.NotPanics(t, func() {
		require.NoError(t, h.svc.Import(context.Background(), data))
	})
	snap := h.svc.ExportSnapshot()
	assert.Len(t, snap.Files, 1)
	assert.Contains(t, snap.Files, "b.md")
	assert.Empty(t, snap.Folders)
	assert.Empty(t, snap.Summary)

	stats, err := h.svc.AggregatedStats(context.Background(), domain.PeriodAll, h.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalTime)
}

func TestTrackingService_InvalidEventDropped(t *testing.T) {
	h := newServiceHarness(t, testutil.NewMemoryStorage())
	h.svc.HandleEvent(domain.ActivityEvent{Type: "scroll"})
	state := h.svc.Tracker().State()
	assert.Equal(t, domain.StatusStopped, state.Status())
}

func TestNotifyOnIdle(t *testing.T) {
	store := testutil.NewMemoryStorage()
	h := newServiceHarness(t, store)
	notifier := &testutil.RecordingNotifier{}
	unsubscribe := NotifyOnIdle(h.svc.Bus(), notifier, nil)
	defer unsubscribe()

	h.svc.HandleEvent(domain.ActivityEvent{Type: domain.EventActiveFileChanged, Path: "draft.md"})
	require.NoError(t, h.svc.StartTracking(context.Background()))
	require.NoError(t, h.svc.PauseTracking(context.Background()))
	require.NoError(t, h.svc.ResumeTracking(context.Background()))
	assert.Empty(t, notifier.Messages, "manual pauses do not notify")

	h.sched.Advance(5 * time.Minute)
	require.Len(t, notifier.Messages, 1)
	assert.Contains(t, notifier.Messages[0], "draft.md")
}

func TestTrackingService_WithLoop(t *testing.T) {
	store := testutil.NewMemoryStorage()
	h := newServiceHarness(t, store)
	loop := NewLoop(8)
	h.svc.SetLoop(loop)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	require.NoError(t, h.svc.StartTracking(ctx))
	st, err := h.svc.TrackingState(ctx)
	require.NoError(t, err)
	assert.True(t, st.IsTracking)

	cancel()
	<-loop.Done()
	assert.ErrorIs(t, h.svc.StopTracking(context.Background()), ErrLoopClosed)
}
