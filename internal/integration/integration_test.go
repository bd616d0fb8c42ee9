package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xvierd/notetime/internal/adapters/events"
	"github.com/xvierd/notetime/internal/adapters/storage"
	"github.com/xvierd/notetime/internal/adapters/vault"
	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/export"
	"github.com/xvierd/notetime/internal/ports"
	"github.com/xvierd/notetime/internal/services"
	"github.com/xvierd/notetime/internal/testutil"
)

// backend opens the same store twice to check what survives a restart.
type backend struct {
	name string
	open func(t *testing.T, dir string) ports.Storage
}

var backends = []backend{
	{"sqlite", func(t *testing.T, dir string) ports.Storage {
		store, err := storage.New(filepath.Join(dir, "test.db"))
		if err != nil {
			t.Fatalf("failed to create storage: %v", err)
		}
		return store
	}},
	{"json", func(t *testing.T, dir string) ports.Storage {
		store, err := storage.NewFile(dir)
		if err != nil {
			t.Fatalf("failed to create storage: %v", err)
		}
		return store
	}},
}

// setupVault writes a small vault and returns its root.
func setupVault(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	notes := map[string]string{
		"work/plan.md": "---\ntags: [project]\n---\n# Plan\n",
		"journal.md":   "Today was fine. #daily\n",
	}
	for rel, content := range notes {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func newService(t *testing.T, store ports.Storage, clock *testutil.StubClock, vaultRoot string) (*services.TrackingService, *testutil.FakeScheduler) {
	t.Helper()
	sched := testutil.NewFakeScheduler(clock)
	opts := services.DefaultTrackingOptions()
	opts.Tags = &vault.FrontmatterTags{Root: vaultRoot}
	opts.NewID = testutil.NewStubIDGenerator().New
	svc := services.NewTrackingService(store, clock, sched, opts)
	if err := svc.Load(context.Background()); err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	return svc, sched
}

const script = `{"type":"active_file_changed","path":"work/plan.md"}
{"type":"user_input"}
not json
{"type":"active_file_changed","path":"journal.md"}
`

// TestEventStreamSurvivesRestart feeds a JSON event stream through the
// tracker, restarts on the same store and checks the aggregates.
func TestEventStreamSurvivesRestart(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			root := setupVault(t)
			clock := testutil.FixedClock()

			store := b.open(t, dir)
			svc, sched := newService(t, store, clock, root)
			if err := svc.StartTracking(ctx); err != nil {
				t.Fatal(err)
			}

			src := events.NewJSONLines(strings.NewReader(script), nil)
			err := src.Run(ctx, func(ev domain.ActivityEvent) {
				sched.Advance(time.Minute)
				svc.HandleEvent(ev)
			})
			if err != nil {
				t.Fatalf("event stream failed: %v", err)
			}
			sched.Advance(time.Minute)
			if err := svc.Shutdown(ctx); err != nil {
				t.Fatalf("shutdown failed: %v", err)
			}
			store.Close()

			store = b.open(t, dir)
			defer store.Close()
			restarted, _ := newService(t, store, clock, root)

			plan, ok := restarted.Aggregator().File("work/plan.md")
			if !ok {
				t.Fatal("work/plan.md was not persisted")
			}
			if plan.TotalTime != 120 || plan.SessionCount != 1 {
				t.Errorf("plan stats = %+v, want 120s in 1 session", plan)
			}
			for tag, want := range map[string]float64{"project": 120, "daily": 60} {
				ts, ok := restarted.Aggregator().Tag(tag)
				if !ok || ts.TotalTime != want {
					t.Errorf("tag %s = %+v, want %vs", tag, ts, want)
				}
			}
			folder, ok := restarted.Aggregator().Folder("work")
			if !ok || folder.TotalTime != 120 {
				t.Errorf("folder work = %+v, want 120s", folder)
			}

			entries, err := restarted.ExportEntries(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 2 || entries[0].FilePath != "work/plan.md" || entries[1].FilePath != "journal.md" {
				t.Fatalf("entries = %+v", entries)
			}
			if entries[0].Category != "project" || entries[1].Category != "daily" {
				t.Errorf("categories = %q, %q", entries[0].Category, entries[1].Category)
			}

			today := restarted.Query().TodayStats(clock.Now())
			if today.TotalTime != 180 || today.TotalSessions != 2 || today.IsFallback {
				t.Errorf("today = %+v, want 180s in 2 sessions", today)
			}
			if got := restarted.Query().Timeline(0); len(got) != 2 || got[0].FilePath != "journal.md" {
				t.Errorf("timeline = %+v, want journal.md first", got)
			}

			var csv bytes.Buffer
			if err := export.WriteCSV(&csv, export.KindEntries, restarted.ExportSnapshot(), entries); err != nil {
				t.Fatal(err)
			}
			if lines := strings.Split(strings.TrimSpace(csv.String()), "\n"); len(lines) != 3 {
				t.Errorf("csv has %d lines, want header + 2 rows", len(lines))
			}
		})
	}
}

// TestIdlePauseEndsSessionOnRealStore checks that an idle pause followed by
// a file switch records only the active part of the first session.
func TestIdlePauseEndsSessionOnRealStore(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	clock := testutil.FixedClock()
	svc, sched := newService(t, store, clock, setupVault(t))
	if err := svc.StartTracking(ctx); err != nil {
		t.Fatal(err)
	}

	svc.HandleEvent(domain.ActivityEvent{Type: domain.EventActiveFileChanged, Path: "work/plan.md"})
	sched.Advance(10 * time.Minute)
	st, _ := svc.TrackingState(ctx)
	if !st.IsPaused || st.PauseReason != domain.PauseIdle {
		t.Fatalf("state = %+v, want idle pause", st)
	}

	svc.HandleEvent(domain.ActivityEvent{Type: domain.EventActiveFileChanged, Path: "journal.md"})
	entries, err := svc.ExportEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %+v, want 1", entries)
	}
	if got := time.Duration(entries[0].Duration) * time.Millisecond; got != 5*time.Minute {
		t.Errorf("recorded %v, want the 5m before the idle pause", got)
	}
	if entries[0].IsActive {
		t.Error("an entry ended from idle should be inactive")
	}
}

// TestNullEntriesInStoredDocument loads a document with null map values
// from disk and keeps tracking on top of it.
func TestNullEntriesInStoredDocument(t *testing.T) {
	for _, doc := range []string{
		`{"version":"1.0.0","files":{"a.md":null}}`,
		`{"version":"1.0.0","summary":{"2024-01-15":null}}`,
	} {
		t.Run(doc, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, storage.DataFileName), []byte(doc), 0o600); err != nil {
				t.Fatal(err)
			}
			store, err := storage.NewFile(dir)
			if err != nil {
				t.Fatal(err)
			}
			defer store.Close()

			clock := testutil.FixedClock()
			svc, sched := newService(t, store, clock, setupVault(t))
			if err := svc.StartTracking(context.Background()); err != nil {
				t.Fatal(err)
			}
			svc.HandleEvent(domain.ActivityEvent{Type: domain.EventActiveFileChanged, Path: "journal.md"})
			sched.Advance(time.Minute)
			if err := svc.Shutdown(context.Background()); err != nil {
				t.Fatalf("shutdown failed: %v", err)
			}
			if fs, ok := svc.Aggregator().File("journal.md"); !ok || fs.TotalTime != 60 {
				t.Errorf("journal.md = %+v, want 60s", fs)
			}
		})
	}
}
