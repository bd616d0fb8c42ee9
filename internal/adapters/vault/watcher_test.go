package vault

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xvierd/notetime/internal/domain"
)

func TestWatcher_Handle(t *testing.T) {
	root := t.TempDir()
	w := NewWatcher(root, func(rel string) bool { return strings.HasSuffix(rel, ".md") }, nil)

	var got []domain.ActivityEvent
	emit := func(ev domain.ActivityEvent) { got = append(got, ev) }

	w.handle(filepath.Join(root, "work", "a.md"), emit)
	w.handle(filepath.Join(root, "work", "a.md"), emit)
	w.handle(filepath.Join(root, "image.png"), emit)
	w.handle(filepath.Join(filepath.Dir(root), "outside.md"), emit)
	w.handle(filepath.Join(root, "b.md"), emit)

	want := []domain.ActivityEvent{
		{Type: domain.EventActiveFileChanged, Path: "work/a.md"},
		{Type: domain.EventFileModified, Path: "work/a.md"},
		{Type: domain.EventFileModified, Path: "work/a.md"},
		{Type: domain.EventActiveFileChanged, Path: "b.md"},
		{Type: domain.EventFileModified, Path: "b.md"},
	}
	assert.Equal(t, want, got)
}

func TestWatcher_Run(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "notes"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".obsidian"), 0o755))

	events := make(chan domain.ActivityEvent, 64)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	w := NewWatcher(root, nil, nil)
	go func() { done <- w.Run(ctx, func(ev domain.ActivityEvent) { events <- ev }) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	// Writes can race the initial watch registration; retry until seen.
	target := filepath.Join(root, "notes", "day.md")
	deadline := time.After(5 * time.Second)
	for {
		require.NoError(t, os.WriteFile(target, []byte("hello"), 0o644))
		select {
		case ev := <-events:
			assert.Equal(t, domain.EventActiveFileChanged, ev.Type)
			assert.Equal(t, "notes/day.md", ev.Path)
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("timed out waiting for vault event")
		}
	}
}
