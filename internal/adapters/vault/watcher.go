// Package vault watches a note vault on disk and reads note tags. It stands
// in for the host editor when no plugin is connected.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/logging"
	"github.com/xvierd/notetime/internal/ports"
)

// Watcher turns file writes inside a vault into activity events. A write to
// the focused file is a file_modified event; a write to any other file is
// reported as active_file_changed followed by file_modified.
type Watcher struct {
	root   string
	filter func(rel string) bool
	logger logging.Logger

	focused string
}

// Ensure Watcher implements ports.EventSource.
var _ ports.EventSource = (*Watcher)(nil)

// NewWatcher creates a watcher over root. filter receives vault-relative,
// slash-separated paths and reports whether the file is trackable; nil
// accepts everything.
func NewWatcher(root string, filter func(rel string) bool, logger logging.Logger) *Watcher {
	if filter == nil {
		filter = func(string) bool { return true }
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Watcher{root: root, filter: filter, logger: logger}
}

// Run watches the vault recursively until ctx is cancelled. Hidden
// directories are not watched.
func (w *Watcher) Run(ctx context.Context, emit func(domain.ActivityEvent)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.root); err != nil {
		return err
	}
	w.logger.Info("watching vault", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(watcher, event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
					continue
				}
			}
			w.handle(event.Name, emit)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("vault watcher error", "error", err)
		}
	}
}

// handle emits the events for a write to abs.
func (w *Watcher) handle(abs string, emit func(domain.ActivityEvent)) {
	rel, ok := w.relative(abs)
	if !ok || !w.filter(rel) {
		return
	}
	if rel != w.focused {
		w.focused = rel
		emit(domain.ActivityEvent{Type: domain.EventActiveFileChanged, Path: rel})
	}
	emit(domain.ActivityEvent{Type: domain.EventFileModified, Path: rel})
}

func (w *Watcher) relative(abs string) (string, bool) {
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) addTree(watcher *fsnotify.Watcher, dir string) error {
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return nil
}
