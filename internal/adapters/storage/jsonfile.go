package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/ports"
)

// File names used inside the data directory.
const (
	DataFileName    = "tracker-data.json"
	EntriesFileName = "entries.jsonl"
)

// fileStorage implements ports.Storage with a JSON document and a JSON Lines
// entry log in one directory.
type fileStorage struct {
	dir string

	mu  sync.Mutex
	ids map[string]struct{}
}

// Ensure fileStorage implements ports.Storage.
var _ ports.Storage = (*fileStorage)(nil)

// NewFile creates a file storage rooted at dir, creating it if needed.
func NewFile(dir string) (ports.Storage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage error creating directories: %w", err)
	}
	return &fileStorage{dir: dir}, nil
}

func (s *fileStorage) dataPath() string    { return filepath.Join(s.dir, DataFileName) }
func (s *fileStorage) entriesPath() string { return filepath.Join(s.dir, EntriesFileName) }

// Load reads the document. Undecodable files are moved aside to
// <name>.corrupt so the next save does not destroy them.
func (s *fileStorage) Load(_ context.Context) (*domain.TrackerData, error) {
	path := s.dataPath()
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrDataNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage error reading %s: %w", path, err)
	}

	var data domain.TrackerData
	if err := json.Unmarshal(raw, &data); err != nil {
		backupPath := path + ".corrupt"
		_ = os.Rename(path, backupPath)
		return nil, fmt.Errorf("corrupt JSON in %s (backed up to %s): %v: %w", path, backupPath, err, domain.ErrCorruptData)
	}
	data.Normalize()
	return &data, nil
}

// Save atomically replaces the document.
func (s *fileStorage) Save(_ context.Context, data *domain.TrackerData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}

	path := s.dataPath()
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}

// Append writes one entry as a JSON line.
func (s *fileStorage) Append(ctx context.Context, entry domain.TimeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids == nil {
		entries, err := s.readEntries()
		if err != nil {
			return err
		}
		s.ids = make(map[string]struct{}, len(entries))
		for _, e := range entries {
			s.ids[e.ID] = struct{}{}
		}
	}
	if _, ok := s.ids[entry.ID]; ok {
		return fmt.Errorf("entry %s: %w", entry.ID, domain.ErrDuplicateEntry)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("storage error marshalling entry: %w", err)
	}
	f, err := os.OpenFile(s.entriesPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("storage error opening entry log: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("storage error writing entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("storage error closing entry log: %w", err)
	}
	s.ids[entry.ID] = struct{}{}
	return nil
}

// List returns all logged entries ordered by start time.
func (s *fileStorage) List(_ context.Context) ([]domain.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.readEntries()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartTime < entries[j].StartTime
	})
	return entries, nil
}

// readEntries decodes the log. A torn final line from an interrupted write
// is ignored; damage anywhere else is reported as corrupt.
func (s *fileStorage) readEntries() ([]domain.TimeEntry, error) {
	raw, err := os.ReadFile(s.entriesPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage error reading entry log: %w", err)
	}

	var lines [][]byte
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if line := bytes.TrimSpace(sc.Bytes()); len(line) > 0 {
			lines = append(lines, append([]byte(nil), line...))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("storage error scanning entry log: %w", err)
	}

	entries := make([]domain.TimeEntry, 0, len(lines))
	for i, line := range lines {
		var e domain.TimeEntry
		if err := json.Unmarshal(line, &e); err != nil {
			if i == len(lines)-1 && !bytes.HasSuffix(raw, []byte("\n")) {
				break
			}
			return nil, fmt.Errorf("entry log line %d: %v: %w", i+1, err, domain.ErrCorruptData)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close is a no-op; every operation opens and closes its own files.
func (s *fileStorage) Close() error { return nil }
