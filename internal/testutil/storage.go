package testutil

import (
	"context"
	"sync"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/ports"
)

// MemoryStorage is an in-memory ports.Storage with injectable failures.
type MemoryStorage struct {
	mu      sync.Mutex
	data    *domain.TrackerData
	entries []domain.TimeEntry

	// LoadErr, SaveErr and AppendErr are returned by the matching calls
	// when set.
	LoadErr   error
	SaveErr   error
	AppendErr error

	Saves int
}

// NewMemoryStorage returns an empty store. Load reports ErrDataNotFound
// until the first Save.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Ensure MemoryStorage implements ports.Storage.
var _ ports.Storage = (*MemoryStorage)(nil)

func (m *MemoryStorage) Load(context.Context) (*domain.TrackerData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	if m.data == nil {
		return nil, domain.ErrDataNotFound
	}
	return m.data.Clone(), nil
}

func (m *MemoryStorage) Save(_ context.Context, data *domain.TrackerData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.data = data.Clone()
	m.Saves++
	return nil
}

func (m *MemoryStorage) Append(_ context.Context, entry domain.TimeEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.entries = append(m.entries, entry.Clone())
	return nil
}

func (m *MemoryStorage) List(context.Context) ([]domain.TimeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TimeEntry, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Clone()
	}
	return out, nil
}

func (m *MemoryStorage) Close() error { return nil }

// Stored returns a copy of the last saved document, or nil.
func (m *MemoryStorage) Stored() *domain.TrackerData {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil
	}
	return m.data.Clone()
}

// SaveCount returns the number of successful saves.
func (m *MemoryStorage) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Saves
}

// StubTags maps file paths to tags. Paths in Fail return an error.
type StubTags struct {
	Tags map[string][]string
	Fail map[string]error
}

func (s *StubTags) ExtractTags(p string) ([]string, error) {
	if err, ok := s.Fail[p]; ok {
		return nil, err
	}
	return append([]string(nil), s.Tags[p]...), nil
}

// RecordingNotifier collects notifications.
type RecordingNotifier struct {
	mu       sync.Mutex
	Messages []string
	Err      error
}

func (n *RecordingNotifier) Notify(title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Messages = append(n.Messages, title+": "+message)
	return n.Err
}
