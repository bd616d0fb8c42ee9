package ports

import (
	"context"

	"github.com/xvierd/notetime/internal/domain"
)

// SyncPayload is what the core hands to a sync backend: every entry in
// ascending start order and the full aggregate snapshot.
type SyncPayload struct {
	Entries  []domain.TimeEntry  `json:"entries"`
	Snapshot *domain.TrackerData `json:"snapshot"`
}

// SyncBackend pushes exported data to a remote service.
// This is a driven port (implemented by adapters).
type SyncBackend interface {
	Push(ctx context.Context, payload SyncPayload) error
}
