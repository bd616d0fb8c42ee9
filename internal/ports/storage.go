// Package ports defines the interfaces (driven and driving ports)
// for notetime following hexagonal architecture principles.
// These interfaces define the contracts between the tracking core and
// external infrastructure.
package ports

import (
	"context"

	"github.com/xvierd/notetime/internal/domain"
)

// StatsStore persists the aggregate document.
// This is a driven port (implemented by adapters).
type StatsStore interface {
	// Load reads the stored document. It returns domain.ErrDataNotFound when
	// nothing has been stored yet and wraps domain.ErrCorruptData when the
	// stored data cannot be decoded.
	Load(ctx context.Context) (*domain.TrackerData, error)

	// Save replaces the stored document.
	Save(ctx context.Context, data *domain.TrackerData) error
}

// EntryLog keeps every TimeEntry ever recorded.
// This is a driven port (implemented by adapters).
type EntryLog interface {
	// Append stores one entry.
	Append(ctx context.Context, entry domain.TimeEntry) error

	// List returns all entries in ascending start time order.
	List(ctx context.Context) ([]domain.TimeEntry, error)
}

// Storage is the combined persistence interface.
// This is a driven port (implemented by adapters).
type Storage interface {
	StatsStore
	EntryLog

	// Close releases the underlying resources.
	Close() error
}
