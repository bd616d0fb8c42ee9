package ports

import (
	"context"

	"github.com/xvierd/notetime/internal/domain"
)

// EventSource delivers host activity events.
// This is a driving port (adapters call into the core through it).
type EventSource interface {
	// Run delivers events to emit until ctx is cancelled or the source is
	// exhausted.
	Run(ctx context.Context, emit func(domain.ActivityEvent)) error
}

// TagExtractor reads the tags of a vault file.
// This is a driven port (implemented by adapters).
type TagExtractor interface {
	ExtractTags(path string) ([]string, error)
}

// Notifier shows user-facing notifications.
// This is a driven port (implemented by adapters).
type Notifier interface {
	Notify(title, message string) error
}
