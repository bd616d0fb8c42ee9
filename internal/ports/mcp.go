package ports

import (
	"context"
	"time"

	"github.com/xvierd/notetime/internal/domain"
)

// MCPHandler defines the interface for MCP server operations.
// This is a driving port (called by the application layer).
type MCPHandler interface {
	// Start begins serving MCP requests.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the server.
	Stop() error

	// IsRunning returns true if the server is active.
	IsRunning() bool
}

// MCPStateProvider provides tracker state and statistics to the MCP server.
// This is a driven port (implemented by services layer).
type MCPStateProvider interface {
	// TrackingState returns a copy of the tracker state.
	TrackingState(ctx context.Context) (domain.TrackingState, error)

	// AggregatedStats returns the merged view for period as of ref.
	AggregatedStats(ctx context.Context, period domain.Period, ref time.Time) (*domain.AggregatedStats, error)

	// TodayStats returns today's view, falling back to the latest day.
	TodayStats(ctx context.Context, ref time.Time) (*domain.AggregatedStats, error)

	// Timeline returns up to limit entries, most recent first.
	Timeline(ctx context.Context, limit int) ([]domain.TimelineEntry, error)

	// StartTracking turns tracking on.
	StartTracking(ctx context.Context) error

	// StopTracking turns tracking off.
	StopTracking(ctx context.Context) error

	// PauseTracking pauses tracking manually.
	PauseTracking(ctx context.Context) error

	// ResumeTracking resumes paused tracking.
	ResumeTracking(ctx context.Context) error
}
