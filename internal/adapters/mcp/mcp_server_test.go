package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/testutil"
)

// mockStateProvider is a mock implementation of ports.MCPStateProvider for testing.
type mockStateProvider struct {
	state      domain.TrackingState
	stats      *domain.AggregatedStats
	timeline   []domain.TimelineEntry
	lastPeriod domain.Period
	lastLimit  int
	controlErr error
	calls      []string
}

func (m *mockStateProvider) TrackingState(ctx context.Context) (domain.TrackingState, error) {
	return m.state, nil
}

func (m *mockStateProvider) AggregatedStats(ctx context.Context, period domain.Period, ref time.Time) (*domain.AggregatedStats, error) {
	m.lastPeriod = period
	return m.stats, nil
}

func (m *mockStateProvider) TodayStats(ctx context.Context, ref time.Time) (*domain.AggregatedStats, error) {
	return m.stats, nil
}

func (m *mockStateProvider) Timeline(ctx context.Context, limit int) ([]domain.TimelineEntry, error) {
	m.lastLimit = limit
	if len(m.timeline) > limit {
		return m.timeline[:limit], nil
	}
	return m.timeline, nil
}

func (m *mockStateProvider) control(name string) error {
	m.calls = append(m.calls, name)
	return m.controlErr
}

func (m *mockStateProvider) StartTracking(ctx context.Context) error {
	m.state.IsTracking = true
	return m.control("start")
}

func (m *mockStateProvider) StopTracking(ctx context.Context) error  { return m.control("stop") }
func (m *mockStateProvider) PauseTracking(ctx context.Context) error { return m.control("pause") }
func (m *mockStateProvider) ResumeTracking(ctx context.Context) error {
	return m.control("resume")
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Content[0])
	}
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(text.Text), &out); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	return out
}

func TestNewServer(t *testing.T) {
	mock := &mockStateProvider{}
	server := NewServer(mock, testutil.FixedClock())

	if server == nil {
		t.Fatal("NewServer() returned nil")
	}

	if server.stateProvider != mock {
		t.Error("NewServer() did not set state provider correctly")
	}

	if server.server == nil {
		t.Error("NewServer() did not create MCP server")
	}
}

func TestServer_IsRunning(t *testing.T) {
	server := NewServer(&mockStateProvider{}, testutil.FixedClock())

	if server.IsRunning() {
		t.Error("IsRunning() should return false before Start()")
	}
}

func TestServer_handleGetTrackingState(t *testing.T) {
	clock := testutil.FixedClock()
	session := domain.NewTrackingSession("s1", domain.NewFileRef("work/plan.md"), []string{"project"}, clock.Now().Add(-10*time.Minute))
	mock := &mockStateProvider{
		state: domain.TrackingState{
			IsTracking:     true,
			CurrentSession: session,
			LastActiveTime: clock.Now(),
		},
	}

	server := NewServer(mock, clock)
	result, err := server.handleGetTrackingState(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleGetTrackingState() error = %v", err)
	}

	got := resultJSON(t, result)
	if got["is_tracking"] != true {
		t.Errorf("is_tracking = %v, want true", got["is_tracking"])
	}
	cur, ok := got["current_session"].(map[string]interface{})
	if !ok {
		t.Fatalf("current_session = %v, want object", got["current_session"])
	}
	if cur["file"] != "work/plan.md" {
		t.Errorf("file = %v, want work/plan.md", cur["file"])
	}
	if cur["elapsed"] != "10m0s" {
		t.Errorf("elapsed = %v, want 10m0s", cur["elapsed"])
	}
}

func TestServer_handleGetTrackingState_Stopped(t *testing.T) {
	server := NewServer(&mockStateProvider{}, testutil.FixedClock())

	result, err := server.handleGetTrackingState(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("handleGetTrackingState() error = %v", err)
	}
	got := resultJSON(t, result)
	if got["current_session"] != nil {
		t.Errorf("current_session = %v, want null", got["current_session"])
	}
}

func TestServer_handleGetAggregatedStats(t *testing.T) {
	mock := &mockStateProvider{
		stats: &domain.AggregatedStats{Period: domain.PeriodWeek, TotalTime: 3600, MostUsedTag: "project"},
	}
	server := NewServer(mock, testutil.FixedClock())

	t.Run("valid period", func(t *testing.T) {
		request := mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Arguments: map[string]interface{}{"period": "week"},
			},
		}
		result, err := server.handleGetAggregatedStats(context.Background(), request)
		if err != nil {
			t.Fatalf("handleGetAggregatedStats() error = %v", err)
		}
		if result.IsError {
			t.Fatal("handleGetAggregatedStats() returned error result")
		}
		if mock.lastPeriod != domain.PeriodWeek {
			t.Errorf("period = %q, want week", mock.lastPeriod)
		}
		got := resultJSON(t, result)
		if got["mostUsedTag"] != "project" {
			t.Errorf("mostUsedTag = %v, want project", got["mostUsedTag"])
		}
	})

	t.Run("invalid period", func(t *testing.T) {
		request := mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Arguments: map[string]interface{}{"period": "fortnight"},
			},
		}
		result, err := server.handleGetAggregatedStats(context.Background(), request)
		if err != nil {
			t.Fatalf("handleGetAggregatedStats() error = %v", err)
		}
		if !result.IsError {
			t.Error("handleGetAggregatedStats() should reject unknown periods")
		}
	})

	t.Run("missing period", func(t *testing.T) {
		result, err := server.handleGetAggregatedStats(context.Background(), mcp.CallToolRequest{})
		if err != nil {
			t.Fatalf("handleGetAggregatedStats() error = %v", err)
		}
		if !result.IsError {
			t.Error("handleGetAggregatedStats() should require period")
		}
	})
}

func TestServer_handleGetTimeline(t *testing.T) {
	mock := &mockStateProvider{
		timeline: []domain.TimelineEntry{{ID: "b"}, {ID: "a"}},
	}
	server := NewServer(mock, testutil.FixedClock())

	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: map[string]interface{}{"limit": float64(1)},
		},
	}
	result, err := server.handleGetTimeline(context.Background(), request)
	if err != nil {
		t.Fatalf("handleGetTimeline() error = %v", err)
	}
	if mock.lastLimit != 1 {
		t.Errorf("limit = %d, want 1", mock.lastLimit)
	}
	if got := resultJSON(t, result); got["count"] != float64(1) {
		t.Errorf("count = %v, want 1", got["count"])
	}

	result, _ = server.handleGetTimeline(context.Background(), mcp.CallToolRequest{})
	if mock.lastLimit != defaultTimelineLimit || result.IsError {
		t.Errorf("default limit = %d, want %d", mock.lastLimit, defaultTimelineLimit)
	}
}

func TestServer_controlHandler(t *testing.T) {
	mock := &mockStateProvider{}
	server := NewServer(mock, testutil.FixedClock())

	result, err := server.controlHandler("start_tracking", mock.StartTracking)(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("start_tracking error = %v", err)
	}
	if got := resultJSON(t, result); got["is_tracking"] != true {
		t.Errorf("is_tracking = %v after start, want true", got["is_tracking"])
	}

	mock.controlErr = domain.ErrNotTracking
	result, err = server.controlHandler("pause_tracking", mock.PauseTracking)(context.Background(), mcp.CallToolRequest{})
	if err != nil {
		t.Fatalf("pause_tracking error = %v", err)
	}
	if !result.IsError {
		t.Error("pause_tracking should report provider errors as tool errors")
	}
	if len(mock.calls) != 2 || !errors.Is(mock.controlErr, domain.ErrNotTracking) {
		t.Errorf("calls = %v", mock.calls)
	}
}

func TestServer_Stop(t *testing.T) {
	server := NewServer(&mockStateProvider{}, testutil.FixedClock())

	// Stop before Start should not panic
	err := server.Stop()
	if err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
