// Package mcp provides the MCP (Model Context Protocol) server implementation.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/ports"
)

const defaultTimelineLimit = 20

// Server implements the MCP server using mark3labs/mcp-go.
type Server struct {
	server        *server.MCPServer
	stateProvider ports.MCPStateProvider
	clock         ports.Clock
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewServer creates a new MCP server instance.
func NewServer(stateProvider ports.MCPStateProvider, clock ports.Clock) *Server {
	s := &Server{
		stateProvider: stateProvider,
		clock:         clock,
	}

	s.server = server.NewMCPServer(
		"notetime",
		"1.0.0",
		server.WithLogging(),
	)

	s.registerTools()

	return s
}

// registerTools registers all available MCP tools.
func (s *Server) registerTools() {
	s.server.AddTool(
		mcp.NewTool(
			"get_tracking_state",
			mcp.WithDescription("Get the tracker state: whether tracking is on, paused and why, and the current note session"),
		),
		s.handleGetTrackingState,
	)

	periods := make([]string, len(domain.ValidPeriods))
	for i, p := range domain.ValidPeriods {
		periods[i] = string(p)
	}
	statsTool := mcp.NewTool(
		"get_aggregated_stats",
		mcp.WithDescription("Get time spent per category, file, folder and tag over a period"),
		mcp.WithString(
			"period",
			mcp.Required(),
			mcp.Description("The period to aggregate: today, week, month or all"),
			mcp.Enum(periods...),
		),
	)
	s.server.AddTool(statsTool, s.handleGetAggregatedStats)

	s.server.AddTool(
		mcp.NewTool(
			"get_today_stats",
			mcp.WithDescription("Get today's stats, falling back to the most recent day with activity"),
		),
		s.handleGetTodayStats,
	)

	timelineTool := mcp.NewTool(
		"get_timeline",
		mcp.WithDescription("Get the most recent note sessions, newest first"),
		mcp.WithNumber(
			"limit",
			mcp.Description("Maximum number of sessions to return (default: 20)"),
		),
	)
	s.server.AddTool(timelineTool, s.handleGetTimeline)

	for _, c := range []struct {
		name, desc string
		fn         func(context.Context) error
	}{
		{"start_tracking", "Start tracking time spent on notes", s.stateProvider.StartTracking},
		{"stop_tracking", "Stop tracking and close the current session", s.stateProvider.StopTracking},
		{"pause_tracking", "Pause tracking manually", s.stateProvider.PauseTracking},
		{"resume_tracking", "Resume paused tracking", s.stateProvider.ResumeTracking},
	} {
		s.server.AddTool(
			mcp.NewTool(c.name, mcp.WithDescription(c.desc)),
			s.controlHandler(c.name, c.fn),
		)
	}
}

// Start serves MCP requests over stdio until ctx is cancelled, Stop is
// called or stdin is closed.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	stdio := server.NewStdioServer(s.server)
	return stdio.Listen(s.ctx, os.Stdin, os.Stdout)
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// IsRunning returns true if the server is active.
func (s *Server) IsRunning() bool {
	if s.ctx == nil {
		return false
	}
	return s.ctx.Err() == nil
}

// Ensure Server implements ports.MCPHandler.
var _ ports.MCPHandler = (*Server)(nil)

// handleGetTrackingState handles the get_tracking_state tool.
func (s *Server) handleGetTrackingState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, err := s.stateProvider.TrackingState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tracking state: %w", err)
	}

	result := map[string]interface{}{
		"status":          domain.GetStatusLabel(state.Status()),
		"is_tracking":     state.IsTracking,
		"is_paused":       state.IsPaused,
		"current_session": nil,
	}
	if state.IsPaused {
		result["pause_reason"] = domain.GetPauseReasonLabel(state.PauseReason)
	}
	if !state.LastActiveTime.IsZero() {
		result["last_active"] = state.LastActiveTime.Format("2006-01-02T15:04:05")
	}

	if session := state.CurrentSession; session != nil {
		result["current_session"] = map[string]interface{}{
			"id":         session.ID,
			"file":       session.File.Path,
			"folder":     session.File.Folder,
			"tags":       session.Tags,
			"is_active":  session.IsActive,
			"started_at": session.StartTime.Format("2006-01-02T15:04:05"),
			"elapsed":    session.Elapsed(s.clock.Now()).String(),
		}
	}

	return jsonResult(result)
}

// handleGetAggregatedStats handles the get_aggregated_stats tool.
func (s *Server) handleGetAggregatedStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := request.RequireString("period")
	if err != nil {
		return mcp.NewToolResultError("period is required: " + err.Error()), nil
	}
	period, err := domain.ParsePeriod(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	stats, err := s.stateProvider.AggregatedStats(ctx, period, s.clock.Now())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get stats: %v", err)), nil
	}
	return jsonResult(stats)
}

// handleGetTodayStats handles the get_today_stats tool.
func (s *Server) handleGetTodayStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.stateProvider.TodayStats(ctx, s.clock.Now())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get today's stats: %v", err)), nil
	}
	return jsonResult(stats)
}

// handleGetTimeline handles the get_timeline tool.
func (s *Server) handleGetTimeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", defaultTimelineLimit)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}

	entries, err := s.stateProvider.Timeline(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get timeline: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}

// controlHandler wraps a state-changing call and reports the new state.
func (s *Server) controlHandler(name string, fn func(context.Context) error) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := fn(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", name, err)), nil
		}
		return s.handleGetTrackingState(ctx, request)
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
