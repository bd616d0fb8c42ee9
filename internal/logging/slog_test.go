package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTabHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			level:   slog.LevelInfo,
			message: "session ended",
			want:    "2024-06-15T14:30:45.000Z\tINFO\tsession ended\n",
		},
		{
			name:    "with record attrs",
			level:   slog.LevelWarn,
			message: "tag extraction failed",
			attrs:   []slog.Attr{slog.String("path", "notes/a.md"), slog.Int("tags", 0)},
			want:    "2024-06-15T14:30:45.000Z\tWARN\ttag extraction failed\tpath=notes/a.md\ttags=0\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := NewHandler(&buf, slog.LevelDebug)

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)

			require.NoError(t, h.Handle(context.Background(), r))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestTabHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(&buf, slog.LevelDebug).WithAttrs([]slog.Attr{slog.String("component", "tracker")})

	r := slog.NewRecord(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), slog.LevelInfo, "paused", 0)
	require.NoError(t, h.Handle(context.Background(), r))

	assert.Equal(t, "2024-01-01T00:00:00.000Z\tINFO\tpaused\tcomponent=tracker\n", buf.String())
}

func TestTabHandler_Enabled(t *testing.T) {
	h := NewHandler(&bytes.Buffer{}, slog.LevelWarn)

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestOpen_WritesAndRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notetime.log")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), maxLogSize+1), 0o644))

	logger, closeFn, err := Open(dir, "info", false)
	require.NoError(t, err)
	logger.Info("started", "port", 27183)
	require.NoError(t, closeFn())

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "oversized log should be rotated")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "started\tport=27183")
}
