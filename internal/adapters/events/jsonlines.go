// Package events provides event sources that decode host activity events
// from byte streams.
package events

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/logging"
	"github.com/xvierd/notetime/internal/ports"
)

// maxLineSize bounds a single encoded event.
const maxLineSize = 1 << 20

// JSONLines reads one JSON-encoded domain.ActivityEvent per line.
// Blank lines are skipped; undecodable lines are logged and skipped.
type JSONLines struct {
	r      io.Reader
	logger logging.Logger
}

// Ensure JSONLines implements ports.EventSource.
var _ ports.EventSource = (*JSONLines)(nil)

// NewJSONLines creates an event source reading from r.
func NewJSONLines(r io.Reader, logger logging.Logger) *JSONLines {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &JSONLines{r: r, logger: logger}
}

// Run emits events until r is exhausted or ctx is cancelled. Reads happen on
// a separate goroutine, so cancellation does not wait for a blocked reader.
func (s *JSONLines) Run(ctx context.Context, emit func(domain.ActivityEvent)) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.r)
		sc.Buffer(make([]byte, 0, 4096), maxLineSize)
		for sc.Scan() {
			select {
			case lines <- append([]byte(nil), sc.Bytes()...):
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var raw []byte
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("failed to read events: %w", err)
				}
				return ctx.Err()
			}
			raw = b
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line++
		if len(raw) == 0 {
			continue
		}

		var ev domain.ActivityEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.logger.Warn("skipping undecodable event", "line", line, "error", err)
			continue
		}
		if err := ev.Validate(); err != nil {
			s.logger.Warn("skipping event", "line", line, "error", err)
			continue
		}
		emit(ev)
	}
}
