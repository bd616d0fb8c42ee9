// Package hostlink connects the tracker to the host editor plugin over a
// local WebSocket. The plugin streams activity events in; tracker events are
// pushed back out.
package hostlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/logging"
	"github.com/xvierd/notetime/internal/ports"
)

// OutgoingMsg is pushed to the plugin for every tracker event.
type OutgoingMsg struct {
	Type  string               `json:"type"`
	Event *domain.TrackerEvent `json:"event,omitempty"`
}

// MsgTrackerEvent is the OutgoingMsg type carrying a tracker event.
const MsgTrackerEvent = "tracker_event"

const (
	readLimit    = 1 << 20
	writeTimeout = 5 * time.Second
	outboxSize   = 64
)

// Server manages the WebSocket connection to the host plugin. Only one
// plugin connection is kept; a new connection replaces the old one.
type Server struct {
	port   int
	logger logging.Logger

	events chan domain.ActivityEvent

	mu     sync.Mutex
	conn   *websocket.Conn
	outbox chan OutgoingMsg
}

// Ensure Server implements ports.EventSource.
var _ ports.EventSource = (*Server)(nil)

// New creates a new Server listening on 127.0.0.1:port when run.
func New(port int, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Server{
		port:   port,
		logger: logger,
		events: make(chan domain.ActivityEvent, 256),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Connected reports whether a plugin is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send queues a tracker event for the connected plugin. It never blocks;
// events are dropped when no plugin is connected or the outbox is full.
func (s *Server) Send(ev domain.TrackerEvent) {
	s.mu.Lock()
	outbox := s.outbox
	s.mu.Unlock()
	if outbox == nil {
		return
	}
	select {
	case outbox <- OutgoingMsg{Type: MsgTrackerEvent, Event: &ev}:
	default:
		s.logger.Warn("hostlink outbox full, dropping event", "kind", ev.Kind)
	}
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			s.logger.Error("websocket accept failed", "error", err)
			return
		}
		conn.SetReadLimit(readLimit)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		outbox := make(chan OutgoingMsg, outboxSize)
		s.mu.Lock()
		if s.conn != nil {
			s.logger.Info("host plugin connection replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.outbox = outbox
		s.mu.Unlock()

		s.logger.Info("host plugin connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.outbox = nil
			}
			s.mu.Unlock()
			conn.CloseNow()
			s.logger.Info("host plugin disconnected")
		}()

		go s.writeLoop(ctx, conn, outbox)

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var ev domain.ActivityEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				s.logger.Warn("skipping undecodable event", "error", err)
				continue
			}
			if err := ev.Validate(); err != nil {
				s.logger.Warn("skipping event", "error", err)
				continue
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	})
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, outbox <-chan OutgoingMsg) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-outbox:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Error("failed to encode message", "error", err)
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.logger.Warn("failed to write to host plugin", "error", err)
				return
			}
		}
	}
}

// Run listens on the configured port and emits plugin events until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, emit func(domain.ActivityEvent)) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln, emit)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, emit func(domain.ActivityEvent)) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	s.logger.Info("hostlink listening", "addr", ln.Addr().String())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	for {
		select {
		case <-ctx.Done():
			srv.Close()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("hostlink server failed: %w", err)
		case ev := <-s.events:
			emit(ev)
		}
	}
}
