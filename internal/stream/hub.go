package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// clientBuffer is the per-client channel capacity. Slow clients
	// drop live events; the catchup replay on reconnect recovers them.
	clientBuffer = 256

	// DefaultRetention keeps a closed stream available for catchup
	// before the hub forgets it.
	DefaultRetention = 60 * time.Second
)

// Stream is the broadcast fan-out for one chat turn. Events published
// to it are appended to an in-order history and forwarded to every
// subscribed client.
type Stream struct {
	id     string
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]chan Event
	history []Event
	closed  bool
	cancel  context.CancelFunc
}

// Publish marshals payload and broadcasts it to all subscribers. Events
// published after Close are dropped.
func (s *Stream) Publish(eventType string, payload any) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		s.logger.Error("failed to build stream event", "error", err, "event_type", eventType, "stream_id", s.id)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.history = append(s.history, event)
	for clientID, ch := range s.clients {
		select {
		case ch <- event:
		default:
			// Buffer full. The client recovers via catchup on reconnect.
			s.logger.Debug("dropping event for slow client", "client_id", clientID, "event_type", eventType)
		}
	}
}

// Subscribe registers a client and returns the events published so far
// plus a live channel. The channel closes when the stream closes; a
// subscription to an already-closed stream gets the full history and an
// immediately-closed channel.
func (s *Stream) Subscribe(clientID string) ([]Event, <-chan Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	replay := make([]Event, len(s.history))
	copy(replay, s.history)

	ch := make(chan Event, clientBuffer)
	if s.closed {
		close(ch)
		return replay, ch
	}
	s.clients[clientID] = ch
	return replay, ch
}

// Unsubscribe removes a client. Safe to call after Close.
func (s *Stream) Unsubscribe(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.clients[clientID]; ok {
		delete(s.clients, clientID)
		close(ch)
	}
}

// Cancel requests cooperative cancellation of the turn feeding this
// stream. The turn stops at its next checkpoint; the stream stays open
// until the engine closes it.
func (s *Stream) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Close ends the stream, closing every subscriber channel. The history
// survives for catchup until the hub's retention lapses.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for clientID, ch := range s.clients {
		delete(s.clients, clientID)
		close(ch)
	}
}

// Hub tracks the active (or recently closed) stream per session.
type Hub struct {
	logger    *slog.Logger
	retention time.Duration

	mu      sync.RWMutex
	streams map[string]*Stream
}

// NewHub creates a hub with the default retention.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:    logger,
		retention: DefaultRetention,
		streams:   make(map[string]*Stream),
	}
}

// Open registers a fresh stream for a session's turn, replacing any
// retained stream from the previous turn. cancel is the turn's
// advisory cancellation hook, invoked by Stream.Cancel.
func (h *Hub) Open(sessionID string, cancel context.CancelFunc) *Stream {
	s := &Stream{
		id:      sessionID,
		logger:  h.logger,
		clients: make(map[string]chan Event),
		cancel:  cancel,
	}

	h.mu.Lock()
	prev := h.streams[sessionID]
	h.streams[sessionID] = s
	h.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return s
}

// Get returns the session's stream, or nil if none is live or retained.
func (h *Hub) Get(sessionID string) *Stream {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.streams[sessionID]
}

// Release closes the stream and forgets it after the retention window,
// unless a newer stream has replaced it in the meantime.
func (h *Hub) Release(s *Stream) {
	s.Close()
	time.AfterFunc(h.retention, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.streams[s.id] == s {
			delete(h.streams, s.id)
		}
	})
}
