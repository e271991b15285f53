package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/domain/models/chat"
	"inkwell/internal/httputil"
	"inkwell/internal/stream"
)

// keepAliveInterval is how often the stream handler writes an SSE
// comment to keep proxies from reaping an idle connection.
const keepAliveInterval = 10 * time.Second

// SessionReader is the ownership check the stream handler performs
// before attaching a client to a session's event stream.
type SessionReader interface {
	Get(ctx context.Context, sessionID, userID string) (*chat.Session, error)
}

// StreamHandler serves the SSE endpoint for chat turns.
type StreamHandler struct {
	hub      *stream.Hub
	sessions SessionReader
	debug    bool
	logger   *slog.Logger
}

// NewStreamHandler creates a stream handler. debug adds SSE id lines
// so events can be correlated with server logs during development.
func NewStreamHandler(hub *stream.Hub, sessions SessionReader, debug bool, logger *slog.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, sessions: sessions, debug: debug, logger: logger}
}

// Stream replays the active turn's events and follows with live ones.
// A reconnecting client gets the full history back, so no delta is
// ever lost to a dropped connection. The stream ends when the turn's
// broadcast closes or the client goes away.
// GET /api/sessions/{id}/stream
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	userID := httputil.GetUserID(r)

	if _, err := h.sessions.Get(r.Context(), sessionID, userID); err != nil {
		httputil.RespondDomainError(w, h.logger, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.RespondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	clientID := uuid.New().String()

	st := h.hub.Get(sessionID)
	if st == nil {
		// Establish the SSE connection first, then report over it, so
		// EventSource clients see an event instead of an opaque error.
		h.writeEvent(w, stream.Event{Type: stream.EventTurnError, Data: []byte(`{"error":"no active stream for this session"}`)}, 0)
		flusher.Flush()
		return
	}

	replay, live := st.Subscribe(clientID)
	defer st.Unsubscribe(clientID)

	h.logger.Debug("sse client attached",
		"session_id", sessionID,
		"client_id", clientID,
		"replayed", len(replay),
	)

	seq := 0
	for _, ev := range replay {
		h.writeEvent(w, ev, seq)
		seq++
	}
	flusher.Flush()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, open := <-live:
			if !open {
				return
			}
			h.writeEvent(w, ev, seq)
			seq++
			flusher.Flush()
		case <-ticker.C:
			// SSE comment line; clients ignore it.
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (h *StreamHandler) writeEvent(w http.ResponseWriter, ev stream.Event, seq int) {
	if h.debug {
		fmt.Fprintf(w, "id: %d\n", seq)
	}
	fmt.Fprint(w, ev.Format())
}
