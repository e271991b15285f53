package turn

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"inkwell/internal/domain/models/chat"
)

const (
	// DefaultAutosaveDelay is how long a completed turn waits before its
	// session is flushed. A following turn inside the window supersedes
	// the pending save.
	DefaultAutosaveDelay = 2 * time.Second

	autosaveTimeout = 15 * time.Second
)

// SaveFunc persists a session's messages.
type SaveFunc func(ctx context.Context, session *chat.Session) error

// saveTimer is the stoppable handle behind a scheduled save.
// *time.Timer satisfies it.
type saveTimer interface {
	Stop() bool
}

// Autosaver debounces session persistence as a cancel-on-supersede
// timer task: each Schedule cancels the previous pending save for the
// same session and starts a fresh delay. The timer constructor is
// injectable so tests drive logical time instead of sleeping.
type Autosaver struct {
	delay    time.Duration
	save     SaveFunc
	newTimer func(d time.Duration, f func()) saveTimer
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]*pendingSave
}

type pendingSave struct {
	timer   saveTimer
	session *chat.Session
}

// NewAutosaver creates an autosaver backed by real timers.
func NewAutosaver(delay time.Duration, save SaveFunc, logger *slog.Logger) *Autosaver {
	return &Autosaver{
		delay: delay,
		save:  save,
		newTimer: func(d time.Duration, f func()) saveTimer {
			return time.AfterFunc(d, f)
		},
		logger:  logger,
		pending: make(map[string]*pendingSave),
	}
}

// Schedule queues a save for the session, superseding any pending one.
func (a *Autosaver) Schedule(session *chat.Session) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if prev, ok := a.pending[session.ID]; ok {
		prev.timer.Stop()
	}
	p := &pendingSave{session: session}
	p.timer = a.newTimer(a.delay, func() { a.fire(session.ID, p) })
	a.pending[session.ID] = p
}

// Flush runs the pending save for the session immediately, if any.
// Call before reloading a session so a fresh turn never starts from
// stale history.
func (a *Autosaver) Flush(ctx context.Context, sessionID string) {
	a.mu.Lock()
	p, ok := a.pending[sessionID]
	if ok {
		p.timer.Stop()
		delete(a.pending, sessionID)
	}
	a.mu.Unlock()

	if !ok {
		return
	}
	if err := a.save(ctx, p.session); err != nil {
		a.logger.Error("session flush failed", "error", err, "session_id", sessionID)
	}
}

// FlushAll drains every pending save. Used on shutdown.
func (a *Autosaver) FlushAll(ctx context.Context) {
	a.mu.Lock()
	drained := make([]*pendingSave, 0, len(a.pending))
	for id, p := range a.pending {
		p.timer.Stop()
		delete(a.pending, id)
		drained = append(drained, p)
	}
	a.mu.Unlock()

	for _, p := range drained {
		if err := a.save(ctx, p.session); err != nil {
			a.logger.Error("session flush failed", "error", err, "session_id", p.session.ID)
		}
	}
}

// fire is the timer callback. The identity check makes a timer that
// fired concurrently with its own supersession a no-op.
func (a *Autosaver) fire(sessionID string, p *pendingSave) {
	a.mu.Lock()
	if a.pending[sessionID] != p {
		a.mu.Unlock()
		return
	}
	delete(a.pending, sessionID)
	a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), autosaveTimeout)
	defer cancel()
	if err := a.save(ctx, p.session); err != nil {
		a.logger.Error("session autosave failed", "error", err, "session_id", sessionID)
	}
}
