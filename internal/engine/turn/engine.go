// Package turn drives chat turns: one user utterance in, zero or more
// tool-mediated provider round trips, one final model message out. The
// loop is an explicit state machine (idle, sending, awaiting tool
// results, throttled) with a sequential tool-call valve, cooperative
// cancellation checkpoints, and per-turn SSE broadcasting.
package turn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"inkwell/internal/config"
	"inkwell/internal/domain"
	"inkwell/internal/domain/models/chat"
	"inkwell/internal/domain/services"
	"inkwell/internal/provider"
	"inkwell/internal/stream"
	"inkwell/internal/toolexec"
)

const (
	// DefaultToolCallLimit is how many sequential tool rounds a
	// conversation may run before the loop pauses for a decision.
	DefaultToolCallLimit = 10

	// ThrottleStep is how much a "continue" decision raises the limit.
	ThrottleStep = 10
)

// Store is the slice of session persistence the engine needs. The
// session service implements it, routing incognito sessions to memory
// and ordinary ones to postgres.
type Store interface {
	// Get returns the session. Returns domain.ErrNotFound if missing.
	Get(ctx context.Context, sessionID, userID string) (*chat.Session, error)
	// SaveMessages flushes the session's message history.
	SaveMessages(ctx context.Context, session *chat.Session) error
}

// ToolExecutor runs a round of model-requested tool calls.
// *toolexec.Client implements it.
type ToolExecutor interface {
	Execute(ctx context.Context, req *toolexec.ExecuteRequest) (*toolexec.ExecuteResponse, error)
}

// Engine runs at most one turn per session at a time.
type Engine struct {
	gateway  provider.Gateway
	tools    ToolExecutor
	store    Store
	story    services.StoryStore
	hub      *stream.Hub
	autosave *Autosaver
	logger   *slog.Logger

	mu      sync.Mutex
	active  map[string]*activeTurn
	budgets map[string]*budget
}

// activeTurn is the handle for one in-flight turn.
type activeTurn struct {
	sessionID string
	gate      *Gate
	cancel    context.CancelFunc
	done      chan struct{}

	mu    sync.Mutex
	state State
}

func (t *activeTurn) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// State returns the turn's current lifecycle state.
func (t *activeTurn) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// NewEngine creates a chat turn engine. gateway is the CHAT-role
// provider binding.
func NewEngine(
	gateway provider.Gateway,
	tools ToolExecutor,
	store Store,
	story services.StoryStore,
	hub *stream.Hub,
	autosave *Autosaver,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		gateway:  gateway,
		tools:    tools,
		store:    store,
		story:    story,
		hub:      hub,
		autosave: autosave,
		logger:   logger,
		active:   make(map[string]*activeTurn),
		budgets:  make(map[string]*budget),
	}
}

// SendRequest starts a turn from a fresh user utterance.
type SendRequest struct {
	SessionID       string
	UserID          string
	Text            string
	ActiveChapterID string
}

// Validate checks the request fields.
func (r *SendRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.SessionID, validation.Required),
		validation.Field(&r.Text, validation.Required, validation.Length(1, config.MaxUserMessageLength)),
	)
}

// SendResult identifies the appended user message and the message the
// model streams into, so clients can render both before the turn ends.
type SendResult struct {
	UserMessageID  string `json:"user_message_id"`
	ModelMessageID string `json:"model_message_id"`
	StreamURL      string `json:"stream_url"`
}

// Send appends the user message and starts the turn in the background.
// Returns domain.ErrBusy if a turn is already in flight.
func (e *Engine) Send(ctx context.Context, req *SendRequest) (*SendResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	e.autosave.Flush(ctx, req.SessionID)
	sess, err := e.store.Get(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}

	userMsg := chat.Message{
		ID:   uuid.NewString(),
		Role: chat.RoleUser,
		Text: req.Text,
	}
	return e.start(sess, userMsg, req.ActiveChapterID)
}

// Regenerate truncates history to just before the most recent user
// message and re-runs the turn with it, discarding the previous answer
// including any tool rounds it produced.
func (e *Engine) Regenerate(ctx context.Context, sessionID, userID, activeChapterID string) (*SendResult, error) {
	e.autosave.Flush(ctx, sessionID)
	sess, err := e.store.Get(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	idx := sess.LastUserIndex()
	if idx < 0 {
		return nil, &domain.ValidationError{Message: "session has no user message to regenerate"}
	}
	userMsg := sess.Messages[idx]
	sess.Messages = sess.Messages[:idx]

	return e.start(sess, userMsg, activeChapterID)
}

// start registers the turn under the single-flight guard and launches
// the loop. The turn runs on a background context so it survives the
// originating HTTP request; Stop cancels it.
func (e *Engine) start(sess *chat.Session, userMsg chat.Message, activeChapterID string) (*SendResult, error) {
	turnCtx, cancel := context.WithCancel(context.Background())

	h := &activeTurn{
		sessionID: sess.ID,
		gate:      newGate(),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateSending,
	}

	e.mu.Lock()
	if _, busy := e.active[sess.ID]; busy {
		e.mu.Unlock()
		cancel()
		return nil, &domain.BusyError{Message: "a turn is already in flight for this session"}
	}
	e.active[sess.ID] = h
	bud := e.budgets[sess.ID]
	if bud == nil {
		bud = newBudget()
		e.budgets[sess.ID] = bud
	}
	e.mu.Unlock()

	sess.Messages = append(sess.Messages, userMsg)
	modelID := uuid.NewString()

	st := e.hub.Open(sess.ID, cancel)

	e.logger.Info("chat turn started",
		"session_id", sess.ID,
		"user_message_id", userMsg.ID,
		"model_message_id", modelID,
		"incognito", sess.Incognito,
	)

	go e.run(turnCtx, h, sess, st, bud, modelID, activeChapterID)

	return &SendResult{
		UserMessageID:  userMsg.ID,
		ModelMessageID: modelID,
		StreamURL:      fmt.Sprintf("/api/sessions/%s/stream", sess.ID),
	}, nil
}

// run is the turn loop. Each iteration opens a fresh provider session
// over the full updated history.
func (e *Engine) run(ctx context.Context, h *activeTurn, sess *chat.Session, st *stream.Stream, bud *budget, modelID, activeChapterID string) {
	defer e.finish(h, sess, st)

	toolDefs := toolexec.DefaultTools(sess.AllowWebSearch)
	system := e.resolveSystemPrompt(ctx, sess, activeChapterID)

	for {
		// Cancellation checkpoint: before starting a network call.
		if ctx.Err() != nil {
			e.markStopped(h, sess, st, modelID)
			return
		}

		h.setState(StateSending)
		st.Publish(stream.EventMessageStart, stream.MessageStartEvent{
			MessageID: modelID,
			Role:      string(chat.RoleModel),
		})

		psess := e.gateway.NewSession(provider.SessionRequest{
			System:  system,
			History: sess.Messages,
			Tools:   toolDefs,
		})
		reply, err := psess.Send(ctx, nil, func(d provider.StreamDelta) {
			switch d.Kind {
			case provider.DeltaText:
				st.Publish(stream.EventTextDelta, stream.TextDeltaEvent{MessageID: modelID, Text: d.Text})
			case provider.DeltaThinking:
				st.Publish(stream.EventThinkingDelta, stream.ThinkingDeltaEvent{MessageID: modelID, Text: d.Text})
			}
		})

		// Cancellation checkpoint: a reply arriving after cancellation is
		// discarded, error or not.
		if ctx.Err() != nil {
			e.markStopped(h, sess, st, modelID)
			return
		}
		if err != nil {
			e.failTurn(h, sess, st, modelID, err)
			return
		}

		model := chat.Message{
			ID:        modelID,
			Role:      chat.RoleModel,
			Text:      reply.Text,
			Thinking:  reply.Thinking,
			ToolCalls: reply.ToolCalls,
		}

		if !model.HasToolCalls() {
			// Tool-call-free response: finalize and re-arm the valve.
			sess.Messages = append(sess.Messages, model)
			bud.rearm()
			st.Publish(stream.EventTurnComplete, stream.TurnCompleteEvent{
				SessionID: sess.ID,
				MessageID: modelID,
				Status:    "complete",
			})
			h.setState(StateComplete)
			e.logger.Info("chat turn complete", "session_id", sess.ID, "message_id", modelID)
			return
		}

		bud.calls++
		sess.Messages = append(sess.Messages, model)

		calls := make([]stream.ToolCallInfo, len(model.ToolCalls))
		for i, c := range model.ToolCalls {
			calls[i] = stream.ToolCallInfo{ID: c.ID, Name: c.Name}
		}
		st.Publish(stream.EventToolCalls, stream.ToolCallsEvent{MessageID: modelID, Calls: calls})

		if bud.exhausted() {
			h.setState(StateThrottled)
			st.Publish(stream.EventThrottleGate, stream.ThrottleGateEvent{
				SessionID: sess.ID,
				CallsMade: bud.calls,
				Limit:     bud.limit,
			})
			e.logger.Info("tool-call limit reached, awaiting decision",
				"session_id", sess.ID,
				"calls", bud.calls,
				"limit", bud.limit,
			)

			decision, derr := h.gate.Await(ctx)
			if derr != nil || decision == DecisionStop {
				e.markStopped(h, sess, st, modelID)
				return
			}
			bud.apply(decision)
		}

		h.setState(StateAwaitingTools)

		// Cancellation checkpoint: before the tool execution call.
		if ctx.Err() != nil {
			e.markStopped(h, sess, st, modelID)
			return
		}

		execResp, err := e.tools.Execute(ctx, &toolexec.ExecuteRequest{
			Messages:        toolexec.Normalize(sess.Messages),
			ActiveChapterID: activeChapterID,
		})

		if ctx.Err() != nil {
			e.markStopped(h, sess, st, modelID)
			return
		}
		if err != nil {
			e.failTurn(h, sess, st, modelID, err)
			return
		}
		if !execResp.OK {
			// Executor refused the round. End the loop quietly with the
			// tool-call message as the last entry so the user can see
			// what was attempted.
			e.logger.Warn("tool execution reported failure, ending turn",
				"session_id", sess.ID,
				"message_id", modelID,
			)
			st.Publish(stream.EventTurnComplete, stream.TurnCompleteEvent{
				SessionID: sess.ID,
				MessageID: modelID,
				Status:    "complete",
			})
			h.setState(StateComplete)
			return
		}

		// Cancellation checkpoint: before appending results.
		if ctx.Err() != nil {
			e.markStopped(h, sess, st, modelID)
			return
		}

		appended := toolexec.AppendedToMessages(execResp.AppendedMessages)
		sess.Messages = append(sess.Messages, appended...)
		st.Publish(stream.EventToolResults, stream.ToolResultsEvent{
			Messages:     appended,
			StoryChanged: execResp.StoryChanged(),
		})

		if execResp.StoryChanged() {
			// Refresh from the store rather than merging local state, and
			// fold the fresh view into the next round's context. On failure
			// the previous context stands.
			state, err := e.story.Refresh(ctx, sess.StoryID, sess.UserID)
			if err != nil {
				e.logger.Error("story refresh after tool mutation failed",
					"error", err,
					"story_id", sess.StoryID,
				)
			} else {
				system = composeSystemPrompt(sess, state, activeChapterID)
			}
			st.Publish(stream.EventStoryChanged, stream.StoryChangedEvent{StoryID: sess.StoryID})
		}

		// Next round streams into a fresh message.
		modelID = uuid.NewString()
	}
}

// Stop requests cooperative cancellation of the session's active turn.
// Advisory: the turn halts at its next checkpoint and already-appended
// messages remain. Returns false when no turn is in flight.
func (e *Engine) Stop(sessionID string) bool {
	e.mu.Lock()
	h := e.active[sessionID]
	e.mu.Unlock()
	if h == nil {
		return false
	}
	h.cancel()
	return true
}

// ResolveThrottle delivers the user's decision to a turn paused at the
// tool-call gate.
func (e *Engine) ResolveThrottle(sessionID string, d Decision) error {
	e.mu.Lock()
	h := e.active[sessionID]
	e.mu.Unlock()

	if h == nil {
		return &domain.NotFoundError{Message: "no turn in flight for this session"}
	}
	if h.State() != StateThrottled {
		return &domain.ValidationError{Message: "turn is not awaiting a throttle decision"}
	}
	if !h.gate.Resolve(d) {
		return &domain.ConflictError{
			Message:      "throttle decision already received",
			ResourceType: "session",
			ResourceID:   sessionID,
		}
	}
	return nil
}

// State reports the session's turn state, StateIdle if none is active.
func (e *Engine) State(sessionID string) State {
	e.mu.Lock()
	h := e.active[sessionID]
	e.mu.Unlock()
	if h == nil {
		return StateIdle
	}
	return h.State()
}

// Wait returns a channel closed when the session's active turn ends.
// Returns an already-closed channel if no turn is in flight.
func (e *Engine) Wait(sessionID string) <-chan struct{} {
	e.mu.Lock()
	h := e.active[sessionID]
	e.mu.Unlock()
	if h == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return h.done
}

// Forget drops per-session engine state. Called when the session is
// deleted.
func (e *Engine) Forget(sessionID string) {
	e.mu.Lock()
	delete(e.budgets, sessionID)
	e.mu.Unlock()
}

// failTurn converts a provider or executor failure into a terminal
// model message carrying the error text and any structured detail the
// provider returned. The loop never auto-retries.
func (e *Engine) failTurn(h *activeTurn, sess *chat.Session, st *stream.Stream, messageID string, callErr error) {
	msg := chat.Message{
		ID:        messageID,
		Role:      chat.RoleModel,
		Text:      fmt.Sprintf("Request failed: %v", callErr),
		IsError:   true,
		Traceback: provider.ErrorDetail(callErr),
	}
	sess.Messages = append(sess.Messages, msg)

	st.Publish(stream.EventTurnError, stream.TurnErrorEvent{
		SessionID: sess.ID,
		MessageID: messageID,
		Error:     msg.Text,
	})
	h.setState(StateErrored)

	e.logger.Error("chat turn failed",
		"error", callErr,
		"session_id", sess.ID,
		"message_id", messageID,
	)
}

// markStopped ends a cancelled turn without error surface.
func (e *Engine) markStopped(h *activeTurn, sess *chat.Session, st *stream.Stream, messageID string) {
	st.Publish(stream.EventTurnComplete, stream.TurnCompleteEvent{
		SessionID: sess.ID,
		MessageID: messageID,
		Status:    "stopped",
	})
	h.setState(StateStopped)
	e.logger.Info("chat turn stopped", "session_id", sess.ID)
}

// finish releases the single-flight guard, persists the session, and
// closes the stream.
func (e *Engine) finish(h *activeTurn, sess *chat.Session, st *stream.Stream) {
	e.mu.Lock()
	delete(e.active, sess.ID)
	e.mu.Unlock()

	e.persist(sess)
	e.hub.Release(st)
	close(h.done)
}

// persist flushes incognito sessions straight to the in-memory store
// and debounces everything else.
func (e *Engine) persist(sess *chat.Session) {
	if sess.Incognito {
		ctx, cancel := context.WithTimeout(context.Background(), autosaveTimeout)
		defer cancel()
		if err := e.store.SaveMessages(ctx, sess); err != nil {
			e.logger.Error("incognito session save failed", "error", err, "session_id", sess.ID)
		}
		return
	}
	e.autosave.Schedule(sess)
}
