package turn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/chat"
	"inkwell/internal/domain/models/story"
	"inkwell/internal/provider"
	"inkwell/internal/stream"
	"inkwell/internal/toolexec"
)

// scriptedReply is one canned provider response. A non-nil block makes
// Send wait until the channel closes or the context is cancelled.
type scriptedReply struct {
	deltas []provider.StreamDelta
	reply  *provider.Reply
	err    error
	block  chan struct{}
}

func textReply(text string) scriptedReply {
	return scriptedReply{
		deltas: []provider.StreamDelta{{Kind: provider.DeltaText, Text: text}},
		reply:  &provider.Reply{Text: text},
	}
}

func toolCallReply(i int) scriptedReply {
	return scriptedReply{
		reply: &provider.Reply{
			Text: fmt.Sprintf("round %d", i),
			ToolCalls: []chat.ToolCall{
				{ID: fmt.Sprintf("call-%d", i), Name: "chapter_view", Args: map[string]any{}},
			},
		},
	}
}

// scriptedGateway plays back replies in order, then falls through to
// the repeat generator (or a plain text reply if none is set).
type scriptedGateway struct {
	mu        sync.Mutex
	script    []scriptedReply
	repeat    func(callIndex int) scriptedReply
	calls     int
	histories [][]chat.Message
}

func (g *scriptedGateway) push(replies ...scriptedReply) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.script = append(g.script, replies...)
}

func (g *scriptedGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *scriptedGateway) Name() string  { return "scripted" }
func (g *scriptedGateway) Model() string { return "test-model" }

func (g *scriptedGateway) Complete(ctx context.Context, req provider.CompleteRequest) (string, error) {
	return "completion", nil
}

func (g *scriptedGateway) NewSession(req provider.SessionRequest) provider.Session {
	g.mu.Lock()
	defer g.mu.Unlock()
	hist := make([]chat.Message, len(req.History))
	copy(hist, req.History)
	g.histories = append(g.histories, hist)
	return &scriptedSession{gw: g, history: hist}
}

type scriptedSession struct {
	gw      *scriptedGateway
	history []chat.Message
}

func (s *scriptedSession) History() []chat.Message { return s.history }

func (s *scriptedSession) Send(ctx context.Context, input *chat.Message, onDelta provider.DeltaFunc) (*provider.Reply, error) {
	s.gw.mu.Lock()
	idx := s.gw.calls
	s.gw.calls++
	var r scriptedReply
	switch {
	case len(s.gw.script) > 0:
		r = s.gw.script[0]
		s.gw.script = s.gw.script[1:]
	case s.gw.repeat != nil:
		r = s.gw.repeat(idx)
	default:
		r = textReply("done")
	}
	s.gw.mu.Unlock()

	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if onDelta != nil {
		for _, d := range r.deltas {
			onDelta(d)
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.reply, nil
}

// fakeExecutor answers every pending call in the request unless a
// scripted response is queued. A nil script entry means auto-answer.
type fakeExecutor struct {
	mu       sync.Mutex
	script   []*toolexec.ExecuteResponse
	err      error
	calls    int
	requests []*toolexec.ExecuteRequest
}

func (f *fakeExecutor) Execute(ctx context.Context, req *toolexec.ExecuteRequest) (*toolexec.ExecuteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)

	if f.err != nil {
		return nil, f.err
	}
	if len(f.script) > 0 {
		resp := f.script[0]
		f.script = f.script[1:]
		if resp != nil {
			return resp, nil
		}
	}

	last := req.Messages[len(req.Messages)-1]
	appended := make([]toolexec.WireMessage, 0, len(last.ToolCalls))
	for _, tc := range last.ToolCalls {
		appended = append(appended, toolexec.WireMessage{
			Role:       "tool",
			Content:    "ok",
			ToolCallID: tc.ID,
			Name:       tc.Function.Name,
		})
	}
	return &toolexec.ExecuteResponse{OK: true, AppendedMessages: appended}, nil
}

func (f *fakeExecutor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeStore keeps sessions in a map with copy-on-read semantics.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*chat.Session
	saves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*chat.Session)}
}

func cloneSession(s *chat.Session) *chat.Session {
	clone := *s
	clone.Messages = append([]chat.Message(nil), s.Messages...)
	return &clone
}

func (f *fakeStore) Get(ctx context.Context, sessionID, userID string) (*chat.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneSession(s), nil
}

func (f *fakeStore) SaveMessages(ctx context.Context, session *chat.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.sessions[session.ID] = cloneSession(session)
	return nil
}

func (f *fakeStore) seed(s *chat.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
}

func (f *fakeStore) snapshot(sessionID string) *chat.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneSession(f.sessions[sessionID])
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type fakeStory struct {
	mu        sync.Mutex
	refreshes int
}

func (f *fakeStory) GetChapter(ctx context.Context, chapterID, userID string) (*story.Chapter, error) {
	return &story.Chapter{ID: chapterID}, nil
}

func (f *fakeStory) UpdateChapterContent(ctx context.Context, chapterID, userID, content string) (*story.Chapter, error) {
	return &story.Chapter{ID: chapterID, Content: content}, nil
}

func (f *fakeStory) Refresh(ctx context.Context, storyID, userID string) (*story.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return &story.State{}, nil
}

func (f *fakeStory) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

type fixture struct {
	engine   *Engine
	gateway  *scriptedGateway
	executor *fakeExecutor
	store    *fakeStore
	story    *fakeStory
	hub      *stream.Hub
}

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := &scriptedGateway{}
	exec := &fakeExecutor{}
	store := newFakeStore()
	st := &fakeStory{}
	hub := stream.NewHub(logger)
	// Long delay keeps real timers from firing mid-test; tests flush
	// explicitly when they need persisted state.
	autosave := NewAutosaver(time.Hour, store.SaveMessages, logger)

	return &fixture{
		engine:   NewEngine(gw, exec, store, st, hub, autosave, logger),
		gateway:  gw,
		executor: exec,
		store:    store,
		story:    st,
		hub:      hub,
	}
}

func (fx *fixture) seedSession(incognito bool) *chat.Session {
	sess := chat.NewSession("story-1", "user-1")
	sess.Incognito = incognito
	fx.store.seed(sess)
	return sess
}

// collect subscribes to the session's stream and gathers events until
// the stream closes, invoking onEvent for each one as it arrives.
func (fx *fixture) collect(t *testing.T, sessionID string, onEvent func(stream.Event)) []stream.Event {
	t.Helper()
	st := fx.hub.Get(sessionID)
	if st == nil {
		t.Fatal("no stream registered for session")
	}

	done := make(chan []stream.Event, 1)
	go func() {
		replay, live := st.Subscribe("test-client")
		events := append([]stream.Event(nil), replay...)
		for _, ev := range replay {
			if onEvent != nil {
				onEvent(ev)
			}
		}
		for ev := range live {
			events = append(events, ev)
			if onEvent != nil {
				onEvent(ev)
			}
		}
		done <- events
	}()

	select {
	case events := <-done:
		return events
	case <-time.After(10 * time.Second):
		t.Fatal("turn did not finish")
		return nil
	}
}

// finalSession flushes any pending autosave and returns the stored
// session.
func (fx *fixture) finalSession(t *testing.T, sessionID string) *chat.Session {
	t.Helper()
	fx.engine.autosave.Flush(context.Background(), sessionID)
	return fx.store.snapshot(sessionID)
}

func eventTypes(events []stream.Event) []string {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func hasEvent(events []stream.Event, eventType string) bool {
	for _, ev := range events {
		if ev.Type == eventType {
			return true
		}
	}
	return false
}

func TestEngine_SimpleTurn(t *testing.T) {
	fx := newFixture()
	sess := fx.seedSession(false)
	fx.gateway.push(textReply("Once upon a time"))

	res, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Text:      "Write me an opening line",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if res.UserMessageID == "" || res.ModelMessageID == "" {
		t.Fatal("expected message ids in result")
	}

	events := fx.collect(t, sess.ID, nil)

	if !hasEvent(events, stream.EventTurnComplete) {
		t.Errorf("missing turn_complete, got %v", eventTypes(events))
	}
	if !hasEvent(events, stream.EventTextDelta) {
		t.Errorf("missing text_delta, got %v", eventTypes(events))
	}
	if hasEvent(events, stream.EventTurnError) {
		t.Error("unexpected turn_error")
	}

	final := fx.finalSession(t, sess.ID)
	if len(final.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(final.Messages))
	}
	if final.Messages[0].Role != chat.RoleUser || final.Messages[0].Text != "Write me an opening line" {
		t.Errorf("unexpected user message: %+v", final.Messages[0])
	}
	if final.Messages[1].Role != chat.RoleModel || final.Messages[1].Text != "Once upon a time" {
		t.Errorf("unexpected model message: %+v", final.Messages[1])
	}
	if final.Messages[1].ID != res.ModelMessageID {
		t.Error("model message id does not match the one returned by Send")
	}
	if fx.executor.callCount() != 0 {
		t.Errorf("expected no tool execution, got %d calls", fx.executor.callCount())
	}
}

func TestEngine_ToolRoundTrip(t *testing.T) {
	fx := newFixture()
	sess := fx.seedSession(false)
	fx.gateway.push(toolCallReply(1), textReply("The chapter says hello"))
	fx.executor.script = []*toolexec.ExecuteResponse{
		{
			OK: true,
			AppendedMessages: []toolexec.WireMessage{
				{Role: "tool", Content: "chapter text", ToolCallID: "call-1", Name: "chapter_view"},
			},
			Mutations: &toolexec.Mutations{StoryChanged: true},
		},
	}

	_, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Text:            "What does chapter one say?",
		ActiveChapterID: "chapter-9",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	events := fx.collect(t, sess.ID, nil)

	for _, want := range []string{stream.EventToolCalls, stream.EventToolResults, stream.EventStoryChanged, stream.EventTurnComplete} {
		if !hasEvent(events, want) {
			t.Errorf("missing %s event, got %v", want, eventTypes(events))
		}
	}

	final := fx.finalSession(t, sess.ID)
	roles := make([]string, len(final.Messages))
	for i, m := range final.Messages {
		roles[i] = m.Role
	}
	want := []string{chat.RoleUser, chat.RoleModel, chat.RoleTool, chat.RoleModel}
	if len(roles) != len(want) {
		t.Fatalf("expected roles %v, got %v", want, roles)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Fatalf("expected roles %v, got %v", want, roles)
		}
	}
	if final.Messages[2].ToolCallID != "call-1" {
		t.Errorf("tool result not correlated: %+v", final.Messages[2])
	}

	// One refresh assembling context at turn start, one after the
	// mutation reported by the executor.
	if fx.story.refreshCount() != 2 {
		t.Errorf("expected 2 story refreshes, got %d", fx.story.refreshCount())
	}
	if fx.executor.callCount() != 1 {
		t.Errorf("expected 1 executor call, got %d", fx.executor.callCount())
	}
	if req := fx.executor.requests[0]; req.ActiveChapterID != "chapter-9" {
		t.Errorf("active chapter not forwarded: %q", req.ActiveChapterID)
	}

	// Each round opens a fresh provider session over updated history.
	if len(fx.gateway.histories) != 2 {
		t.Fatalf("expected 2 provider sessions, got %d", len(fx.gateway.histories))
	}
	if len(fx.gateway.histories[0]) != 1 {
		t.Errorf("first session should see only the user message, got %d messages", len(fx.gateway.histories[0]))
	}
	if len(fx.gateway.histories[1]) != 3 {
		t.Errorf("second session should see user, tool-call and tool result, got %d messages", len(fx.gateway.histories[1]))
	}
}

func TestEngine_ExecutorFailureEndsLoopSilently(t *testing.T) {
	fx := newFixture()
	sess := fx.seedSession(false)
	fx.gateway.push(toolCallReply(1))
	fx.executor.script = []*toolexec.ExecuteResponse{{OK: false}}

	_, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Text:      "edit the chapter",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	events := fx.collect(t, sess.ID, nil)
	if hasEvent(events, stream.EventTurnError) {
		t.Error("executor refusal must not surface as an error")
	}
	if !hasEvent(events, stream.EventTurnComplete) {
		t.Error("missing turn_complete")
	}

	final := fx.finalSession(t, sess.ID)
	last := final.Messages[len(final.Messages)-1]
	if last.Role != chat.RoleModel || !last.HasToolCalls() {
		t.Errorf("last message should be the model's tool-call message, got %+v", last)
	}
	for _, m := range final.Messages {
		if m.Role == chat.RoleTool {
			t.Error("no tool result may be appended after an executor refusal")
		}
	}
}

func TestEngine_TransportErrorBecomesErrorMessage(t *testing.T) {
	fx := newFixture()
	sess := fx.seedSession(false)
	fx.gateway.push(scriptedReply{err: errors.New("connection reset by peer")})

	res, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Text:      "hello",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	events := fx.collect(t, sess.ID, nil)
	if !hasEvent(events, stream.EventTurnError) {
		t.Errorf("missing turn_error, got %v", eventTypes(events))
	}

	final := fx.finalSession(t, sess.ID)
	last := final.Messages[len(final.Messages)-1]
	if last.Role != chat.RoleModel || !last.IsError {
		t.Fatalf("expected terminal error message, got %+v", last)
	}
	if last.ID != res.ModelMessageID {
		t.Error("error message should occupy the announced model message id")
	}
	if last.Text == "" {
		t.Error("error message should carry the failure text")
	}

	// One provider call, no retry.
	if fx.gateway.callCount() != 1 {
		t.Errorf("expected exactly 1 provider call, got %d", fx.gateway.callCount())
	}
}

func TestEngine_StopDiscardsInFlightReply(t *testing.T) {
	fx := newFixture()
	sess := fx.seedSession(false)
	release := make(chan struct{})
	fx.gateway.push(scriptedReply{block: release, reply: &provider.Reply{Text: "too late"}})

	_, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Text:      "hello",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if got := fx.engine.State(sess.ID); got != StateSending {
		t.Errorf("expected state %s during provider call, got %s", StateSending, got)
	}
	if !fx.engine.Stop(sess.ID) {
		t.Fatal("Stop found no active turn")
	}
	close(release)

	events := fx.collect(t, sess.ID, nil)
	if hasEvent(events, stream.EventTurnError) {
		t.Error("cancellation must not surface as an error")
	}

	var complete stream.TurnCompleteEvent
	for _, ev := range events {
		if ev.Type == stream.EventTurnComplete {
			if err := json.Unmarshal(ev.Data, &complete); err != nil {
				t.Fatalf("bad turn_complete payload: %v", err)
			}
		}
	}
	if complete.Status != "stopped" {
		t.Errorf("expected stopped status, got %q", complete.Status)
	}

	final := fx.finalSession(t, sess.ID)
	if len(final.Messages) != 1 || final.Messages[0].Role != chat.RoleUser {
		t.Errorf("history should hold only the user message, got %+v", final.Messages)
	}
	if got := fx.engine.State(sess.ID); got != StateIdle {
		t.Errorf("expected idle after stop, got %s", got)
	}
}

func TestEngine_SingleFlight(t *testing.T) {
	fx := newFixture()
	sess := fx.seedSession(false)
	release := make(chan struct{})
	fx.gateway.push(scriptedReply{block: release, reply: &provider.Reply{Text: "slow"}})

	if _, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID: sess.ID, UserID: sess.UserID, Text: "first",
	}); err != nil {
		t.Fatalf("first Send failed: %v", err)
	}

	_, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID: sess.ID, UserID: sess.UserID, Text: "second",
	})
	if !errors.Is(err, domain.ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(release)
	fx.collect(t, sess.ID, nil)
}

func TestEngine_ThrottleBoundaries(t *testing.T) {
	fx := newFixture()
	sess := fx.seedSession(false)
	fx.gateway.repeat = toolCallReply

	_, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Text:      "go wild",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	var gates []stream.ThrottleGateEvent
	decisions := []Decision{DecisionContinue, DecisionContinue, DecisionStop}
	events := fx.collect(t, sess.ID, func(ev stream.Event) {
		if ev.Type != stream.EventThrottleGate {
			return
		}
		var payload stream.ThrottleGateEvent
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			t.Errorf("bad throttle_gate payload: %v", err)
			return
		}
		gates = append(gates, payload)
		if err := fx.engine.ResolveThrottle(sess.ID, decisions[len(gates)-1]); err != nil {
			t.Errorf("ResolveThrottle failed: %v", err)
		}
	})

	if len(gates) != 3 {
		t.Fatalf("expected gates at 10, 20, 30; got %d gates", len(gates))
	}
	for i, want := range []int{10, 20, 30} {
		if gates[i].CallsMade != want {
			t.Errorf("gate %d at calls_made=%d, want %d", i, gates[i].CallsMade, want)
		}
	}

	// 30 provider rounds; the 10th, 20th and 30th paused at the gate and
	// the final stop kept round 30's calls from executing.
	if got := fx.gateway.callCount(); got != 30 {
		t.Errorf("expected 30 provider calls, got %d", got)
	}
	if got := fx.executor.callCount(); got != 29 {
		t.Errorf("expected 29 executor calls, got %d", got)
	}
	if hasEvent(events, stream.EventTurnError) {
		t.Error("throttle stop must not surface as an error")
	}
}

func TestEngine_ThrottleUnlimited(t *testing.T) {
	fx := newFixture()
	sess := fx.seedSession(false)
	for i := 1; i <= 15; i++ {
		fx.gateway.push(toolCallReply(i))
	}
	fx.gateway.push(textReply("finally done"))

	_, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		Text:      "long task",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	gateCount := 0
	fx.collect(t, sess.ID, func(ev stream.Event) {
		if ev.Type == stream.EventThrottleGate {
			gateCount++
			if err := fx.engine.ResolveThrottle(sess.ID, DecisionUnlimited); err != nil {
				t.Errorf("ResolveThrottle failed: %v", err)
			}
		}
	})

	if gateCount != 1 {
		t.Errorf("unlimited should silence later gates, got %d gates", gateCount)
	}
	if got := fx.executor.callCount(); got != 15 {
		t.Errorf("expected all 15 rounds executed, got %d", got)
	}

	final := fx.finalSession(t, sess.ID)
	last := final.Messages[len(final.Messages)-1]
	if last.Text != "finally done" {
		t.Errorf("expected final text message, got %+v", last)
	}
}

func TestEngine_CounterCarriesAcrossTurnsUntilPlainReply(t *testing.T) {
	fx := newFixture()
	sess := fx.seedSession(false)
	fx.gateway.repeat = toolCallReply

	// Turn 1: three tool rounds, then the executor refuses. The counter
	// stays at 3 because no tool-call-free reply arrived.
	fx.executor.script = []*toolexec.ExecuteResponse{nil, nil, {OK: false}}
	if _, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID: sess.ID, UserID: sess.UserID, Text: "turn one",
	}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	fx.collect(t, sess.ID, nil)
	if got := fx.gateway.callCount(); got != 3 {
		t.Fatalf("turn one should use 3 provider calls, got %d", got)
	}

	// Turn 2: the gate must fire after only 7 more rounds.
	if _, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID: sess.ID, UserID: sess.UserID, Text: "turn two",
	}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	var gate stream.ThrottleGateEvent
	fx.collect(t, sess.ID, func(ev stream.Event) {
		if ev.Type == stream.EventThrottleGate {
			if err := json.Unmarshal(ev.Data, &gate); err != nil {
				t.Errorf("bad payload: %v", err)
			}
			if err := fx.engine.ResolveThrottle(sess.ID, DecisionStop); err != nil {
				t.Errorf("ResolveThrottle failed: %v", err)
			}
		}
	})
	if gate.CallsMade != 10 {
		t.Errorf("carried counter should gate at 10, got %d", gate.CallsMade)
	}
	if got := fx.gateway.callCount(); got != 10 {
		t.Errorf("turn two should add 7 provider calls for a total of 10, got %d", got)
	}

	// Turn 3: a plain reply re-arms the valve.
	fx.gateway.push(textReply("all set"))
	if _, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID: sess.ID, UserID: sess.UserID, Text: "turn three",
	}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	fx.collect(t, sess.ID, nil)

	// Turn 4: a full 10 rounds before the next gate.
	if _, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID: sess.ID, UserID: sess.UserID, Text: "turn four",
	}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	before := fx.gateway.callCount()
	gate = stream.ThrottleGateEvent{}
	fx.collect(t, sess.ID, func(ev stream.Event) {
		if ev.Type == stream.EventThrottleGate {
			if err := json.Unmarshal(ev.Data, &gate); err != nil {
				t.Errorf("bad payload: %v", err)
			}
			if err := fx.engine.ResolveThrottle(sess.ID, DecisionStop); err != nil {
				t.Errorf("ResolveThrottle failed: %v", err)
			}
		}
	})
	if gate.CallsMade != 10 {
		t.Errorf("re-armed counter should gate at 10, got %d", gate.CallsMade)
	}
	if got := fx.gateway.callCount() - before; got != 10 {
		t.Errorf("turn four should run 10 rounds before gating, got %d", got)
	}
}

func TestEngine_Regenerate(t *testing.T) {
	fx := newFixture()
	sess := fx.seedSession(false)
	fx.gateway.push(toolCallReply(1), textReply("first answer"))

	if _, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID: sess.ID, UserID: sess.UserID, Text: "tell me a story",
	}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	fx.collect(t, sess.ID, nil)

	first := fx.finalSession(t, sess.ID)
	if len(first.Messages) != 4 {
		t.Fatalf("expected 4 messages after tool-mediated turn, got %d", len(first.Messages))
	}
	userID := first.Messages[0].ID

	fx.gateway.push(textReply("second answer"))
	if _, err := fx.engine.Regenerate(context.Background(), sess.ID, sess.UserID, ""); err != nil {
		t.Fatalf("Regenerate failed: %v", err)
	}
	fx.collect(t, sess.ID, nil)

	final := fx.finalSession(t, sess.ID)
	if len(final.Messages) != 2 {
		t.Fatalf("regenerate should discard the tool rounds, got %d messages", len(final.Messages))
	}
	if final.Messages[0].ID != userID {
		t.Error("regenerate should reuse the original user message")
	}
	if final.Messages[1].Text != "second answer" {
		t.Errorf("expected fresh answer, got %q", final.Messages[1].Text)
	}
}

func TestEngine_RegenerateEmptySession(t *testing.T) {
	fx := newFixture()
	sess := fx.seedSession(false)

	_, err := fx.engine.Regenerate(context.Background(), sess.ID, sess.UserID, "")
	if err == nil {
		t.Fatal("expected validation error for empty session")
	}
}

func TestEngine_IncognitoSavesImmediately(t *testing.T) {
	fx := newFixture()
	sess := fx.seedSession(true)
	fx.gateway.push(textReply("secret"))

	if _, err := fx.engine.Send(context.Background(), &SendRequest{
		SessionID: sess.ID, UserID: sess.UserID, Text: "between us",
	}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	fx.collect(t, sess.ID, nil)

	// Saved without a flush: the turn wrote through on completion.
	if fx.store.saveCount() != 1 {
		t.Errorf("expected 1 immediate save, got %d", fx.store.saveCount())
	}
	stored := fx.store.snapshot(sess.ID)
	if len(stored.Messages) != 2 {
		t.Errorf("expected 2 stored messages, got %d", len(stored.Messages))
	}
}

func TestEngine_SendValidation(t *testing.T) {
	fx := newFixture()
	sess := fx.seedSession(false)

	tests := []struct {
		name string
		req  SendRequest
	}{
		{name: "empty text", req: SendRequest{SessionID: sess.ID, UserID: sess.UserID}},
		{name: "missing session", req: SendRequest{Text: "hi", UserID: sess.UserID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.engine.Send(context.Background(), &tt.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}

	t.Run("unknown session", func(t *testing.T) {
		_, err := fx.engine.Send(context.Background(), &SendRequest{
			SessionID: "nope", UserID: "user-1", Text: "hi",
		})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}
