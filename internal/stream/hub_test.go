package stream

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-time.After(time.Second):
			return out
		}
	}
}

func TestStreamReplayAndLive(t *testing.T) {
	hub := NewHub(testLogger())
	s := hub.Open("s-1", nil)

	s.Publish(EventMessageStart, MessageStartEvent{MessageID: "m-1", Role: "model"})
	s.Publish(EventTextDelta, TextDeltaEvent{MessageID: "m-1", Text: "Once"})

	replay, live := s.Subscribe("client-1")
	if len(replay) != 2 {
		t.Fatalf("replay = %d events, want 2", len(replay))
	}
	if replay[0].Type != EventMessageStart || replay[1].Type != EventTextDelta {
		t.Errorf("replay types = %s, %s", replay[0].Type, replay[1].Type)
	}

	s.Publish(EventTurnComplete, TurnCompleteEvent{SessionID: "s-1", Status: "complete"})
	s.Close()

	events := drain(live)
	if len(events) != 1 || events[0].Type != EventTurnComplete {
		t.Fatalf("live events = %+v", events)
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	hub := NewHub(testLogger())
	s := hub.Open("s-1", nil)

	s.Publish(EventTextDelta, TextDeltaEvent{MessageID: "m-1", Text: "all of it"})
	s.Close()

	replay, live := s.Subscribe("late-client")
	if len(replay) != 1 {
		t.Fatalf("replay = %d events, want full history", len(replay))
	}

	select {
	case _, ok := <-live:
		if ok {
			t.Error("closed stream delivered a live event")
		}
	case <-time.After(time.Second):
		t.Error("live channel not closed for late subscriber")
	}
}

func TestPublishAfterCloseIsDropped(t *testing.T) {
	hub := NewHub(testLogger())
	s := hub.Open("s-1", nil)
	s.Close()

	s.Publish(EventTextDelta, TextDeltaEvent{MessageID: "m-1", Text: "ghost"})

	replay, _ := s.Subscribe("client-1")
	if len(replay) != 0 {
		t.Errorf("replay = %d events, want 0", len(replay))
	}
}

func TestOpenReplacesRetainedStream(t *testing.T) {
	hub := NewHub(testLogger())
	first := hub.Open("s-1", nil)
	first.Publish(EventTextDelta, TextDeltaEvent{MessageID: "m-1", Text: "old turn"})

	_, live := first.Subscribe("client-1")

	second := hub.Open("s-1", nil)

	// Opening a new turn's stream closes the previous one so stale
	// subscribers fall off.
	select {
	case _, ok := <-live:
		if ok {
			t.Error("expected closed channel from replaced stream")
		}
	case <-time.After(time.Second):
		t.Fatal("previous stream not closed on replacement")
	}

	if got := hub.Get("s-1"); got != second {
		t.Error("hub did not swap to the new stream")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub(testLogger())
	s := hub.Open("s-1", nil)

	_, live := s.Subscribe("client-1")
	s.Unsubscribe("client-1")

	s.Publish(EventTextDelta, TextDeltaEvent{MessageID: "m-1", Text: "after"})

	select {
	case _, ok := <-live:
		if ok {
			t.Error("unsubscribed client received an event")
		}
	case <-time.After(time.Second):
		t.Error("unsubscribe did not close the client channel")
	}

	// Unsubscribing twice, or after close, must not panic.
	s.Unsubscribe("client-1")
	s.Close()
	s.Unsubscribe("client-1")
}

func TestCancelInvokesHook(t *testing.T) {
	hub := NewHub(testLogger())

	called := false
	s := hub.Open("s-1", func() { called = true })

	s.Cancel()
	if !called {
		t.Error("cancel hook not invoked")
	}

	// A stream opened without a hook tolerates Cancel.
	hub.Open("s-2", nil).Cancel()
}

func TestSlowClientDropsEventsNotStream(t *testing.T) {
	hub := NewHub(testLogger())
	s := hub.Open("s-1", nil)

	_, live := s.Subscribe("slow")

	// Overflow the client buffer; Publish must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < clientBuffer+10; i++ {
			s.Publish(EventTextDelta, TextDeltaEvent{MessageID: "m-1", Text: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow client")
	}

	// The history keeps everything even though the channel dropped some.
	replay, _ := s.Subscribe("fresh")
	if len(replay) != clientBuffer+10 {
		t.Errorf("history = %d events, want %d", len(replay), clientBuffer+10)
	}

	received := 0
	for {
		select {
		case <-live:
			received++
			continue
		default:
		}
		break
	}
	if received > clientBuffer {
		t.Errorf("slow client received %d events, buffer is %d", received, clientBuffer)
	}
}
