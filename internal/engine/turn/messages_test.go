package turn

import (
	"context"
	"errors"
	"testing"

	"inkwell/internal/domain"
	"inkwell/internal/domain/models/chat"
	"inkwell/internal/provider"
)

func seedHistory(fx *fixture) *chat.Session {
	sess := fx.seedSession(false)
	sess.Messages = []chat.Message{
		{ID: "u1", Role: chat.RoleUser, Text: "look at chapter two"},
		{ID: "m1", Role: chat.RoleModel, Text: "checking", ToolCalls: []chat.ToolCall{
			{ID: "call-a", Name: "chapter_view"},
			{ID: "call-b", Name: "sourcebook_view"},
		}},
		{ID: "t1", Role: chat.RoleTool, Text: "chapter text", ToolCallID: "call-a"},
		{ID: "t2", Role: chat.RoleTool, Text: "entries", ToolCallID: "call-b"},
		{ID: "m2", Role: chat.RoleModel, Text: "here is what I found"},
	}
	return sess
}

func TestEditMessage(t *testing.T) {
	t.Run("edits user text", func(t *testing.T) {
		fx := newFixture()
		sess := seedHistory(fx)

		updated, err := fx.engine.EditMessage(context.Background(), sess.ID, sess.UserID, "u1", "look at chapter three")
		if err != nil {
			t.Fatalf("EditMessage failed: %v", err)
		}
		if updated.Messages[0].Text != "look at chapter three" {
			t.Errorf("edit not applied: %q", updated.Messages[0].Text)
		}

		stored := fx.store.snapshot(sess.ID)
		if stored.Messages[0].Text != "look at chapter three" {
			t.Error("edit not persisted")
		}
	})

	t.Run("rejects tool messages", func(t *testing.T) {
		fx := newFixture()
		sess := seedHistory(fx)

		_, err := fx.engine.EditMessage(context.Background(), sess.ID, sess.UserID, "t1", "tampered")
		if err == nil {
			t.Fatal("expected error editing a tool result")
		}
	})

	t.Run("rejects unknown message", func(t *testing.T) {
		fx := newFixture()
		sess := seedHistory(fx)

		_, err := fx.engine.EditMessage(context.Background(), sess.ID, sess.UserID, "missing", "x")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("rejected while a turn is in flight", func(t *testing.T) {
		fx := newFixture()
		sess := seedHistory(fx)
		release := make(chan struct{})
		fx.gateway.push(scriptedReply{block: release, reply: &provider.Reply{Text: "ok"}})

		if _, err := fx.engine.Send(context.Background(), &SendRequest{
			SessionID: sess.ID, UserID: sess.UserID, Text: "busy now",
		}); err != nil {
			t.Fatalf("Send failed: %v", err)
		}

		_, err := fx.engine.EditMessage(context.Background(), sess.ID, sess.UserID, "u1", "nope")
		if !errors.Is(err, domain.ErrBusy) {
			t.Errorf("expected ErrBusy, got %v", err)
		}

		close(release)
		fx.collect(t, sess.ID, nil)
	})
}

func TestDeleteMessage(t *testing.T) {
	t.Run("deleting a tool-call message removes its results", func(t *testing.T) {
		fx := newFixture()
		sess := seedHistory(fx)

		updated, err := fx.engine.DeleteMessage(context.Background(), sess.ID, sess.UserID, "m1")
		if err != nil {
			t.Fatalf("DeleteMessage failed: %v", err)
		}

		ids := make([]string, len(updated.Messages))
		for i, m := range updated.Messages {
			ids[i] = m.ID
		}
		want := []string{"u1", "m2"}
		if len(ids) != len(want) {
			t.Fatalf("expected %v, got %v", want, ids)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Fatalf("expected %v, got %v", want, ids)
			}
		}
	})

	t.Run("deleting a plain message leaves the rest intact", func(t *testing.T) {
		fx := newFixture()
		sess := seedHistory(fx)

		updated, err := fx.engine.DeleteMessage(context.Background(), sess.ID, sess.UserID, "m2")
		if err != nil {
			t.Fatalf("DeleteMessage failed: %v", err)
		}
		if len(updated.Messages) != 4 {
			t.Fatalf("expected 4 messages, got %d", len(updated.Messages))
		}
		for _, m := range updated.Messages {
			if m.ID == "m2" {
				t.Error("m2 still present")
			}
		}
	})

	t.Run("rejects unknown message", func(t *testing.T) {
		fx := newFixture()
		sess := seedHistory(fx)

		_, err := fx.engine.DeleteMessage(context.Background(), sess.ID, sess.UserID, "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}
