package main

import (
	"testing"
	"time"

	"github.com/matheus3301/convo/internal/chat"
)

func TestConfirmedFor(t *testing.T) {
	t0 := time.Now()
	pending := chat.Message{ID: "tmp-1", SenderID: "alice", Content: "hi", State: chat.Pending, CreatedAt: t0}
	stored := chat.Message{ID: "m-9", SenderID: "alice", Content: "hi", State: chat.Confirmed, CreatedAt: t0}
	older := chat.Message{ID: "m-1", SenderID: "alice", Content: "hi", State: chat.Confirmed, CreatedAt: t0.Add(-time.Hour)}

	if _, ok := confirmedFor([]chat.Message{older, pending}, pending); ok {
		t.Fatal("confirmed while the provisional record is still shown")
	}
	m, ok := confirmedFor([]chat.Message{older, stored}, pending)
	if !ok || m.ID != "m-9" {
		t.Errorf("confirmedFor() = %+v, %v; want m-9", m, ok)
	}
	if _, ok := confirmedFor([]chat.Message{{ID: "m-2", SenderID: "bob", Content: "hi", State: chat.Confirmed}}, pending); ok {
		t.Error("matched another sender's message")
	}
}
