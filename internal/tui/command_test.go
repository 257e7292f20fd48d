package tui

import (
	"testing"

	"github.com/matheus3301/convo/internal/chat"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"quit", Command{Name: "quit"}},
		{"  Q ", Command{Name: "quit"}},
		{"open  c1 ", Command{Name: "open", Args: "c1"}},
		{"new c2 bob:Bob", Command{Name: "new", Args: "c2 bob:Bob"}},
		{"", Command{}},
	}
	for _, tt := range tests {
		if got := ParseCommand(tt.in); got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestNewConversation(t *testing.T) {
	self := chat.Participant{UserID: "alice", Username: "Alice"}
	conv, ok := ParseCommand("new c2 bob:Bob alice carol").NewConversation(self)
	if !ok {
		t.Fatal("NewConversation() = false")
	}
	if conv.ID != "c2" {
		t.Errorf("ID = %q", conv.ID)
	}
	want := []chat.Participant{self, {UserID: "bob", Username: "Bob"}, {UserID: "carol"}}
	if len(conv.Participants) != len(want) {
		t.Fatalf("participants = %+v", conv.Participants)
	}
	for i := range want {
		if conv.Participants[i] != want[i] {
			t.Errorf("participant %d = %+v, want %+v", i, conv.Participants[i], want[i])
		}
	}

	if _, ok := ParseCommand("new").NewConversation(self); ok {
		t.Error("NewConversation() accepted a missing id")
	}
}
