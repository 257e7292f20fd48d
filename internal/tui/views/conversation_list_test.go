package views

import (
	"testing"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/tui/ui"
)

func convs() []chat.Conversation {
	return []chat.Conversation{
		{ID: "c1", Participants: []chat.Participant{{UserID: "alice", Username: "Alice"}, {UserID: "bob", Username: "Bob"}}, LastMessage: "lunch?"},
		{ID: "c2", Name: "Ops", Participants: []chat.Participant{{UserID: "alice"}, {UserID: "carol"}}, LastMessage: "deploy done"},
		{ID: "c3", Participants: []chat.Participant{{UserID: "alice"}, {UserID: "dave"}}},
	}
}

func TestTitle(t *testing.T) {
	cs := convs()
	want := []string{"Bob", "Ops", "dave"}
	for i, cv := range cs {
		if got := Title(cv, "alice"); got != want[i] {
			t.Errorf("Title(%s) = %q, want %q", cv.ID, got, want[i])
		}
	}
	if got := Title(chat.Conversation{ID: "solo"}, "alice"); got != "solo" {
		t.Errorf("Title(no participants) = %q, want id", got)
	}
}

func TestConversationListFilter(t *testing.T) {
	cl := NewConversationList(ui.DefaultTheme(), "alice")
	cl.Update(convs())

	if got := cl.ConversationByIndex(2); got != "c2" {
		t.Errorf("ConversationByIndex(2) = %q, want c2", got)
	}
	cl.SetFilter("DEPLOY")
	if got := cl.ConversationByIndex(1); got != "c2" {
		t.Errorf("filtered ConversationByIndex(1) = %q, want c2", got)
	}
	if got := cl.ConversationByIndex(2); got != "" {
		t.Errorf("filtered ConversationByIndex(2) = %q, want none", got)
	}
	cl.ClearFilter()
	if got := cl.ConversationByIndex(3); got != "c3" {
		t.Errorf("ConversationByIndex(3) = %q, want c3", got)
	}
	if _, ok := cl.Lookup("c9"); ok {
		t.Error("Lookup found an unknown id")
	}
}
