package views

import (
	"strings"
	"testing"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/conversation"
	"github.com/matheus3301/convo/internal/pager"
	"github.com/matheus3301/convo/internal/tui/ui"
)

func TestMergeFramesKeepsScrollRequest(t *testing.T) {
	anchor := pager.Anchor{OldTop: 3, OldHeight: 40}
	prev := conversation.Frame{Scroll: conversation.ScrollAnchor, Anchor: anchor, Initial: true}
	next := conversation.Frame{Messages: []chat.Message{{ID: "m1"}}}

	got := mergeFrames(prev, next)
	if got.Scroll != conversation.ScrollAnchor || got.Anchor != anchor {
		t.Errorf("scroll = %v %+v, want the anchored request", got.Scroll, got.Anchor)
	}
	if !got.Initial {
		t.Error("Initial lost in merge")
	}
	if len(got.Messages) != 1 {
		t.Error("content not taken from the newer frame")
	}

	bottom := mergeFrames(prev, conversation.Frame{Scroll: conversation.ScrollBottom})
	if bottom.Scroll != conversation.ScrollBottom {
		t.Errorf("scroll = %v, want newer request to win", bottom.Scroll)
	}
}

func TestRenderCoalescesWithoutDrawing(t *testing.T) {
	th := NewThread(tview.NewApplication(), ui.DefaultTheme(), "alice")
	th.Render(conversation.Frame{ConversationID: "c1", Scroll: conversation.ScrollBottom, Initial: true})
	th.Render(conversation.Frame{ConversationID: "c1", Typing: []string{"bob"}})

	th.mu.Lock()
	p := th.pending
	th.mu.Unlock()
	if p == nil {
		t.Fatal("no pending frame")
	}
	if p.Scroll != conversation.ScrollBottom || !p.Initial || len(p.Typing) != 1 {
		t.Errorf("pending = %+v", *p)
	}
	if len(th.wake) != 1 {
		t.Errorf("wake signals = %d, want 1", len(th.wake))
	}
	if vp := th.Viewport(); vp != (pager.Viewport{}) {
		t.Errorf("Viewport() before any draw = %+v", vp)
	}
}

func TestComposeThread(t *testing.T) {
	now := time.Now()
	f := conversation.Frame{
		ConversationID: "c1",
		HasMoreOlder:   true,
		Messages: []chat.Message{
			{ID: "m1", SenderID: "bob", SenderName: "Bob", Content: "hi there", CreatedAt: now, State: chat.Confirmed},
			{ID: "m2", SenderID: "alice", Content: "a long reply that wraps", CreatedAt: now, State: chat.Confirmed, Edited: true},
			{ID: "tmp-1", SenderID: "alice", Content: "pending", CreatedAt: now, State: chat.Pending},
			{ID: "tmp-2", SenderID: "alice", Content: "broken", CreatedAt: now, State: chat.Failed},
		},
	}
	text, starts := composeThread(f, ui.DefaultTheme(), "alice", 12, 1)

	if len(starts) != 4 {
		t.Fatalf("starts = %v", starts)
	}
	// Banner, blank, then m1 header and body, blank.
	if starts[0] != 2 || starts[1] != 5 {
		t.Errorf("starts = %v, want m1 at 2 and m2 at 5", starts)
	}
	for _, want := range []string{"Bob", "You", "(edited)", "sending", "not sent", "older messages", "▌"} {
		if !strings.Contains(text, want) {
			t.Errorf("thread text missing %q", want)
		}
	}
	// "a long reply that wraps" at width 12 takes two body lines.
	if starts[2]-starts[1] != 4 {
		t.Errorf("m2 spans %d lines, want 4", starts[2]-starts[1])
	}
}

func TestComposeThreadStartOfConversation(t *testing.T) {
	text, _ := composeThread(conversation.Frame{ConversationID: "c1"}, ui.DefaultTheme(), "alice", 40, -1)
	if !strings.Contains(text, "start of conversation") {
		t.Errorf("text = %q", text)
	}
	text, _ = composeThread(conversation.Frame{ConversationID: "c1", LoadingOlder: true, HasMoreOlder: true}, ui.DefaultTheme(), "alice", 40, -1)
	if !strings.Contains(text, "loading older") {
		t.Errorf("text = %q", text)
	}
}
