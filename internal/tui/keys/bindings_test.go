package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestViewBindingsShadowGlobal(t *testing.T) {
	r := NewRegistry()
	var got string
	r.AddGlobal(Rune('q', func() { got = "quit" }))
	r.AddView("help", Rune('q', func() { got = "close help" }))
	r.AddView("thread", Key(tcell.KeyF5, func() { got = "refresh" }))

	if !r.HandleEvent("help", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) || got != "close help" {
		t.Errorf("help q -> %q, want close help", got)
	}
	if !r.HandleEvent("thread", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) || got != "quit" {
		t.Errorf("thread q -> %q, want quit", got)
	}
	if !r.HandleEvent("thread", tcell.NewEventKey(tcell.KeyF5, 0, tcell.ModNone)) || got != "refresh" {
		t.Errorf("thread F5 -> %q, want refresh", got)
	}
	if r.HandleEvent("conversations", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Error("unbound key reported as handled")
	}
}

func TestRuneIsCaseSensitive(t *testing.T) {
	a := Rune('D', func() {})
	if a.Matches(tcell.NewEventKey(tcell.KeyRune, 'd', tcell.ModNone)) {
		t.Error("D matched d")
	}
	if !a.Matches(tcell.NewEventKey(tcell.KeyRune, 'D', tcell.ModNone)) {
		t.Error("D did not match D")
	}
}
