package ui

import (
	"strings"
	"testing"
)

func TestLayoutHints(t *testing.T) {
	hints := []MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "j/k", Description: "Select"},
		{Key: "e", Description: "Edit"},
	}
	plain := func(h MenuHint) string { return "<" + h.Key + "> " + h.Description }

	got := layoutHints(hints, 2, plain)
	want := "<i> Compose    <e> Edit\n<j/k> Select\n"
	if got != want {
		t.Fatalf("layout =\n%q\nwant\n%q", got, want)
	}

	if got := layoutHints(nil, 2, plain); got != "" {
		t.Fatalf("empty layout = %q", got)
	}
	if got := layoutHints(hints, 5, plain); strings.Count(got, "\n") != 3 {
		t.Fatalf("single column layout = %q", got)
	}
}
