package ui

import (
	"slices"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestCollapseTrail(t *testing.T) {
	short := []string{"Conversations", "alice"}
	if got := collapseTrail(short, 4); !slices.Equal(got, short) {
		t.Fatalf("short trail changed: %v", got)
	}

	long := []string{"Conversations", "alice", "Details", "Help", "Details"}
	want := []string{"Conversations", "…", "Help", "Details"}
	if got := collapseTrail(long, 4); !slices.Equal(got, want) {
		t.Fatalf("collapseTrail = %v, want %v", got, want)
	}
}

func TestColorName(t *testing.T) {
	if got := ColorName(tcell.ColorDefault); got != "-" {
		t.Errorf("ColorName(default) = %q, want -", got)
	}
	if got := ColorName(tcell.ColorRed); got != "red" {
		t.Errorf("ColorName(red) = %q, want red", got)
	}
}
