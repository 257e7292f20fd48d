package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/tui/ui"
)

// ConversationInfo displays detailed information about a conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates a new conversation info view.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Conversation Details ")
	tv.SetTitleColor(theme.TitleColor)

	return &ConversationInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Name implements Component.
func (ci *ConversationInfo) Name() string { return "Details" }

// Hints implements Component.
func (ci *ConversationInfo) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: "?", Description: "Help"},
	}
}

// Update renders conversation details.
func (ci *ConversationInfo) Update(cv chat.Conversation, selfID string) {
	ci.Clear()

	fg := ui.ColorName(ci.theme.FgColor)
	ct := ui.ColorName(ci.theme.CounterColor)

	lastActive := "-"
	if !cv.LastAt.IsZero() {
		lastActive = cv.LastAt.Local().Format("2006-01-02 15:04")
	}

	var people []string
	for _, p := range cv.Participants {
		label := p.UserID
		if p.Username != "" {
			label = fmt.Sprintf("%s (%s)", p.Username, p.UserID)
		}
		if p.UserID == selfID {
			label += " - you"
		}
		people = append(people, "   "+tview.Escape(label))
	}

	title := Title(cv, selfID)
	_, _ = fmt.Fprintf(ci,
		"\n [%s::b]Name:[-:-:-]         [%s]%s[-]\n"+
			" [%s::b]ID:[-:-:-]           [%s]%s[-]\n"+
			" [%s::b]Last Active:[-:-:-]  [%s]%s[-]\n"+
			" [%s::b]Last Message:[-:-:-] [%s]%s[-]\n\n"+
			" [%s::b]Participants (%d):[-:-:-]\n[%s]%s[-]",
		fg, ct, tview.Escape(title),
		fg, ct, tview.Escape(cv.ID),
		fg, ct, lastActive,
		fg, ct, tview.Escape(sanitizeForTerminal(cv.LastMessage)),
		fg, len(cv.Participants), ct, strings.Join(people, "\n"),
	)
	ci.SetTitle(fmt.Sprintf(" %s Details ", tview.Escape(title)))
}
