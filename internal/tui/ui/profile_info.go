package ui

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/convo/internal/status"
)

// ProfileData holds what the header shows about the running client.
type ProfileData struct {
	Profile       string
	User          string
	Backend       string
	Link          status.State
	Conversations int
}

// ProfileInfo displays profile metadata in the header.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates a new profile info panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &ProfileInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the profile info.
func (pi *ProfileInfo) Update(data ProfileData) {
	pi.Clear()

	fg := ColorName(pi.theme.FgColor)
	ct := ColorName(pi.theme.CounterColor)

	user := data.User
	if user == "" {
		user = "-"
	}

	_, _ = fmt.Fprintf(pi,
		"[%s::b]Profile:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]User:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Backend:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Link:[-:-:-]    %s\n"+
			"[%s::b]Convos:[-:-:-]  [%s]%d[-]",
		fg, ct, tview.Escape(data.Profile),
		fg, ct, tview.Escape(user),
		fg, ct, data.Backend,
		fg, LinkBadge(pi.theme, data.Link),
		fg, ct, data.Conversations,
	)
}

// LinkBadge renders a link state as a colored glyph and label.
func LinkBadge(theme *Theme, s status.State) string {
	switch s {
	case status.Live:
		return fmt.Sprintf("[%s]●[-] live", ColorName(theme.LinkLiveColor))
	case status.Reconnecting:
		return fmt.Sprintf("[%s]◌[-] reconnecting", ColorName(theme.LinkDownColor))
	case status.Connecting:
		return fmt.Sprintf("[%s]◌[-] connecting", ColorName(theme.LinkDownColor))
	case status.Closed:
		return "○ closed"
	default:
		return "-"
	}
}
