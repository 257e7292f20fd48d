package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/convo/internal/status"
	"github.com/matheus3301/convo/internal/tui/ui"
)

// StatusBar displays the profile and the open conversation's link state.
type StatusBar struct {
	*tview.TextView
	theme        *ui.Theme
	profile      string
	conversation string
	link         status.State
	pending      int
	failed       int
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, theme: theme}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetConversation shows the open conversation; empty clears it.
func (sb *StatusBar) SetConversation(title string, link status.State) {
	sb.conversation = title
	sb.link = link
	sb.render()
}

// SetLink updates the link indicator.
func (sb *StatusBar) SetLink(link status.State) {
	sb.link = link
	sb.render()
}

// SetOutbox shows how many sends are in flight and how many failed.
func (sb *StatusBar) SetOutbox(pending, failed int) {
	sb.pending, sb.failed = pending, failed
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	line := fmt.Sprintf(" [::b]%s[-:-:-]", tview.Escape(sb.profile))
	if sb.conversation != "" {
		line += fmt.Sprintf(" | %s | %s", tview.Escape(sb.conversation), ui.LinkBadge(sb.theme, sb.link))
		if sb.pending > 0 {
			line += fmt.Sprintf(" | %d sending", sb.pending)
		}
		if sb.failed > 0 {
			line += fmt.Sprintf(" | [%s]%d not sent[-]", ui.ColorName(sb.theme.FailedColor), sb.failed)
		}
	}
	line += " | " + time.Now().Format("15:04")

	_, _ = fmt.Fprint(sb, line)
}

// Refresh redraws the bar so the clock stays current.
func (sb *StatusBar) Refresh() {
	sb.render()
}
