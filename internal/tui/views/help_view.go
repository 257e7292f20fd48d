package views

import (
	"fmt"

	"github.com/matheus3301/convo/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (hv *HelpView) render() {
	kc := ui.ColorName(hv.theme.MenuKeyColor)
	key := func(k string) string { return fmt.Sprintf("[%s]%s[-:-:-]", kc, k) }

	help := fmt.Sprintf(`
  [::b]Global Keys[-:-:-]

  %s      Command mode          %s    Cancel / Go back
  %s      Filter mode           %s      Help
  %s      Quit                  %s Quit immediately

  [::b]Conversation List[-:-:-]

  %s  Open conversation     %s    Jump to Nth conversation
  %s Move down             %s  Move up

  [::b]Message Thread[-:-:-]

  %s      Focus composer        %s  Send (or save an edit)
  %s    Select message        %s      Show conversation details
  %s      Edit selected         %s      Delete selected
  %s      Retry failed send     %s      Dismiss failed send
  %s      Load older messages   %s Scroll

  Only your own messages can be edited or deleted, within 15 minutes of sending.

  [::b]Commands (: mode)[-:-:-]

  %s     Create a conversation
  %s           Open conversation by id or name
  %s               Reload the conversation list
  %s / %s        Show this help
  %s / %s        Quit application
`,
		key(":"), key("Esc"),
		key("/"), key("?"),
		key("q"), key("Ctrl-C"),
		key("Enter"), key("1-9"),
		key("j/Down"), key("k/Up"),
		key("i"), key("Enter"),
		key("j/k"), key("d"),
		key("e"), key("x"),
		key("r"), key("D"),
		key("g"), key("Up/Down/PgUp"),
		key(":new <id> <user[:name]>..."),
		key(":open <id|name>"),
		key(":refresh"),
		key(":help"), key(":h"),
		key(":quit"), key(":q"),
	)

	_, _ = fmt.Fprint(hv, help)
}
