package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/tui/ui"
)

// ConversationList is the main conversation table.
type ConversationList struct {
	*tview.Table
	theme  *ui.Theme
	selfID string
	convs  []chat.Conversation
	filter string
}

// NewConversationList creates a new conversation list table.
func NewConversationList(theme *ui.Theme, selfID string) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitle(" Conversations ")
	table.SetTitleColor(theme.TitleColor)

	return &ConversationList{
		Table:  table,
		theme:  theme,
		selfID: selfID,
	}
}

// Name implements Component.
func (cl *ConversationList) Name() string { return "Conversations" }

// Hints implements Component.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: ":", Description: "Command"},
		{Key: "?", Description: "Help"},
		{Key: "q", Description: "Quit"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update refreshes the list, keeping the selected conversation selected.
func (cl *ConversationList) Update(convs []chat.Conversation) {
	selected := cl.SelectedConversation()
	cl.convs = convs
	cl.render()
	if selected == "" {
		return
	}
	for i, cv := range cl.visible() {
		if cv.ID == selected {
			cl.Select(i+1, 0)
			return
		}
	}
}

// Len returns how many conversations are loaded.
func (cl *ConversationList) Len() int { return len(cl.convs) }

// SetFilter sets the active filter text and re-renders.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// ClearFilter clears the active filter.
func (cl *ConversationList) ClearFilter() {
	cl.filter = ""
	cl.render()
}

// Title returns how a conversation is labelled: its name, else the other
// participants, else its id.
func Title(cv chat.Conversation, selfID string) string {
	if cv.Name != "" {
		return cv.Name
	}
	var names []string
	for _, p := range cv.Participants {
		if p.UserID == selfID {
			continue
		}
		if p.Username != "" {
			names = append(names, p.Username)
		} else {
			names = append(names, p.UserID)
		}
	}
	if len(names) == 0 {
		return cv.ID
	}
	return strings.Join(names, ", ")
}

func (cl *ConversationList) visible() []chat.Conversation {
	if cl.filter == "" {
		return cl.convs
	}
	var out []chat.Conversation
	for _, cv := range cl.convs {
		if containsFold(Title(cv, cl.selfID), cl.filter) || containsFold(cv.LastMessage, cl.filter) || containsFold(cv.ID, cl.filter) {
			out = append(out, cv)
		}
	}
	return out
}

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
		{" ID", 0},
	}
	for col, h := range headers {
		cell := tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp)
		cl.SetCell(0, col, cell)
	}

	rows := cl.visible()
	for i, cv := range rows {
		row := i + 1
		preview := strings.ReplaceAll(cv.LastMessage, "\n", " ")
		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(Title(cv, cl.selfID)))).SetExpansion(1).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(preview))).SetExpansion(2).SetMaxWidth(60).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(formatTimestamp(cv.LastAt)).SetTextColor(cl.theme.FgColor).SetAlign(tview.AlignRight))
		cl.SetCell(row, 3, tview.NewTableCell(" "+tview.Escape(cv.ID)).SetTextColor(cl.theme.CounterColor).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(rows), len(cl.convs), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// SelectedConversation returns the selected conversation id.
func (cl *ConversationList) SelectedConversation() string {
	row, _ := cl.GetSelection()
	return cl.ConversationByIndex(row)
}

// ConversationByIndex returns the id of the Nth visible conversation (1-based).
func (cl *ConversationList) ConversationByIndex(n int) string {
	rows := cl.visible()
	if n < 1 || n > len(rows) {
		return ""
	}
	return rows[n-1].ID
}

// Lookup returns a loaded conversation by id.
func (cl *ConversationList) Lookup(id string) (chat.Conversation, bool) {
	for _, cv := range cl.convs {
		if cv.ID == id {
			return cv, true
		}
	}
	return chat.Conversation{}, false
}
