package views

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/conversation"
	"github.com/matheus3301/convo/internal/pager"
	"github.com/matheus3301/convo/internal/tui/ui"
)

// gutter is the width reserved left of every line for the selection marker.
const gutter = 2

// ThreadHandlers are called on the UI goroutine. They must not block.
type ThreadHandlers struct {
	OnSend    func(text string)
	OnEdit    func(id, text string)
	OnInput   func(text string)
	OnScroll  func(pager.Viewport)
	OnInitial func()
	// OnFrame sees every applied frame.
	OnFrame func(conversation.Frame)
}

// Thread shows one open conversation and implements conversation.View.
// Render and Viewport may be called from any goroutine; everything else runs on
// the UI goroutine.
type Thread struct {
	*tview.Flex
	app      *tview.Application
	theme    *ui.Theme
	messages *threadText
	typing   *tview.TextView
	composer *tview.InputField
	handlers ThreadHandlers
	selfID   string
	title    string

	wake chan struct{}

	mu      sync.Mutex
	pending *conversation.Frame
	vp      pager.Viewport

	// UI goroutine only.
	convID     string
	frame      conversation.Frame
	starts     []int
	lines      int
	width      int
	selected   int
	selectedID string
	reported   int
	editingID  string
}

var _ conversation.View = (*Thread)(nil)

// threadText reports its scroll position after every draw.
type threadText struct {
	*tview.TextView
	before func(width int)
	after  func()
}

func (t *threadText) Draw(screen tcell.Screen) {
	_, _, w, _ := t.GetInnerRect()
	t.before(w)
	t.TextView.Draw(screen)
	t.after()
}

// NewThread creates the thread view. Call Run to start applying frames.
func NewThread(app *tview.Application, theme *ui.Theme, selfID string) *Thread {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitleColor(theme.TitleColor)

	typing := tview.NewTextView().SetDynamicColors(true)
	typing.SetBackgroundColor(theme.BgColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus) ")
	composer.SetTitleColor(theme.TitleColor)

	t := &Thread{
		app:      app,
		theme:    theme,
		typing:   typing,
		composer: composer,
		selfID:   selfID,
		wake:     make(chan struct{}, 1),
		selected: -1,
		reported: -1,
	}
	t.messages = &threadText{TextView: tv, before: t.resize, after: t.measure}

	t.Flex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.messages, 0, 1, true).
		AddItem(typing, 1, 0, false).
		AddItem(composer, 3, 0, false)

	composer.SetChangedFunc(func(text string) {
		if t.editingID == "" && t.handlers.OnInput != nil {
			t.handlers.OnInput(text)
		}
	})
	composer.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := composer.GetText()
			if strings.TrimSpace(text) == "" {
				return
			}
			if t.editingID != "" {
				if t.handlers.OnEdit != nil {
					t.handlers.OnEdit(t.editingID, text)
				}
				t.CancelEdit()
			} else if t.handlers.OnSend != nil {
				t.handlers.OnSend(text)
			}
			composer.SetText("")
		case tcell.KeyEscape:
			if t.editingID != "" {
				t.CancelEdit()
			}
		}
	})
	return t
}

// Name implements Component.
func (t *Thread) Name() string {
	if t.title != "" {
		return t.title
	}
	return "Messages"
}

// Hints implements Component.
func (t *Thread) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "j/k", Description: "Select"},
		{Key: "e", Description: "Edit"},
		{Key: "x", Description: "Delete"},
		{Key: "r", Description: "Retry"},
		{Key: "D", Description: "Dismiss"},
		{Key: "g", Description: "Older"},
		{Key: "d", Description: "Details"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetHandlers installs the callbacks.
func (t *Thread) SetHandlers(h ThreadHandlers) { t.handlers = h }

// Reset clears the view for a newly opened conversation. Frames for any other
// conversation are ignored from now on.
func (t *Thread) Reset(conversationID, title string) {
	t.mu.Lock()
	t.pending = nil
	t.vp = pager.Viewport{}
	t.mu.Unlock()

	t.convID = conversationID
	t.title = title
	t.frame = conversation.Frame{}
	t.starts, t.lines = nil, 0
	t.selected, t.selectedID, t.reported = -1, "", -1
	t.CancelEdit()
	t.messages.SetTitle(fmt.Sprintf(" %s ", tview.Escape(title)))
	t.messages.SetText("")
	t.typing.SetText("")
}

// Messages returns the message pane (for focus management).
func (t *Thread) Messages() tview.Primitive { return t.messages }

// Composer returns the composer input field (for focus management).
func (t *Thread) Composer() *tview.InputField { return t.composer }

// Render implements conversation.View. Frames that arrive faster than the UI
// draws are coalesced.
func (t *Thread) Render(f conversation.Frame) {
	t.mu.Lock()
	if t.pending != nil {
		f = mergeFrames(*t.pending, f)
	}
	t.pending = &f
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// Viewport implements conversation.View.
func (t *Thread) Viewport() pager.Viewport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.vp
}

// Run applies frames on the UI goroutine until ctx ends.
func (t *Thread) Run(ctx context.Context) {
	for {
		select {
		case <-t.wake:
			t.app.QueueUpdateDraw(t.apply)
		case <-ctx.Done():
			return
		}
	}
}

// mergeFrames folds a newer frame over one not yet drawn. Content comes from next;
// a scroll request in prev survives a next that does not ask for one.
func mergeFrames(prev, next conversation.Frame) conversation.Frame {
	if next.Scroll == conversation.ScrollKeep {
		next.Scroll = prev.Scroll
		next.Anchor = prev.Anchor
	}
	next.Initial = next.Initial || prev.Initial
	return next
}

func (t *Thread) apply() {
	t.mu.Lock()
	p := t.pending
	t.pending = nil
	t.mu.Unlock()
	if p == nil {
		return
	}
	f := *p

	if f.ConversationID != t.convID {
		return
	}
	prevTop, _ := t.messages.GetScrollOffset()
	t.frame = f
	t.reselect()
	t.redraw()

	_, _, _, h := t.messages.GetInnerRect()
	top := prevTop
	switch f.Scroll {
	case conversation.ScrollBottom:
		top = t.lines - h
	case conversation.ScrollAnchor:
		top = f.Anchor.Restore(t.lines)
	}
	top = clamp(top, 0, max(t.lines-h, 0))
	t.messages.ScrollTo(top, 0)
	t.setViewport(top, h)
	t.reported = top

	t.renderTyping(f.Typing)

	if t.handlers.OnFrame != nil {
		t.handlers.OnFrame(f)
	}
	if f.Initial && t.handlers.OnInitial != nil {
		t.handlers.OnInitial()
	}
}

// resize re-wraps the content when the pane width changes.
func (t *Thread) resize(width int) {
	if width == t.width {
		return
	}
	t.width = width
	if t.frame.ConversationID == t.convID && t.convID != "" {
		t.redraw()
	}
}

// measure publishes the scroll position the last draw settled on.
func (t *Thread) measure() {
	top, _ := t.messages.GetScrollOffset()
	_, _, _, h := t.messages.GetInnerRect()
	t.setViewport(top, h)
	if top != t.reported {
		t.reported = top
		if t.handlers.OnScroll != nil {
			t.handlers.OnScroll(t.Viewport())
		}
	}
}

func (t *Thread) setViewport(top, height int) {
	t.mu.Lock()
	t.vp = pager.Viewport{ScrollTop: top, ScrollHeight: t.lines, ClientHeight: height}
	t.mu.Unlock()
}

func (t *Thread) redraw() {
	text, starts := composeThread(t.frame, t.theme, t.selfID, t.width-gutter, t.selected)
	t.starts = starts
	t.lines = strings.Count(text, "\n")
	t.messages.SetText(text)
}

func (t *Thread) renderTyping(names []string) {
	t.typing.Clear()
	if len(names) == 0 {
		return
	}
	verb := "is"
	if len(names) > 1 {
		verb = "are"
	}
	_, _ = fmt.Fprintf(t.typing, " [%s::i]%s %s typing…[-:-:-]",
		ui.ColorName(t.theme.TypingColor), tview.Escape(strings.Join(names, ", ")), verb)
}

// Select moves the selection by delta messages and keeps it visible.
func (t *Thread) Select(delta int) {
	n := len(t.frame.Messages)
	if n == 0 {
		return
	}
	if t.selected < 0 {
		t.selected = n
	}
	t.selected = clamp(t.selected+delta, 0, n-1)
	t.selectedID = t.frame.Messages[t.selected].ID
	t.redraw()

	top, _ := t.messages.GetScrollOffset()
	_, _, _, h := t.messages.GetInnerRect()
	line := t.starts[t.selected]
	if line < top {
		t.messages.ScrollTo(line, 0)
	} else if line >= top+h {
		t.messages.ScrollTo(line-h+1, 0)
	}
}

// Selected returns the selected message.
func (t *Thread) Selected() (chat.Message, bool) {
	if t.selected < 0 || t.selected >= len(t.frame.Messages) {
		return chat.Message{}, false
	}
	return t.frame.Messages[t.selected], true
}

// BeginEdit loads a message into the composer for editing.
func (t *Thread) BeginEdit(m chat.Message) {
	t.editingID = m.ID
	t.composer.SetLabel(" edit> ")
	t.composer.SetTitle(" Editing (Enter to save, Esc to cancel) ")
	t.composer.SetText(m.Content)
}

// CancelEdit returns the composer to sending.
func (t *Thread) CancelEdit() {
	t.editingID = ""
	t.composer.SetLabel(" > ")
	t.composer.SetTitle(" Compose (i to focus) ")
	t.composer.SetText("")
}

// Editing reports whether the composer holds an edit.
func (t *Thread) Editing() bool { return t.editingID != "" }

// reselect finds the selected message in a new frame. A confirmed send changes its
// id, so a vanished id falls back to the nearest index.
func (t *Thread) reselect() {
	if t.selected < 0 {
		return
	}
	for i, m := range t.frame.Messages {
		if m.ID == t.selectedID {
			t.selected = i
			return
		}
	}
	if len(t.frame.Messages) == 0 {
		t.selected, t.selectedID = -1, ""
		return
	}
	t.selected = min(t.selected, len(t.frame.Messages)-1)
	t.selectedID = t.frame.Messages[t.selected].ID
}

// composeThread lays out a frame as tview text. starts[i] is the first line of message i.
func composeThread(f conversation.Frame, theme *ui.Theme, selfID string, width, selected int) (string, []int) {
	var b strings.Builder
	line := 0
	emit := func(prefix, s string) {
		b.WriteString(prefix)
		b.WriteString(s)
		b.WriteByte('\n')
		line++
	}

	dim := ui.ColorName(theme.PendingColor)
	switch {
	case f.LoadingOlder:
		emit("  ", fmt.Sprintf("[%s::i]loading older messages…[-:-:-]", dim))
	case f.HasMoreOlder:
		emit("  ", fmt.Sprintf("[%s::d]↑ scroll up or press g for older messages[-:-:-]", dim))
	default:
		emit("  ", fmt.Sprintf("[%s::d]start of conversation[-:-:-]", dim))
	}
	emit("", "")

	starts := make([]int, len(f.Messages))
	for i, m := range f.Messages {
		starts[i] = line
		marker := "  "
		if i == selected {
			marker = fmt.Sprintf("[%s]▌[-] ", ui.ColorName(theme.BorderFocusColor))
		}

		sender, color := m.SenderName, theme.PeerColor
		if sender == "" {
			sender = m.SenderID
		}
		if m.SenderID == selfID {
			sender, color = "You", theme.SelfColor
		}
		header := fmt.Sprintf("[%s::b]%s[-:-:-] [::d]%s[-:-:-]",
			ui.ColorName(color), tview.Escape(sanitizeForTerminal(sender)), formatTimestamp(m.CreatedAt))
		if m.Edited {
			header += " [::d](edited)[-:-:-]"
		}
		switch m.State {
		case chat.Pending:
			header += fmt.Sprintf(" [%s]… sending[-]", dim)
		case chat.Failed:
			header += fmt.Sprintf(" [%s]✗ not sent (r retry, D dismiss)[-]", ui.ColorName(theme.FailedColor))
		case chat.Confirmed:
			if m.SenderID == selfID {
				header += readMark(m.IsRead, theme)
			}
		}
		emit(marker, header)

		bodyColor := ui.ColorName(theme.FgColor)
		if m.State != chat.Confirmed {
			bodyColor = dim
		}
		for _, l := range wrap(sanitizeForTerminal(m.Content), width) {
			emit(marker, fmt.Sprintf("[%s]%s[-]", bodyColor, tview.Escape(l)))
		}
		emit("", "")
	}
	return b.String(), starts
}

// readMark is one tick once stored, two once the peer has read it.
func readMark(read bool, theme *ui.Theme) string {
	if read {
		return fmt.Sprintf(" [%s]✓✓[-]", ui.ColorName(theme.LinkLiveColor))
	}
	return " [::d]✓[-:-:-]"
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
