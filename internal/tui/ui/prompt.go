package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// PromptMode indicates the type of prompt (command or filter).
type PromptMode int

const (
	PromptCommand PromptMode = iota
	PromptFilter
)

const historySize = 50

// Prompt is a command/filter input bar. Submitted commands are kept in a
// history recalled with Up and Down.
type Prompt struct {
	*tview.InputField
	theme    *Theme
	mode     PromptMode
	history  []string
	cursor   int
	onSubmit func(mode PromptMode, text string)
	onCancel func()
}

// NewPrompt creates a new prompt input bar.
func NewPrompt(theme *Theme) *Prompt {
	input := tview.NewInputField()
	input.SetBorder(true)
	input.SetBorderColor(theme.PromptBorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	p := &Prompt{
		InputField: input,
		theme:      theme,
	}

	input.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if p.mode != PromptCommand {
			return ev
		}
		switch ev.Key() {
		case tcell.KeyUp:
			p.SetText(p.recall(-1))
			return nil
		case tcell.KeyDown:
			p.SetText(p.recall(1))
			return nil
		}
		return ev
	})
	input.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			p.submit(p.GetText())
		case tcell.KeyEscape:
			p.SetText("")
			if p.onCancel != nil {
				p.onCancel()
			}
		}
	})

	return p
}

// SetOnSubmit sets the callback when the prompt is submitted.
func (p *Prompt) SetOnSubmit(fn func(mode PromptMode, text string)) {
	p.onSubmit = fn
}

// SetOnCancel sets the callback when the prompt is cancelled.
func (p *Prompt) SetOnCancel(fn func()) {
	p.onCancel = fn
}

// Activate shows the prompt in the specified mode.
func (p *Prompt) Activate(mode PromptMode) {
	p.mode = mode
	p.cursor = len(p.history)
	p.SetText("")
	switch mode {
	case PromptCommand:
		p.SetLabel(":")
		p.SetTitle(" Command (Up/Down for history) ")
	case PromptFilter:
		p.SetLabel("/")
		p.SetTitle(" Filter conversations ")
	}
}

// Mode returns the current prompt mode.
func (p *Prompt) Mode() PromptMode {
	return p.mode
}

// submit hands text to the callback. An empty filter clears the filter; an
// empty command is dropped.
func (p *Prompt) submit(text string) {
	p.SetText("")
	if p.mode == PromptCommand {
		if text == "" {
			if p.onCancel != nil {
				p.onCancel()
			}
			return
		}
		p.remember(text)
	}
	if p.onSubmit != nil {
		p.onSubmit(p.mode, text)
	}
}

func (p *Prompt) remember(text string) {
	if n := len(p.history); n > 0 && p.history[n-1] == text {
		p.cursor = n
		return
	}
	p.history = append(p.history, text)
	if len(p.history) > historySize {
		p.history = p.history[len(p.history)-historySize:]
	}
	p.cursor = len(p.history)
}

// recall moves through the history; stepping past the newest entry yields "".
func (p *Prompt) recall(step int) string {
	if len(p.history) == 0 {
		return ""
	}
	p.cursor += step
	if p.cursor < 0 {
		p.cursor = 0
	}
	if p.cursor >= len(p.history) {
		p.cursor = len(p.history)
		return ""
	}
	return p.history[p.cursor]
}
