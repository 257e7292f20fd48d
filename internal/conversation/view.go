package conversation

import (
	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/pager"
	"github.com/matheus3301/convo/internal/status"
)

// View is the rendering surface a session drives. Both methods are called from the
// session goroutine and must not call back into the session synchronously.
type View interface {
	// Viewport reports the current scroll state.
	Viewport() pager.Viewport
	// Render shows a frame.
	Render(Frame)
}

// Scroll tells the view how to position the viewport after applying a frame.
type Scroll int

const (
	// ScrollKeep leaves the offset alone.
	ScrollKeep Scroll = iota
	// ScrollBottom follows the newest message.
	ScrollBottom
	// ScrollAnchor sets the offset to Anchor.Restore(newContentHeight) in the same paint.
	ScrollAnchor
)

// Frame is an immutable snapshot of everything a view shows.
type Frame struct {
	ConversationID string
	Messages       []chat.Message
	Typing         []string
	HasMoreOlder   bool
	LoadingOlder   bool
	Link           status.State
	Scroll         Scroll
	Anchor         pager.Anchor
	// Initial is set on the first frame; the view calls InitialRenderComplete once it is shown.
	Initial bool
}

// Level grades a notice.
type Level string

const (
	Info  Level = "info"
	Warn  Level = "warn"
	Error Level = "error"
)

// Notice is a user-visible message published on the bus under "notice.".
type Notice struct {
	ConversationID string
	Level          Level
	Text           string
	// MessageID names the record the notice is about, if any.
	MessageID string
	// Retryable marks a failed send the user can retry or dismiss.
	Retryable bool
	Err       error
}

// discardView is used when a session runs without a screen, e.g. from the CLI.
type discardView struct{}

func (discardView) Viewport() pager.Viewport { return pager.Viewport{} }
func (discardView) Render(Frame)             {}

// Headless returns a View that renders nothing and reports an empty viewport.
func Headless() View { return discardView{} }
