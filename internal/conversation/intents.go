package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/outbox"
	"github.com/matheus3301/convo/internal/pager"
	"github.com/matheus3301/convo/internal/status"
	"go.uber.org/zap"
)

// Send shows content as a pending message right away and queues it for the store.
// It returns the provisional record.
func (s *Session) Send(ctx context.Context, content string) (chat.Message, error) {
	var pending chat.Message
	err := s.call(ctx, func() error {
		m, err := s.engine.BeginSend(s.cfg.ConversationID, content)
		if err != nil {
			return err
		}
		pending = m
		s.typing.Input("")
		s.enqueue(m, 0)
		s.render(Frame{Scroll: ScrollBottom})
		return nil
	})
	return pending, err
}

func (s *Session) enqueue(m chat.Message, attempt int) {
	ok := s.sender.Enqueue(outbox.Job{
		ProvisionalID:  m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Attempt:        attempt,
	})
	if !ok {
		s.engine.FailSend(m.ID)
		s.notify("send_failed", Notice{Level: Error, Text: "Message not sent: too many messages queued", MessageID: m.ID, Retryable: true})
	}
}

// onSendResult runs on the sender goroutine.
func (s *Session) onSendResult(r outbox.Result) {
	s.post(func() {
		if s.active {
			s.settleSend(r)
		}
	})
}

func (s *Session) settleSend(r outbox.Result) {
	pid := r.Job.ProvisionalID
	if r.Err == nil {
		s.engine.ConfirmSend(pid, r.Message)
		s.render(Frame{})
		return
	}

	if !s.engine.FailSend(pid) {
		return
	}
	if r.Job.Attempt < s.cfg.AutoRetry {
		delay := s.cfg.RetryBackoff * time.Duration(r.Job.Attempt+1)
		s.logger.Info("retrying send", zap.String("provisional_id", pid), zap.Duration("after", delay))
		time.AfterFunc(delay, func() {
			s.post(func() {
				if !s.active {
					return
				}
				m, err := s.engine.Retry(pid)
				if err != nil {
					// Dismissed or settled meanwhile.
					return
				}
				s.enqueue(m, r.Job.Attempt+1)
				s.render(Frame{})
			})
		})
	} else {
		s.notify("send_failed", Notice{Level: Error, Text: "Message not sent", MessageID: pid, Retryable: true, Err: r.Err})
	}
	s.render(Frame{})
}

// Retry resends a failed message.
func (s *Session) Retry(ctx context.Context, id string) error {
	return s.call(ctx, func() error {
		m, err := s.engine.Retry(id)
		if err != nil {
			return err
		}
		s.enqueue(m, 0)
		s.render(Frame{})
		return nil
	})
}

// Dismiss drops a failed message.
func (s *Session) Dismiss(ctx context.Context, id string) error {
	return s.call(ctx, func() error {
		if err := s.engine.Dismiss(id); err != nil {
			return err
		}
		s.render(Frame{})
		return nil
	})
}

// Edit replaces the content of one of the user's own recent messages. Authorization is
// checked locally first; the timeline changes only after the store accepts the edit.
func (s *Session) Edit(ctx context.Context, id, content string) error {
	if strings.TrimSpace(content) == "" {
		return chat.ErrEmptyContent
	}
	patch := chat.ContentPatch(content)
	return s.modify(ctx, id, "edit",
		func(ctx context.Context) error { return s.ch.UpdateMessage(ctx, id, patch) },
		func() { s.engine.ApplyUpdate(id, patch) })
}

// Delete removes one of the user's own recent messages, with the same rules as Edit.
func (s *Session) Delete(ctx context.Context, id string) error {
	return s.modify(ctx, id, "delete",
		func(ctx context.Context) error { return s.ch.DeleteMessage(ctx, id) },
		func() { s.engine.ApplyDelete(id) })
}

func (s *Session) modify(ctx context.Context, id, verb string, remoteOp func(context.Context) error, apply func()) error {
	result := make(chan error, 1)
	err := s.call(ctx, func() error {
		if _, err := s.engine.Authorize(id); err != nil {
			s.notify("rejected", Notice{Level: Warn, Text: rejectionText(verb, err, s.cfg.EditWindow), MessageID: id, Err: err})
			return err
		}
		s.async(remoteOp, func(err error) {
			if err != nil {
				s.logger.Error("modify failed", zap.String("op", verb), zap.String("msg_id", id), zap.Error(err))
				s.notify("error", Notice{Level: Error, Text: "Could not " + verb + " message", MessageID: id, Err: err})
			} else {
				apply()
				s.render(Frame{})
			}
			result <- err
		})
		return nil
	})
	if err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-s.done:
		return chat.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func rejectionText(verb string, err error, window time.Duration) string {
	switch {
	case errors.Is(err, chat.ErrNotAuthor):
		return "You can only " + verb + " your own messages"
	case errors.Is(err, chat.ErrEditWindowExpired):
		return "You can only " + verb + " messages within " + humanDuration(window) + " of sending"
	case errors.Is(err, chat.ErrNotConfirmed):
		return "Wait until the message is sent"
	default:
		return "Message not found"
	}
}

// Input records the composer contents after a keystroke.
func (s *Session) Input(text string) {
	s.typing.Input(text)
}

// Scrolled reports a scroll position from the view. Scrolling near the top loads older history.
func (s *Session) Scrolled(vp pager.Viewport) {
	s.post(func() {
		if s.active && s.pager.ShouldLoad(vp.ScrollTop) {
			s.loadOlder()
		}
	})
}

// InitialRenderComplete tells the session the first frame is on screen and scrolled to the bottom.
func (s *Session) InitialRenderComplete() {
	s.post(func() {
		if s.active {
			s.pager.Arm()
		}
	})
}

// LoadOlder requests the previous page of history.
func (s *Session) LoadOlder() {
	s.post(func() {
		if s.active {
			s.loadOlder()
		}
	})
}

// Refresh re-fetches the newest page and merges it.
func (s *Session) Refresh() {
	s.post(func() {
		if s.active {
			s.refresh()
		}
	})
}

// State is a point-in-time read of the session.
type State struct {
	Messages     []chat.Message
	Typing       []string
	HasMoreOlder bool
	LoadingOlder bool
	Link         status.State
}

// State returns the current session state.
func (s *Session) State(ctx context.Context) (State, error) {
	var st State
	err := s.call(ctx, func() error {
		st = State{
			Messages:     s.tl.Snapshot(),
			Typing:       s.roster.Typing(s.cfg.Now()),
			HasMoreOlder: s.pager.HasMoreOlder(),
			LoadingOlder: s.pager.InFlight(),
			Link:         s.link.Current(),
		}
		return nil
	})
	return st, err
}

// humanDuration renders whole minutes as "15 minutes" and anything else as time.Duration does.
func humanDuration(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "1 minute"
	case d > 0 && d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	default:
		return d.String()
	}
}
