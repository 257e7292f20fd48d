package conversation

import (
	"context"
	"time"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/metrics"
	"github.com/matheus3301/convo/internal/pager"
	"github.com/matheus3301/convo/internal/remote"
	"github.com/matheus3301/convo/internal/status"
	"go.uber.org/zap"
)

// handleEvent applies one pushed event. It runs on the loop.
func (s *Session) handleEvent(evt chat.Event) {
	if err := evt.Validate(); err != nil {
		s.dropMalformed(evt, err)
		return
	}

	switch evt.Kind {
	case chat.EventInsert:
		if evt.Message.ConversationID != s.cfg.ConversationID {
			s.dropMalformed(evt, chat.ErrMalformedEvent)
			return
		}
		// Decide from the viewport before the insert changes its height.
		follow := s.view.Viewport().NearBottom(s.cfg.NearBottom) && !s.pager.InFlight()
		effect := s.engine.Dispatch(evt)
		if !effect.Changed {
			return
		}
		scroll := ScrollKeep
		if effect.FromOther(s.cfg.SelfID) {
			if !effect.Message.IsRead {
				s.markRead([]string{effect.Message.ID})
			}
			if follow {
				scroll = ScrollBottom
			}
		}
		s.render(Frame{Scroll: scroll})

	case chat.EventUpdate, chat.EventDelete:
		if s.engine.Dispatch(evt).Changed {
			s.render(Frame{})
		}

	case chat.EventTyping:
		if evt.Typing.ConversationID != "" && evt.Typing.ConversationID != s.cfg.ConversationID {
			s.dropMalformed(evt, chat.ErrMalformedEvent)
			return
		}
		now := s.cfg.Now()
		follow := s.view.Viewport().NearBottom(s.cfg.NearBottom) && !s.pager.InFlight()
		wasTyping := len(s.roster.Typing(now)) > 0
		if s.roster.Apply(evt.Typing) {
			// The indicator appearing grows the thread; keep it in view.
			scroll := ScrollKeep
			if !wasTyping && len(s.roster.Typing(now)) > 0 && follow {
				scroll = ScrollBottom
			}
			s.render(Frame{Scroll: scroll})
			s.scheduleExpiry()
		}

	case chat.EventLink:
		s.handleLink(evt)
	}
}

func (s *Session) dropMalformed(evt chat.Event, err error) {
	metrics.MalformedEvents.Inc()
	s.logger.Warn("dropping malformed event", zap.String("kind", string(evt.Kind)), zap.Error(err))
}

// handleLink reacts to a subscription dropping or recovering. Both subscriptions
// report, so transitions that are already taken are ignored.
func (s *Session) handleLink(evt chat.Event) {
	switch evt.Link {
	case chat.LinkDown:
		if s.link.Current() == status.Reconnecting {
			return
		}
		if err := s.link.Transition(status.Reconnecting); err != nil {
			return
		}
		s.logger.Warn("real-time connection lost", zap.Error(evt.Err))
		s.notify("reconnecting", Notice{Level: Warn, Text: "Real-time connection error, reconnecting", Err: evt.Err})
		s.render(Frame{})

	case chat.LinkUp:
		if s.link.Current() != status.Reconnecting {
			return
		}
		if err := s.link.Transition(status.Live); err != nil {
			return
		}
		metrics.Reconnects.Inc()
		s.logger.Info("real-time connection restored")
		s.notify("reconnected", Notice{Level: Info, Text: "Reconnected"})
		s.resync()
	}
}

// resync re-reads everything a dropped subscription may have missed.
func (s *Session) resync() {
	s.pager.Reset()
	s.refresh()
	var recs []chat.TypingRecord
	s.async(func(ctx context.Context) error {
		var err error
		recs, err = s.ch.FetchTyping(ctx, s.cfg.ConversationID)
		return err
	}, func(err error) {
		if err != nil {
			s.logger.Warn("presence resync failed", zap.Error(err))
			return
		}
		s.roster.Resync(recs)
		s.render(Frame{})
		s.scheduleExpiry()
	})
}

// loadOlder fetches the previous page and prepends it with the viewport anchored.
func (s *Session) loadOlder() {
	req, ok := s.pager.Begin()
	if !ok {
		return
	}
	s.render(Frame{})
	mark := s.engine.Mark()
	var page []chat.Message
	s.async(func(ctx context.Context) error {
		var err error
		page, err = s.ch.FetchPage(ctx, s.cfg.ConversationID, req.Before, req.Limit)
		return err
	}, func(err error) {
		defer s.engine.Done(mark)
		anchor := pager.Capture(s.view.Viewport())
		n, err := s.pager.CompleteWith(req, page, err, func(page []chat.Message) []chat.Message {
			return s.engine.Fresh(mark, page)
		})
		if err != nil {
			s.logger.Warn("loading older messages failed", zap.Error(err))
			s.notify("error", Notice{Level: Error, Text: "Could not load older messages", Err: err})
			s.render(Frame{})
			return
		}
		if n == 0 {
			s.render(Frame{})
			return
		}
		s.render(Frame{Scroll: ScrollAnchor, Anchor: anchor})
	})
}

// refresh re-fetches the newest page and merges it by id.
func (s *Session) refresh() {
	if s.refreshing {
		return
	}
	s.refreshing = true
	limit := s.pager.PageSize()
	mark := s.engine.Mark()
	var page []chat.Message
	s.async(func(ctx context.Context) error {
		var err error
		page, err = s.ch.FetchPage(ctx, s.cfg.ConversationID, nil, limit)
		return err
	}, func(err error) {
		s.refreshing = false
		defer s.engine.Done(mark)
		if err != nil {
			s.logger.Debug("refresh failed", zap.Error(err))
			return
		}
		follow := s.view.Viewport().NearBottom(s.cfg.NearBottom) && !s.pager.InFlight()
		res := s.engine.Merge(page, len(page) < limit, mark)
		if !res.Changed() {
			return
		}
		scroll := ScrollKeep
		if res.Added > 0 && follow {
			scroll = ScrollBottom
		}
		s.render(Frame{Scroll: scroll})
		s.markConversationRead()
	})
}

// markConversationRead marks every unread message from others as read.
func (s *Session) markConversationRead() {
	if ids := s.engine.UnreadFromOthers(); len(ids) > 0 {
		s.markRead(ids)
	}
}

func (s *Session) markRead(ids []string) {
	s.async(func(ctx context.Context) error {
		return remote.MarkRead(ctx, s.ch, ids)
	}, func(err error) {
		if err != nil {
			s.logger.Warn("mark read failed", zap.Int("count", len(ids)), zap.Error(err))
			return
		}
		changed := false
		for _, id := range ids {
			if s.engine.ApplyUpdate(id, chat.ReadPatch()) {
				changed = true
			}
		}
		if changed {
			s.render(Frame{})
		}
	})
}

// scheduleExpiry redraws when the earliest typing indicator lapses.
func (s *Session) scheduleExpiry() {
	next, ok := s.roster.NextExpiry(s.cfg.Now())
	if !ok {
		return
	}
	if s.expiry != nil {
		s.expiry.Stop()
	}
	s.expiry = time.AfterFunc(next.Sub(s.cfg.Now())+10*time.Millisecond, func() {
		s.post(func() {
			if s.active {
				s.render(Frame{})
				s.scheduleExpiry()
			}
		})
	})
}
