package sqlch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/remote"
	"github.com/matheus3301/convo/internal/store"
)

const (
	topicMessages = "messages"
	topicTyping   = "typing"

	linkNamespace = "sqlite.link."
	batchSize     = 500
)

func (c *Channel) tail(ctx context.Context) {
	defer close(c.done)
	poll := time.NewTicker(c.opts.PollInterval)
	defer poll.Stop()
	prune := time.NewTicker(time.Minute)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			c.poll()
		case <-prune.C:
			cutoff := time.Now().Add(-c.opts.Retention).UnixMilli()
			if n, err := c.db.PruneChanges(cutoff); err != nil {
				c.logger.Warn("prune change log", zap.Error(err))
			} else if n > 0 {
				c.logger.Debug("pruned change log", zap.Int64("rows", n))
			}
		}
	}
}

// poll drains the change log and fans every entry out on the bus. A read
// failure is reported to subscribers as a link drop; the next successful
// read reports recovery.
func (c *Channel) poll() {
	for {
		changes, err := c.db.ChangesSince(c.last, batchSize)
		if err != nil {
			if !c.down {
				c.down = true
				c.logger.Warn("change log unreadable", zap.Error(err))
				c.bus.Publish(bus.Event{Kind: bus.Kind(linkNamespace, "down"), Timestamp: time.Now(), Payload: chat.LinkEvent(chat.LinkDown, err)})
			}
			return
		}
		if c.down {
			c.down = false
			c.logger.Info("change log readable again")
			c.bus.Publish(bus.Event{Kind: bus.Kind(linkNamespace, "up"), Timestamp: time.Now(), Payload: chat.LinkEvent(chat.LinkUp, nil)})
		}
		for _, ch := range changes {
			c.last = ch.Seq
			c.dispatch(ch)
		}
		if len(changes) < batchSize {
			return
		}
	}
}

func (c *Channel) dispatch(ch store.Change) {
	var (
		evt   chat.Event
		topic = topicMessages
	)
	switch ch.Kind {
	case store.ChangeInsert, store.ChangeUpdate:
		m, err := c.db.GetMessage(ch.RowID)
		if err != nil {
			c.logger.Warn("resolve change", zap.Int64("seq", ch.Seq), zap.Error(err))
			return
		}
		if m == nil {
			// Deleted since; its delete entry follows.
			return
		}
		if ch.Kind == store.ChangeInsert {
			evt = chat.InsertEvent(toChat(*m))
		} else {
			content, read := m.Content, m.IsRead
			evt = chat.UpdateEvent(m.ID, chat.Patch{Content: &content, IsRead: &read})
		}
	case store.ChangeDelete:
		evt = chat.DeleteEvent(ch.RowID)
	case store.ChangeTyping:
		t, err := c.db.GetTyping(ch.ConversationID, ch.RowID)
		if err != nil || t == nil {
			c.logger.Warn("resolve typing change", zap.Int64("seq", ch.Seq), zap.Error(err))
			return
		}
		evt = chat.TypingEvent(toTyping(*t))
		topic = topicTyping
	default:
		c.logger.Warn("unknown change kind", zap.String("kind", ch.Kind), zap.Int64("seq", ch.Seq))
		return
	}
	c.bus.Publish(bus.Event{
		Kind:      bus.Kind(bus.Namespace("conversation", ch.ConversationID, topic), ch.Kind),
		Timestamp: time.UnixMilli(ch.CreatedAt),
		Payload:   evt,
	})
}

// Subscribe implements remote.Channel.
func (c *Channel) Subscribe(ctx context.Context, conversationID string) (remote.Subscription, error) {
	return c.subscribe(ctx, conversationID, topicMessages)
}

// SubscribeTyping implements remote.Channel.
func (c *Channel) SubscribeTyping(ctx context.Context, conversationID string) (remote.Subscription, error) {
	return c.subscribe(ctx, conversationID, topicTyping)
}

func (c *Channel) subscribe(ctx context.Context, conversationID, topic string) (remote.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	events, unsub := c.bus.Subscribe(bus.Namespace("conversation", conversationID, topic), 256)
	links, unsubLinks := c.bus.Subscribe(linkNamespace, 4)
	feed := remote.NewFeed(16, func() {
		unsub()
		unsubLinks()
	})
	go func() {
		for {
			var evt bus.Event
			select {
			case <-feed.Done():
				return
			case <-ctx.Done():
				_ = feed.Close()
				return
			case evt = <-events:
			case evt = <-links:
			}
			e, ok := evt.Payload.(chat.Event)
			if !ok {
				continue
			}
			if !feed.Push(e) {
				return
			}
		}
	}()
	return feed, nil
}
