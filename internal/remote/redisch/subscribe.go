package redisch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/remote"
)

// Subscribe implements remote.Channel.
func (c *Channel) Subscribe(ctx context.Context, conversationID string) (remote.Subscription, error) {
	return c.subscribe(ctx, messageEventsChannel(conversationID))
}

// SubscribeTyping implements remote.Channel.
func (c *Channel) SubscribeTyping(ctx context.Context, conversationID string) (remote.Subscription, error) {
	return c.subscribe(ctx, typingEventsChannel(conversationID))
}

func (c *Channel) subscribe(ctx context.Context, channel string) (remote.Subscription, error) {
	ps := c.client.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so no publish after return is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	subCtx, cancel := context.WithCancel(ctx)
	feed := remote.NewFeed(16, func() {
		cancel()
		_ = ps.Close()
	})
	go c.pump(subCtx, ps, feed, channel)
	return feed, nil
}

// pump forwards pub/sub messages to feed. When the connection drops it emits
// a down link event, probes with exponential backoff, and emits up once the
// subscription is live again.
func (c *Channel) pump(ctx context.Context, ps *redis.PubSub, feed *remote.Feed, channel string) {
	defer func() { _ = feed.Close() }()
	log := c.logger.With(zap.String("channel", channel))
	backoff := c.opts.MinBackoff
	down := false

	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if !down {
				down = true
				log.Warn("subscription lost", zap.Error(err))
				if !feed.Push(chat.LinkEvent(chat.LinkDown, err)) {
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.opts.MaxBackoff)
			if err := ps.Ping(ctx); err != nil {
				log.Debug("reconnect probe failed", zap.Error(err), zap.Duration("backoff", backoff))
				continue
			}
			down = false
			backoff = c.opts.MinBackoff
			log.Info("subscription restored")
			if !feed.Push(chat.LinkEvent(chat.LinkUp, nil)) {
				return
			}
			continue
		}

		evt, err := decodePayload(msg.Payload)
		if err != nil {
			log.Warn("drop undecodable event", zap.Error(err))
			continue
		}
		if !feed.Push(evt) {
			return
		}
	}
}
