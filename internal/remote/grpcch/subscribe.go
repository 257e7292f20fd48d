package grpcch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/remote"
	"github.com/matheus3301/convo/internal/wire"
)

// Subscribe implements remote.Channel.
func (c *Channel) Subscribe(ctx context.Context, conversationID string) (remote.Subscription, error) {
	return c.subscribe(ctx, conversationID, wire.TopicMessages)
}

// SubscribeTyping implements remote.Channel.
func (c *Channel) SubscribeTyping(ctx context.Context, conversationID string) (remote.Subscription, error) {
	return c.subscribe(ctx, conversationID, wire.TopicTyping)
}

func (c *Channel) subscribe(ctx context.Context, conversationID, topic string) (remote.Subscription, error) {
	req := wire.Fields(map[string]*structpb.Value{
		wire.FieldConversationID: structpb.NewStringValue(conversationID),
		wire.FieldTopic:          structpb.NewStringValue(topic),
	})
	subCtx, cancel := context.WithCancel(ctx)
	stream, err := c.open(subCtx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	feed := remote.NewFeed(16, cancel)
	log := c.logger.With(zap.String("conversation_id", conversationID), zap.String("topic", topic))
	go c.pump(subCtx, req, stream, feed, log)
	return feed, nil
}

// open starts a stream and waits for the daemon's confirmation event.
func (c *Channel) open(ctx context.Context, req *structpb.Struct) (wire.SubscribeClient, error) {
	stream, err := c.client.Subscribe(ctx, req)
	if err != nil {
		return nil, fromStatus(err)
	}
	first, err := stream.Recv()
	if err != nil {
		return nil, fromStatus(err)
	}
	evt, err := wire.DecodeEvent(first)
	if err != nil {
		return nil, err
	}
	if evt.Kind != chat.EventLink || evt.Link != chat.LinkUp {
		return nil, fmt.Errorf("%w: stream opened with %s", chat.ErrMalformedEvent, evt.Kind)
	}
	return stream, nil
}

// pump relays stream events into feed. A broken stream produces a down link
// event; the stream is reopened with exponential backoff and an up link event
// follows once the daemon confirms it.
func (c *Channel) pump(ctx context.Context, req *structpb.Struct, stream wire.SubscribeClient, feed *remote.Feed, log *zap.Logger) {
	defer func() { _ = feed.Close() }()
	backoff := c.opts.MinBackoff

	for {
		msg, err := stream.Recv()
		if err == nil {
			evt, err := wire.DecodeEvent(msg)
			if err != nil {
				log.Warn("drop undecodable event", zap.Error(err))
				continue
			}
			if !feed.Push(evt) {
				return
			}
			continue
		}
		if ctx.Err() != nil {
			return
		}

		log.Warn("stream lost", zap.Error(err))
		if !feed.Push(chat.LinkEvent(chat.LinkDown, fromStatus(err))) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.opts.MaxBackoff)
			stream, err = c.open(ctx, req)
			if err == nil {
				break
			}
			log.Debug("reopen failed", zap.Error(err), zap.Duration("backoff", backoff))
		}
		backoff = c.opts.MinBackoff
		log.Info("stream restored")
		if !feed.Push(chat.LinkEvent(chat.LinkUp, nil)) {
			return
		}
	}
}
