// Package grpcch implements remote.Channel as a client of the convod daemon.
package grpcch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/metrics"
	"github.com/matheus3301/convo/internal/remote"
	"github.com/matheus3301/convo/internal/wire"
)

const backend = "daemon"

// Options tunes stream recovery.
type Options struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func (o *Options) defaults() {
	if o.MinBackoff <= 0 {
		o.MinBackoff = 200 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 5 * time.Second
	}
}

// Channel is a remote.Channel that forwards every call to convod.
type Channel struct {
	conn   *grpc.ClientConn
	client *wire.ChannelClient
	opts   Options
	logger *zap.Logger
}

var (
	_ remote.Channel   = (*Channel)(nil)
	_ remote.Directory = (*Channel)(nil)
)

// Dial connects to the daemon listening on socketPath.
func Dial(socketPath string, opts Options, logger *zap.Logger) (*Channel, error) {
	opts.defaults()
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  opts.MinBackoff,
				Multiplier: 1.6,
				Jitter:     0.2,
				MaxDelay:   opts.MaxBackoff,
			},
			MinConnectTimeout: 5 * time.Second,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	c := New(conn, opts, logger)
	c.conn = conn
	return c, nil
}

// New wraps an existing connection. Close does not close cc.
func New(cc grpc.ClientConnInterface, opts Options, logger *zap.Logger) *Channel {
	opts.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{client: wire.NewChannelClient(cc), opts: opts, logger: logger.With(zap.String("backend", backend))}
}

// Close closes the connection when Dial opened it.
func (c *Channel) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Status returns the daemon's status document.
func (c *Channel) Status(ctx context.Context) (*structpb.Struct, error) {
	s, err := c.client.Status(ctx)
	return s, fromStatus(err)
}

// fromStatus maps gRPC codes back onto domain errors.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := grpcstatus.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", st.Message(), chat.ErrNotFound)
	case codes.InvalidArgument:
		if strings.Contains(st.Message(), chat.ErrEmptyContent.Error()) {
			return fmt.Errorf("%s: %w", st.Message(), chat.ErrEmptyContent)
		}
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}
	return err
}

func observe(op string, start time.Time) {
	metrics.BackendLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// FetchPage implements remote.Channel.
func (c *Channel) FetchPage(ctx context.Context, conversationID string, before *time.Time, limit int) ([]chat.Message, error) {
	defer observe("fetch_page", time.Now())
	f := map[string]*structpb.Value{
		wire.FieldConversationID: structpb.NewStringValue(conversationID),
		wire.FieldLimit:          structpb.NewNumberValue(float64(limit)),
	}
	if before != nil {
		f[wire.FieldBefore] = structpb.NewNumberValue(float64(chat.Millis(*before)))
	}
	resp, err := c.client.FetchPage(ctx, wire.Fields(f))
	if err != nil {
		return nil, fromStatus(err)
	}
	return wire.DecodeMessages(resp), nil
}

// InsertMessage implements remote.Channel.
func (c *Channel) InsertMessage(ctx context.Context, conversationID, senderID, content string) (chat.Message, error) {
	defer observe("insert", time.Now())
	resp, err := c.client.InsertMessage(ctx, wire.Fields(map[string]*structpb.Value{
		wire.FieldConversationID: structpb.NewStringValue(conversationID),
		wire.FieldSenderID:       structpb.NewStringValue(senderID),
		wire.FieldContent:        structpb.NewStringValue(content),
	}))
	if err != nil {
		return chat.Message{}, fromStatus(err)
	}
	return wire.DecodeMessage(resp), nil
}

// UpdateMessage implements remote.Channel.
func (c *Channel) UpdateMessage(ctx context.Context, id string, patch chat.Patch) error {
	defer observe("update", time.Now())
	return fromStatus(c.client.UpdateMessage(ctx, wire.EncodePatch(id, patch)))
}

// DeleteMessage implements remote.Channel.
func (c *Channel) DeleteMessage(ctx context.Context, id string) error {
	defer observe("delete", time.Now())
	return fromStatus(c.client.DeleteMessage(ctx, wire.Fields(map[string]*structpb.Value{
		wire.FieldID: structpb.NewStringValue(id),
	})))
}

// PublishTyping implements remote.Channel.
func (c *Channel) PublishTyping(ctx context.Context, rec chat.TypingRecord) error {
	defer observe("publish_typing", time.Now())
	return fromStatus(c.client.PublishTyping(ctx, wire.EncodeTyping(rec)))
}

// FetchTyping implements remote.Channel.
func (c *Channel) FetchTyping(ctx context.Context, conversationID string) ([]chat.TypingRecord, error) {
	resp, err := c.client.FetchTyping(ctx, wire.Fields(map[string]*structpb.Value{
		wire.FieldConversationID: structpb.NewStringValue(conversationID),
	}))
	if err != nil {
		return nil, fromStatus(err)
	}
	return wire.DecodeTypingRecords(resp), nil
}

// ListConversations implements remote.Channel.
func (c *Channel) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	resp, err := c.client.ListConversations(ctx, wire.Fields(map[string]*structpb.Value{
		wire.FieldUserID: structpb.NewStringValue(userID),
	}))
	if err != nil {
		return nil, fromStatus(err)
	}
	return wire.DecodeConversations(resp), nil
}

// EnsureConversation implements remote.Directory.
func (c *Channel) EnsureConversation(ctx context.Context, conv chat.Conversation) error {
	return fromStatus(c.client.EnsureConversation(ctx, wire.EncodeConversation(conv)))
}
