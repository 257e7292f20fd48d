// Package redisch implements remote.Channel on Redis: message hashes indexed
// by per-conversation sorted sets, typing hashes, and pub/sub for pushes.
package redisch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/metrics"
	"github.com/matheus3301/convo/internal/remote"
)

const backend = "redis"

// Options tunes subscription recovery.
type Options struct {
	// MinBackoff and MaxBackoff bound the wait between reconnect probes.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

func (o *Options) defaults() {
	if o.MinBackoff <= 0 {
		o.MinBackoff = 100 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 5 * time.Second
	}
}

// Channel is a remote.Channel backed by a Redis client.
type Channel struct {
	client *redis.Client
	opts   Options
	logger *zap.Logger
}

var (
	_ remote.Channel   = (*Channel)(nil)
	_ remote.Directory = (*Channel)(nil)
)

// Open connects to redisURL and verifies the connection.
func Open(ctx context.Context, redisURL string, opts Options, logger *zap.Logger) (*Channel, error) {
	ropts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, opts, logger), nil
}

// New wraps an existing client. Close closes it.
func New(client *redis.Client, opts Options, logger *zap.Logger) *Channel {
	opts.defaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{client: client, opts: opts, logger: logger.With(zap.String("backend", backend))}
}

// Close closes the Redis connection.
func (c *Channel) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection.
func (c *Channel) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func observe(op string, start time.Time) {
	metrics.BackendLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// FetchPage implements remote.Channel.
func (c *Channel) FetchPage(ctx context.Context, conversationID string, before *time.Time, limit int) ([]chat.Message, error) {
	defer observe("fetch_page", time.Now())
	if limit <= 0 {
		limit = 50
	}
	maxScore := "+inf"
	if before != nil {
		maxScore = fmt.Sprintf("(%d", chat.Millis(*before)) // exclusive
	}
	key := conversationMessagesKey(conversationID)
	out := make([]chat.Message, 0, limit)
	for len(out) < limit {
		want := limit - len(out)
		zs, err := c.client.ZRevRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   maxScore,
			Count: int64(want),
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("range messages: %w", err)
		}
		ids := make([]string, len(zs))
		for i, z := range zs {
			ids[i], _ = z.Member.(string)
		}
		page, err := c.loadMessages(ctx, conversationID, ids)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(zs) < want {
			break
		}
		// Skipped rows leave the page short; keep ranging past the last id so a
		// short page still means the start of history.
		maxScore = fmt.Sprintf("(%d", int64(zs[len(zs)-1].Score))
	}
	return out, nil
}

func (c *Channel) loadMessages(ctx context.Context, conversationID string, ids []string) ([]chat.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := c.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, messageKey(id))
	}
	names := pipe.HGetAll(ctx, conversationParticipantsKey(conversationID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	usernames := names.Val()
	out := make([]chat.Message, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// Deleted between the range and the load.
			continue
		}
		m, err := decodeMessage(fields)
		if err != nil {
			c.logger.Warn("skip corrupt message", zap.String("msg_id", ids[i]), zap.Error(err))
			continue
		}
		m.SenderName = usernames[m.SenderID]
		out = append(out, m)
	}
	return out, nil
}

func decodeMessage(f map[string]string) (chat.Message, error) {
	created, err := strconv.ParseInt(f["created_at"], 10, 64)
	if err != nil {
		return chat.Message{}, fmt.Errorf("created_at: %w", err)
	}
	return chat.Message{
		ID:             f["id"],
		ConversationID: f["conversation_id"],
		SenderID:       f["sender_id"],
		Content:        f["content"],
		CreatedAt:      chat.FromMillis(created),
		IsRead:         f["is_read"] == "1",
		Edited:         f["edited"] == "1",
		State:          chat.Confirmed,
	}, nil
}

// InsertMessage implements remote.Channel.
func (c *Channel) InsertMessage(ctx context.Context, conversationID, senderID, content string) (chat.Message, error) {
	defer observe("insert", time.Now())
	id := ulid.Make().String()
	ts, err := insertScript.Run(ctx, c.client,
		[]string{conversationLastTSKey(conversationID), conversationMessagesKey(conversationID), messageKey(id)},
		time.Now().UnixMilli(), id, conversationID, senderID, content,
	).Int64()
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	name, err := c.client.HGet(ctx, conversationParticipantsKey(conversationID), senderID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("resolve sender name", zap.String("sender_id", senderID), zap.Error(err))
	}
	m := chat.Message{
		ID:             id,
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     name,
		Content:        content,
		CreatedAt:      chat.FromMillis(ts),
		State:          chat.Confirmed,
	}
	c.publish(ctx, messageEventsChannel(conversationID), insertPayload(m))
	return m, nil
}

// UpdateMessage implements remote.Channel.
func (c *Channel) UpdateMessage(ctx context.Context, id string, patch chat.Patch) error {
	defer observe("update", time.Now())
	hasContent, content, read := "0", "", ""
	if patch.Content != nil {
		hasContent, content = "1", *patch.Content
	}
	if patch.IsRead != nil {
		read = "0"
		if *patch.IsRead {
			read = "1"
		}
	}
	n, err := updateScript.Run(ctx, c.client, []string{messageKey(id)}, hasContent, content, read).Int()
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update %s: %w", id, chat.ErrNotFound)
	}
	fields, err := c.client.HGetAll(ctx, messageKey(id)).Result()
	if err != nil {
		return fmt.Errorf("reload message: %w", err)
	}
	m, err := decodeMessage(fields)
	if err != nil {
		return fmt.Errorf("reload message: %w", err)
	}
	c.publish(ctx, messageEventsChannel(m.ConversationID), payload{
		Kind:           chat.EventUpdate,
		ID:             id,
		ConversationID: m.ConversationID,
		Content:        &m.Content,
		IsRead:         &m.IsRead,
	})
	return nil
}

// DeleteMessage implements remote.Channel. Deleting a missing message succeeds.
func (c *Channel) DeleteMessage(ctx context.Context, id string) error {
	defer observe("delete", time.Now())
	convID, err := c.client.HGet(ctx, messageKey(id), "conversation_id").Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, messageKey(id))
	pipe.ZRem(ctx, conversationMessagesKey(convID), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	c.publish(ctx, messageEventsChannel(convID), payload{Kind: chat.EventDelete, ID: id, ConversationID: convID})
	return nil
}

// PublishTyping implements remote.Channel.
func (c *Channel) PublishTyping(ctx context.Context, rec chat.TypingRecord) error {
	defer observe("publish_typing", time.Now())
	flag := "0"
	if rec.IsTyping {
		flag = "1"
	}
	applied, err := typingScript.Run(ctx, c.client, []string{conversationTypingKey(rec.ConversationID)},
		rec.UserID, chat.Millis(rec.UpdatedAt), flag).Int()
	if err != nil {
		return fmt.Errorf("publish typing: %w", err)
	}
	if applied == 1 {
		c.publish(ctx, typingEventsChannel(rec.ConversationID), typingPayload(rec))
	}
	return nil
}

// FetchTyping implements remote.Channel.
func (c *Channel) FetchTyping(ctx context.Context, conversationID string) ([]chat.TypingRecord, error) {
	all, err := c.client.HGetAll(ctx, conversationTypingKey(conversationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch typing: %w", err)
	}
	out := make([]chat.TypingRecord, 0, len(all))
	for user, v := range all {
		tsPart, flag, ok := strings.Cut(v, ":")
		ts, err := strconv.ParseInt(tsPart, 10, 64)
		if !ok || err != nil {
			c.logger.Warn("skip corrupt typing record", zap.String("user_id", user), zap.String("value", v))
			continue
		}
		out = append(out, chat.TypingRecord{
			ConversationID: conversationID,
			UserID:         user,
			IsTyping:       flag == "1",
			UpdatedAt:      chat.FromMillis(ts),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// ListConversations implements remote.Channel.
func (c *Channel) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	ids, err := c.client.SMembers(ctx, userConversationsKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]chat.Conversation, 0, len(ids))
	for _, id := range ids {
		conv := chat.Conversation{ID: id}
		conv.Name, err = c.client.HGet(ctx, conversationMetaKey(id), "name").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("conversation %s: %w", id, err)
		}
		members, err := c.client.HGetAll(ctx, conversationParticipantsKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("conversation %s participants: %w", id, err)
		}
		for uid, name := range members {
			conv.Participants = append(conv.Participants, chat.Participant{UserID: uid, Username: name})
		}
		sort.Slice(conv.Participants, func(i, j int) bool { return conv.Participants[i].UserID < conv.Participants[j].UserID })

		last, err := c.FetchPage(ctx, id, nil, 1)
		if err != nil {
			return nil, err
		}
		if len(last) == 1 {
			conv.LastMessage = last[0].Content
			conv.LastAt = last[0].CreatedAt
		}
		out = append(out, conv)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastAt.After(out[j].LastAt) })
	return out, nil
}

// EnsureConversation implements remote.Directory.
func (c *Channel) EnsureConversation(ctx context.Context, conv chat.Conversation) error {
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, conversationMetaKey(conv.ID), "name", conv.Name)
	for _, p := range conv.Participants {
		pipe.HSet(ctx, conversationParticipantsKey(conv.ID), p.UserID, p.Username)
		pipe.SAdd(ctx, userConversationsKey(p.UserID), conv.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ensure conversation: %w", err)
	}
	return nil
}

// publish is best-effort: a lost push is repaired by the client's periodic refresh.
func (c *Channel) publish(ctx context.Context, channel string, p payload) {
	data, err := json.Marshal(p)
	if err != nil {
		c.logger.Error("encode event", zap.Error(err))
		return
	}
	if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
		c.logger.Warn("publish event", zap.String("channel", channel), zap.Error(err))
	}
}
