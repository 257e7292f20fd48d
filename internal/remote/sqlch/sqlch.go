// Package sqlch implements remote.Channel over a SQLite database shared by
// every client on the host. Pushes are derived from the change log the schema
// triggers maintain, so writes from other processes are observed too.
package sqlch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/matheus3301/convo/internal/bus"
	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/metrics"
	"github.com/matheus3301/convo/internal/remote"
	"github.com/matheus3301/convo/internal/store"
)

const backend = "sqlite"

// Options tunes the change log tailer.
type Options struct {
	// PollInterval is how often the change log is read. Default 250ms.
	PollInterval time.Duration
	// Retention is how long change log entries are kept. Default 1h.
	Retention time.Duration
}

func (o *Options) defaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 250 * time.Millisecond
	}
	if o.Retention <= 0 {
		o.Retention = time.Hour
	}
}

// Channel is a remote.Channel backed by store.DB.
type Channel struct {
	db     *store.DB
	owned  bool
	bus    *bus.Bus
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}

	// Tailer state, owned by the tail goroutine.
	last int64
	down bool
}

var (
	_ remote.Channel   = (*Channel)(nil)
	_ remote.Directory = (*Channel)(nil)
)

// New wraps an open, migrated database. The caller keeps ownership of db.
// A nil bus gets a private one.
func New(db *store.DB, b *bus.Bus, opts Options, logger *zap.Logger) *Channel {
	opts.defaults()
	if b == nil {
		b = bus.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{db: db, bus: b, opts: opts, logger: logger.With(zap.String("backend", backend))}
}

// Open opens and migrates the database at path and starts the tailer.
// Close releases the database.
func Open(path string, b *bus.Bus, opts Options, logger *zap.Logger) (*Channel, error) {
	db, res, err := store.OpenMigrated(path)
	if err != nil {
		return nil, err
	}
	c := New(db, b, opts, logger)
	c.logger.Info("database ready",
		zap.String("path", path),
		zap.Uint("schema", res.Version),
		zap.Bool("migrated", res.Changed),
	)
	c.owned = true
	if err := c.Start(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Start begins tailing the change log from its current end.
func (c *Channel) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	last, err := c.db.LatestChangeSeq()
	if err != nil {
		return fmt.Errorf("read change log: %w", err)
	}
	c.last = last
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.started = true
	go c.tail(ctx)
	c.logger.Debug("change log tailer started", zap.Int64("seq", last))
	return nil
}

// Close stops the tailer and, when the channel opened it, the database.
func (c *Channel) Close() error {
	c.mu.Lock()
	started := c.started
	c.started = false
	c.mu.Unlock()
	if started {
		c.cancel()
		<-c.done
	}
	if c.owned {
		return c.db.Close()
	}
	return nil
}

// DB exposes the underlying store.
func (c *Channel) DB() *store.DB { return c.db }

func observe(op string, start time.Time) {
	metrics.BackendLatency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

// FetchPage implements remote.Channel.
func (c *Channel) FetchPage(ctx context.Context, conversationID string, before *time.Time, limit int) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer observe("fetch_page", time.Now())
	var beforeMs int64
	if before != nil {
		beforeMs = chat.Millis(*before)
	}
	rows, err := c.db.ListMessages(conversationID, beforeMs, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]chat.Message, len(rows))
	for i, r := range rows {
		out[i] = toChat(r)
	}
	return out, nil
}

// InsertMessage implements remote.Channel.
func (c *Channel) InsertMessage(ctx context.Context, conversationID, senderID, content string) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	defer observe("insert", time.Now())
	m, err := c.db.InsertMessage(&store.Message{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      time.Now().UnixMilli(),
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return toChat(*m), nil
}

// UpdateMessage implements remote.Channel.
func (c *Channel) UpdateMessage(ctx context.Context, id string, patch chat.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer observe("update", time.Now())
	m, err := c.db.UpdateMessage(id, patch.Content, patch.IsRead)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if m == nil {
		return fmt.Errorf("update %s: %w", id, chat.ErrNotFound)
	}
	return nil
}

// DeleteMessage implements remote.Channel. Deleting a missing message succeeds.
func (c *Channel) DeleteMessage(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer observe("delete", time.Now())
	if _, err := c.db.DeleteMessage(id); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// PublishTyping implements remote.Channel.
func (c *Channel) PublishTyping(ctx context.Context, rec chat.TypingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer observe("publish_typing", time.Now())
	_, err := c.db.UpsertTyping(&store.TypingStatus{
		ConversationID: rec.ConversationID,
		UserID:         rec.UserID,
		IsTyping:       rec.IsTyping,
		UpdatedAt:      chat.Millis(rec.UpdatedAt),
	})
	if err != nil {
		return fmt.Errorf("upsert typing: %w", err)
	}
	return nil
}

// FetchTyping implements remote.Channel.
func (c *Channel) FetchTyping(ctx context.Context, conversationID string) ([]chat.TypingRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := c.db.ListTyping(conversationID)
	if err != nil {
		return nil, fmt.Errorf("list typing: %w", err)
	}
	out := make([]chat.TypingRecord, len(rows))
	for i, r := range rows {
		out[i] = toTyping(r)
	}
	return out, nil
}

// ListConversations implements remote.Channel.
func (c *Channel) ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	convs, err := c.db.ListConversations(userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]chat.Conversation, 0, len(convs))
	for _, cv := range convs {
		ps, err := c.db.Participants(cv.ID)
		if err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}
		conv := chat.Conversation{
			ID:          cv.ID,
			Name:        cv.Name,
			LastMessage: cv.LastMessage,
			LastAt:      chat.FromMillis(cv.LastMessageAt),
		}
		for _, p := range ps {
			conv.Participants = append(conv.Participants, chat.Participant{UserID: p.UserID, Username: p.Username})
		}
		out = append(out, conv)
	}
	return out, nil
}

// EnsureConversation implements remote.Directory.
func (c *Channel) EnsureConversation(ctx context.Context, conv chat.Conversation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.db.CreateConversation(&store.Conversation{ID: conv.ID, Name: conv.Name}); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	for _, p := range conv.Participants {
		if err := c.db.AddParticipant(&store.Participant{ConversationID: conv.ID, UserID: p.UserID, Username: p.Username}); err != nil {
			return fmt.Errorf("add participant %s: %w", p.UserID, err)
		}
	}
	return nil
}

func toChat(m store.Message) chat.Message {
	return chat.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		Content:        m.Content,
		CreatedAt:      chat.FromMillis(m.CreatedAt),
		IsRead:         m.IsRead,
		Edited:         m.Edited,
		State:          chat.Confirmed,
	}
}

func toTyping(t store.TypingStatus) chat.TypingRecord {
	return chat.TypingRecord{
		ConversationID: t.ConversationID,
		UserID:         t.UserID,
		IsTyping:       t.IsTyping,
		UpdatedAt:      chat.FromMillis(t.UpdatedAt),
	}
}
