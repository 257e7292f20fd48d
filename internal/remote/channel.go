// Package remote defines the contract a conversation client needs from its backend.
package remote

import (
	"context"
	"time"

	"github.com/matheus3301/convo/internal/chat"
)

// Channel is the remote store and push channel for conversations.
type Channel interface {
	// FetchPage returns up to limit messages older than before (all when nil), newest first.
	FetchPage(ctx context.Context, conversationID string, before *time.Time, limit int) ([]chat.Message, error)
	// InsertMessage stores a new message and returns it with its store-assigned id and timestamp.
	InsertMessage(ctx context.Context, conversationID, senderID, content string) (chat.Message, error)
	UpdateMessage(ctx context.Context, id string, patch chat.Patch) error
	DeleteMessage(ctx context.Context, id string) error

	// Subscribe pushes insert, update and delete events for one conversation.
	Subscribe(ctx context.Context, conversationID string) (Subscription, error)

	PublishTyping(ctx context.Context, rec chat.TypingRecord) error
	// SubscribeTyping pushes typing events for one conversation.
	SubscribeTyping(ctx context.Context, conversationID string) (Subscription, error)
	// FetchTyping returns every typing record held for a conversation.
	FetchTyping(ctx context.Context, conversationID string) ([]chat.TypingRecord, error)

	// ListConversations returns the conversations userID takes part in, most recent first.
	ListConversations(ctx context.Context, userID string) ([]chat.Conversation, error)
	Close() error
}

// Subscription is a live push stream. Link events report drops and recoveries.
type Subscription interface {
	Events() <-chan chat.Event
	Close() error
}

// MarkRead marks each id read, stopping at the first error.
func MarkRead(ctx context.Context, ch Channel, ids []string) error {
	for _, id := range ids {
		if err := ch.UpdateMessage(ctx, id, chat.ReadPatch()); err != nil {
			return err
		}
	}
	return nil
}

// Directory is implemented by channels that can create conversations.
type Directory interface {
	// EnsureConversation creates the conversation if needed and upserts its participants.
	EnsureConversation(ctx context.Context, conv chat.Conversation) error
}
