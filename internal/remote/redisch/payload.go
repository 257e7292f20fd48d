package redisch

import (
	"encoding/json"
	"fmt"

	"github.com/matheus3301/convo/internal/chat"
)

// payload is the JSON document published on a conversation's pub/sub channels.
type payload struct {
	Kind           chat.EventKind `json:"kind"`
	ID             string         `json:"id,omitempty"`
	ConversationID string         `json:"conversation_id"`
	SenderID       string         `json:"sender_id,omitempty"`
	SenderName     string         `json:"sender_name,omitempty"`
	Content        *string        `json:"content,omitempty"`
	IsRead         *bool          `json:"is_read,omitempty"`
	Edited         bool           `json:"edited,omitempty"`
	CreatedAt      int64          `json:"created_at,omitempty"`
	UserID         string         `json:"user_id,omitempty"`
	IsTyping       bool           `json:"is_typing,omitempty"`
	UpdatedAt      int64          `json:"updated_at,omitempty"`
}

func insertPayload(m chat.Message) payload {
	content, read := m.Content, m.IsRead
	return payload{
		Kind:           chat.EventInsert,
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		Content:        &content,
		IsRead:         &read,
		Edited:         m.Edited,
		CreatedAt:      chat.Millis(m.CreatedAt),
	}
}

func typingPayload(r chat.TypingRecord) payload {
	return payload{
		Kind:           chat.EventTyping,
		ConversationID: r.ConversationID,
		UserID:         r.UserID,
		IsTyping:       r.IsTyping,
		UpdatedAt:      chat.Millis(r.UpdatedAt),
	}
}

func decodePayload(data string) (chat.Event, error) {
	var p payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return chat.Event{}, fmt.Errorf("%w: %v", chat.ErrMalformedEvent, err)
	}
	switch p.Kind {
	case chat.EventInsert:
		m := chat.Message{
			ID:             p.ID,
			ConversationID: p.ConversationID,
			SenderID:       p.SenderID,
			SenderName:     p.SenderName,
			CreatedAt:      chat.FromMillis(p.CreatedAt),
			Edited:         p.Edited,
			State:          chat.Confirmed,
		}
		if p.Content != nil {
			m.Content = *p.Content
		}
		if p.IsRead != nil {
			m.IsRead = *p.IsRead
		}
		return chat.InsertEvent(m), nil
	case chat.EventUpdate:
		return chat.UpdateEvent(p.ID, chat.Patch{Content: p.Content, IsRead: p.IsRead}), nil
	case chat.EventDelete:
		return chat.DeleteEvent(p.ID), nil
	case chat.EventTyping:
		return chat.TypingEvent(chat.TypingRecord{
			ConversationID: p.ConversationID,
			UserID:         p.UserID,
			IsTyping:       p.IsTyping,
			UpdatedAt:      chat.FromMillis(p.UpdatedAt),
		}), nil
	default:
		return chat.Event{}, fmt.Errorf("%w: unknown kind %q", chat.ErrMalformedEvent, p.Kind)
	}
}
