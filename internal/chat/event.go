package chat

import (
	"fmt"
	"time"
)

// EventKind tags a pushed event.
type EventKind string

const (
	EventInsert EventKind = "insert"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
	EventTyping EventKind = "typing"
	EventLink   EventKind = "link"
)

// LinkState reports the health of a push subscription.
type LinkState string

const (
	LinkUp   LinkState = "up"
	LinkDown LinkState = "down"
)

// Event is one pushed notification. Exactly the fields for Kind are set.
type Event struct {
	Kind EventKind

	// Insert carries the full row.
	Message Message
	// Update and Delete target ID; Update carries the changed fields in Patch.
	ID    string
	Patch Patch

	Typing TypingRecord

	Link LinkState
	Err  error
}

// InsertEvent builds an insert notification.
func InsertEvent(m Message) Event { return Event{Kind: EventInsert, Message: m} }

// UpdateEvent builds an update notification.
func UpdateEvent(id string, p Patch) Event { return Event{Kind: EventUpdate, ID: id, Patch: p} }

// DeleteEvent builds a delete notification.
func DeleteEvent(id string) Event { return Event{Kind: EventDelete, ID: id} }

// TypingEvent builds a typing notification.
func TypingEvent(r TypingRecord) Event { return Event{Kind: EventTyping, Typing: r} }

// LinkEvent builds a subscription status notification.
func LinkEvent(s LinkState, err error) Event { return Event{Kind: EventLink, Link: s, Err: err} }

// Validate rejects events whose payload cannot be applied.
func (e Event) Validate() error {
	switch e.Kind {
	case EventInsert:
		m := e.Message
		if m.ID == "" || m.SenderID == "" || m.ConversationID == "" {
			return fmt.Errorf("%w: insert missing id, sender or conversation", ErrMalformedEvent)
		}
		if m.CreatedAt.IsZero() {
			return fmt.Errorf("%w: insert %s missing created_at", ErrMalformedEvent, m.ID)
		}
	case EventUpdate:
		if e.ID == "" {
			return fmt.Errorf("%w: update missing id", ErrMalformedEvent)
		}
		if e.Patch.Empty() {
			return fmt.Errorf("%w: update %s carries no fields", ErrMalformedEvent, e.ID)
		}
	case EventDelete:
		if e.ID == "" {
			return fmt.Errorf("%w: delete missing id", ErrMalformedEvent)
		}
	case EventTyping:
		if e.Typing.UserID == "" || e.Typing.UpdatedAt.IsZero() {
			return fmt.Errorf("%w: typing missing user or timestamp", ErrMalformedEvent)
		}
	case EventLink:
		if e.Link != LinkUp && e.Link != LinkDown {
			return fmt.Errorf("%w: unknown link state %q", ErrMalformedEvent, e.Link)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedEvent, e.Kind)
	}
	return nil
}

// Millis converts t to unix milliseconds, the wire and storage resolution.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis converts unix milliseconds to a UTC time. Zero stays zero.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
