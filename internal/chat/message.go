package chat

import (
	"strings"
	"time"
)

// State is the lifecycle state of a message held by a client.
type State string

const (
	Pending   State = "pending"
	Confirmed State = "confirmed"
	Failed    State = "failed"
)

// ProvisionalPrefix marks ids generated locally before the store confirms a send.
const ProvisionalPrefix = "tmp-"

// Message is one entry in a conversation.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	// SenderName is a rendering hint; it may be empty.
	SenderName string
	Content    string
	CreatedAt  time.Time
	IsRead     bool
	Edited     bool
	State      State
}

// IsProvisional reports whether the id was minted locally.
func (m Message) IsProvisional() bool {
	return strings.HasPrefix(m.ID, ProvisionalPrefix)
}

// Settled reports whether the record is owned by the store.
func (m Message) Settled() bool {
	return m.State == Confirmed
}

// Patch carries the mutable fields of a confirmed message. Nil fields are left unchanged.
type Patch struct {
	Content *string
	IsRead  *bool
}

// ContentPatch returns a patch that replaces the message body.
func ContentPatch(content string) Patch {
	return Patch{Content: &content}
}

// ReadPatch returns a patch that marks a message read.
func ReadPatch() Patch {
	read := true
	return Patch{IsRead: &read}
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Content == nil && p.IsRead == nil
}

// Apply returns m with the patch fields merged in.
func (p Patch) Apply(m Message) Message {
	if p.Content != nil && *p.Content != m.Content {
		m.Content = *p.Content
		m.Edited = true
	}
	if p.IsRead != nil {
		m.IsRead = *p.IsRead
	}
	return m
}

// Changes reports whether applying the patch would alter m.
func (p Patch) Changes(m Message) bool {
	if p.Content != nil && *p.Content != m.Content {
		return true
	}
	return p.IsRead != nil && *p.IsRead != m.IsRead
}

// TypingRecord is the last known typing state of one user in one conversation.
type TypingRecord struct {
	ConversationID string
	UserID         string
	IsTyping       bool
	UpdatedAt      time.Time
}

// Conversation is a summary row used by conversation lists.
type Conversation struct {
	ID           string
	Name         string
	Participants []Participant
	LastMessage  string
	LastAt       time.Time
}

// Participant is a member of a conversation.
type Participant struct {
	UserID   string
	Username string
}
