package store

// Conversation is a direct-message thread between participants.
type Conversation struct {
	ID        string
	Name      string
	CreatedAt int64
	// Populated by ListConversations only.
	LastMessage   string
	LastMessageAt int64
}

// Participant is a member of a conversation.
type Participant struct {
	ConversationID string
	UserID         string
	Username       string
}

// Message is a stored message row. Timestamps are unix milliseconds.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderName     string
	Content        string
	IsRead         bool
	Edited         bool
	CreatedAt      int64
}

// TypingStatus is the last published typing state of one user.
type TypingStatus struct {
	ConversationID string
	UserID         string
	IsTyping       bool
	UpdatedAt      int64
}

// Change is one entry of the change log written by the schema triggers.
type Change struct {
	Seq            int64
	ConversationID string
	Kind           string // insert, update, delete, typing
	RowID          string
	CreatedAt      int64
}

// Change kinds.
const (
	ChangeInsert = "insert"
	ChangeUpdate = "update"
	ChangeDelete = "delete"
	ChangeTyping = "typing"
)
