package store

import (
	"database/sql"
	"errors"
	"time"
)

// CreateConversation inserts a conversation. Existing rows keep their
// creation time but take the new name.
func (db *DB) CreateConversation(c *Conversation) error {
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixMilli()
	}
	_, err := db.Exec(`
		INSERT INTO conversations (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		c.ID, c.Name, c.CreatedAt)
	return err
}

// AddParticipant adds a user to a conversation (idempotent, updates username).
func (db *DB) AddParticipant(p *Participant) error {
	_, err := db.Exec(`
		INSERT INTO participants (conversation_id, user_id, username)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id, user_id) DO UPDATE SET username = excluded.username`,
		p.ConversationID, p.UserID, p.Username)
	return err
}

// GetConversation returns a conversation by id, or nil if not found.
func (db *DB) GetConversation(id string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`SELECT id, name, created_at FROM conversations WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConversations returns the conversations a user participates in,
// most recently active first, with a preview of the last message.
func (db *DB) ListConversations(userID string) ([]Conversation, error) {
	rows, err := db.Query(`
		SELECT c.id, c.name, c.created_at,
			COALESCE((SELECT m.content FROM messages m WHERE m.conversation_id = c.id ORDER BY m.created_at DESC LIMIT 1), ''),
			COALESCE((SELECT MAX(m.created_at) FROM messages m WHERE m.conversation_id = c.id), 0) AS last_at
		FROM conversations c
		JOIN participants p ON p.conversation_id = c.id
		WHERE p.user_id = ?
		ORDER BY last_at DESC, c.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.LastMessage, &c.LastMessageAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// Participants returns the members of a conversation ordered by user id.
func (db *DB) Participants(conversationID string) ([]Participant, error) {
	rows, err := db.Query(`
		SELECT conversation_id, user_id, username
		FROM participants
		WHERE conversation_id = ?
		ORDER BY user_id`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ps []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.Username); err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, rows.Err()
}
