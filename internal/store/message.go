package store

import (
	"database/sql"
	"errors"
)

const messageColumns = `
	m.id, m.conversation_id, m.sender_id, COALESCE(p.username, ''),
	m.content, m.is_read, m.edited, m.created_at`

const messageFrom = `
	FROM messages m
	LEFT JOIN participants p ON p.conversation_id = m.conversation_id AND p.user_id = m.sender_id`

func scanMessage(s interface{ Scan(...any) error }) (*Message, error) {
	var m Message
	if err := s.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName,
		&m.Content, &m.IsRead, &m.Edited, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertMessage stores a new message and returns the stored row.
//
// created_at is strictly increasing within a conversation: a message never
// receives a timestamp lower than or equal to the newest one already stored,
// so the (conversation_id, created_at) keyset cursor never skips rows.
func (db *DB) InsertMessage(m *Message) (*Message, error) {
	_, err := db.Exec(`
		INSERT INTO messages (id, conversation_id, sender_id, content, is_read, edited, created_at)
		VALUES (?, ?, ?, ?, ?, 0, MAX(?, COALESCE((SELECT MAX(created_at) + 1 FROM messages WHERE conversation_id = ?), 0)))`,
		m.ID, m.ConversationID, m.SenderID, m.Content, m.IsRead, m.CreatedAt, m.ConversationID)
	if err != nil {
		return nil, err
	}
	stored, err := db.GetMessage(m.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, errors.New("inserted message vanished")
	}
	return stored, nil
}

// GetMessage returns a message by id, or nil if not found.
func (db *DB) GetMessage(id string) (*Message, error) {
	m, err := scanMessage(db.QueryRow(`SELECT `+messageColumns+messageFrom+` WHERE m.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// ListMessages returns up to limit messages of a conversation created
// strictly before beforeMs, newest first. beforeMs <= 0 means no bound.
func (db *DB) ListMessages(conversationID string, beforeMs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + messageColumns + messageFrom + ` WHERE m.conversation_id = ?`
	args := []any{conversationID}
	if beforeMs > 0 {
		query += ` AND m.created_at < ?`
		args = append(args, beforeMs)
	}
	query += ` ORDER BY m.created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// UpdateMessage applies the non-nil fields and returns the updated row,
// or nil if the message does not exist. Changing the content marks the
// message edited.
func (db *DB) UpdateMessage(id string, content *string, isRead *bool) (*Message, error) {
	res, err := db.Exec(`
		UPDATE messages SET
			edited = CASE WHEN ?1 IS NOT NULL AND ?1 != content THEN 1 ELSE edited END,
			content = COALESCE(?1, content),
			is_read = COALESCE(?2, is_read)
		WHERE id = ?3`, content, isRead, id)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return db.GetMessage(id)
}

// DeleteMessage removes a message. It reports whether a row was deleted.
func (db *DB) DeleteMessage(id string) (bool, error) {
	res, err := db.Exec(`DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
