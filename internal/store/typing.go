package store

import (
	"database/sql"
	"errors"
)

// UpsertTyping records a typing state. An update older than the stored one
// is discarded; applied reports whether the row changed.
func (db *DB) UpsertTyping(t *TypingStatus) (applied bool, err error) {
	res, err := db.Exec(`
		INSERT INTO typing_status (conversation_id, user_id, is_typing, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(conversation_id, user_id) DO UPDATE SET
			is_typing = excluded.is_typing,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at >= typing_status.updated_at`,
		t.ConversationID, t.UserID, t.IsTyping, t.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetTyping returns one user's typing state, or nil if none was recorded.
func (db *DB) GetTyping(conversationID, userID string) (*TypingStatus, error) {
	var t TypingStatus
	err := db.QueryRow(`
		SELECT conversation_id, user_id, is_typing, updated_at
		FROM typing_status WHERE conversation_id = ? AND user_id = ?`, conversationID, userID).
		Scan(&t.ConversationID, &t.UserID, &t.IsTyping, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTyping returns every recorded typing state of a conversation.
func (db *DB) ListTyping(conversationID string) ([]TypingStatus, error) {
	rows, err := db.Query(`
		SELECT conversation_id, user_id, is_typing, updated_at
		FROM typing_status WHERE conversation_id = ?
		ORDER BY user_id`, conversationID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []TypingStatus
	for rows.Next() {
		var t TypingStatus
		if err := rows.Scan(&t.ConversationID, &t.UserID, &t.IsTyping, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
