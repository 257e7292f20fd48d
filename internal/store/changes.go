package store

// ChangesSince returns change log entries with seq > after, oldest first.
func (db *DB) ChangesSince(after int64, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.Query(`
		SELECT seq, conversation_id, kind, row_id, created_at
		FROM changes WHERE seq > ?
		ORDER BY seq LIMIT ?`, after, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Change
	for rows.Next() {
		var c Change
		if err := rows.Scan(&c.Seq, &c.ConversationID, &c.Kind, &c.RowID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LatestChangeSeq returns the newest change sequence number, 0 when empty.
func (db *DB) LatestChangeSeq() (int64, error) {
	var seq int64
	err := db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM changes`).Scan(&seq)
	return seq, err
}

// PruneChanges deletes change entries older than olderThanMs and returns
// how many were removed.
func (db *DB) PruneChanges(olderThanMs int64) (int64, error) {
	res, err := db.Exec(`DELETE FROM changes WHERE created_at < ?`, olderThanMs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
