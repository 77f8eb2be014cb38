package store

// SearchMessages performs a full-text search over cached message bodies.
func (db *DB) SearchMessages(query string, conversationKey string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT m.id, m.conversation_key, m.msg_id, m.sender_id, m.receiver_id, m.group_id,
		       m.body, m.media_url, m.media_type, m.media_filename, m.media_size,
		       m.reply_to_id, m.created_at,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ?`

	args := []any{query}
	if conversationKey != "" {
		q += " AND m.conversation_key = ?"
		args = append(args, conversationKey)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(
			&r.Message.RowID, &r.Message.ConversationKey, &r.Message.MsgID,
			&r.Message.SenderID, &r.Message.ReceiverID, &r.Message.GroupID,
			&r.Message.Body, &r.Message.MediaURL, &r.Message.MediaType,
			&r.Message.MediaFilename, &r.Message.MediaSize,
			&r.Message.ReplyToID, &r.Message.CreatedAt, &r.Snippet,
		); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
