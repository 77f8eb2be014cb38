package store

import "time"

// UpsertMessage caches a confirmed message (idempotent on conversation_key
// + msg_id).
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (conversation_key, msg_id, sender_id, receiver_id, group_id, body,
			media_url, media_type, media_filename, media_size, reply_to_id, created_at, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_key, msg_id) DO UPDATE SET
			body = excluded.body,
			media_url = excluded.media_url,
			media_type = excluded.media_type,
			media_filename = excluded.media_filename,
			media_size = excluded.media_size`,
		m.ConversationKey, m.MsgID, m.SenderID, m.ReceiverID, m.GroupID, m.Body,
		m.MediaURL, m.MediaType, m.MediaFilename, m.MediaSize, m.ReplyToID, m.CreatedAt, now)
	return err
}

// ListMessages returns cached messages for a conversation using keyset
// pagination by creation time, oldest first within the page.
func (db *DB) ListMessages(key string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, conversation_key, msg_id, sender_id, receiver_id, group_id, body,
			media_url, media_type, media_filename, media_size, reply_to_id, created_at
		FROM (
			SELECT * FROM messages
			WHERE conversation_key = ? AND created_at < ?
			ORDER BY created_at DESC
			LIMIT ?
		)
		ORDER BY created_at ASC`, key, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.RowID, &m.ConversationKey, &m.MsgID, &m.SenderID, &m.ReceiverID,
			&m.GroupID, &m.Body, &m.MediaURL, &m.MediaType, &m.MediaFilename, &m.MediaSize,
			&m.ReplyToID, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// DeleteMessage removes a cached message by its server id.
func (db *DB) DeleteMessage(msgID string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE msg_id = ?`, msgID)
	return err
}

// ClearConversation removes all cached messages for a conversation.
func (db *DB) ClearConversation(key string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE conversation_key = ?`, key)
	return err
}
