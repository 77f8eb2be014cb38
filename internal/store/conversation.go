package store

import (
	"database/sql"
	"time"
)

// UpsertConversation inserts or updates a chat-list row. The last
// interaction timestamp is monotonic: an older value never overwrites a
// newer one, which keeps poll batches from reordering the list.
func (db *DB) UpsertConversation(c *Conversation) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (key, is_group, unread_count, last_interaction_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			is_group = excluded.is_group,
			unread_count = excluded.unread_count,
			last_interaction_at = MAX(conversations.last_interaction_at, excluded.last_interaction_at),
			last_message_preview = CASE
				WHEN excluded.last_interaction_at >= conversations.last_interaction_at THEN excluded.last_message_preview
				ELSE conversations.last_message_preview
			END,
			updated_at = excluded.updated_at`,
		c.Key, c.IsGroup, c.UnreadCount, c.LastInteractionAt, c.LastPreview, now)
	return err
}

// SetUnread updates only the cached unread count for a conversation.
func (db *DB) SetUnread(key string, count int) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`UPDATE conversations SET unread_count = ?, updated_at = ? WHERE key = ?`, count, now, key)
	return err
}

// ListConversations returns chat-list rows sorted by last interaction
// descending.
func (db *DB) ListConversations(limit int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT key, is_group, unread_count, last_interaction_at, last_message_preview
		FROM conversations
		ORDER BY last_interaction_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.Key, &c.IsGroup, &c.UnreadCount, &c.LastInteractionAt, &c.LastPreview); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetConversation returns a single chat-list row, or nil if unknown.
func (db *DB) GetConversation(key string) (*Conversation, error) {
	var c Conversation
	err := db.QueryRow(`
		SELECT key, is_group, unread_count, last_interaction_at, last_message_preview
		FROM conversations WHERE key = ?`, key).
		Scan(&c.Key, &c.IsGroup, &c.UnreadCount, &c.LastInteractionAt, &c.LastPreview)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteConversation drops a chat-list row and its cached messages. Used
// when self leaves a group.
func (db *DB) DeleteConversation(key string) error {
	if _, err := db.Exec(`DELETE FROM messages WHERE conversation_key = ?`, key); err != nil {
		return err
	}
	_, err := db.Exec(`DELETE FROM conversations WHERE key = ?`, key)
	return err
}
