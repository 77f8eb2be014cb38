package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", result.Version)
	}
}

func TestConversationUpsertAndList(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(&Conversation{Key: "alice", LastInteractionAt: 1000, LastPreview: "hi"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertConversation(&Conversation{Key: "g-1", IsGroup: true, LastInteractionAt: 2000, LastPreview: "yo"}); err != nil {
		t.Fatal(err)
	}

	convs, err := db.ListConversations(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].Key != "g-1" {
		t.Errorf("first key = %q, want g-1 (sorted by last interaction desc)", convs[0].Key)
	}
}

// An out-of-order poll batch must not move a conversation backwards in
// the list: last_interaction_at only ever grows.
func TestConversationTimestampMonotonic(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(&Conversation{Key: "alice", LastInteractionAt: 5000, LastPreview: "new"}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertConversation(&Conversation{Key: "alice", LastInteractionAt: 1000, LastPreview: "old"}); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetConversation("alice")
	if err != nil {
		t.Fatal(err)
	}
	if c.LastInteractionAt != 5000 {
		t.Errorf("last_interaction_at = %d, want 5000", c.LastInteractionAt)
	}
	if c.LastPreview != "new" {
		t.Errorf("preview = %q, want 'new' (older batch must not win)", c.LastPreview)
	}
}

func TestGetConversationMissing(t *testing.T) {
	db := testDB(t)

	c, err := db.GetConversation("nobody")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("got %v, want nil for missing conversation", c)
	}
}

func TestMessageUpsertIdempotent(t *testing.T) {
	db := testDB(t)

	m := &Message{ConversationKey: "alice", MsgID: "srv-1", SenderID: "alice", ReceiverID: "me", Body: "hello", CreatedAt: 1000}
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}
	m.Body = "hello edited"
	if err := db.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	msgs, err := db.ListMessages("alice", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1 (idempotent upsert)", len(msgs))
	}
	if msgs[0].Body != "hello edited" {
		t.Errorf("body = %q, want updated body", msgs[0].Body)
	}
}

func TestListMessagesOldestFirst(t *testing.T) {
	db := testDB(t)

	for i, body := range []string{"one", "two", "three"} {
		if err := db.UpsertMessage(&Message{
			ConversationKey: "alice", MsgID: "m" + body, SenderID: "alice",
			Body: body, CreatedAt: int64(1000 * (i + 1)),
		}); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := db.ListMessages("alice", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Body != "one" || msgs[2].Body != "three" {
		t.Errorf("order = [%s %s %s], want oldest first", msgs[0].Body, msgs[1].Body, msgs[2].Body)
	}
}

func TestDeleteMessage(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertMessage(&Message{ConversationKey: "alice", MsgID: "srv-1", SenderID: "alice", Body: "x", CreatedAt: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteMessage("srv-1"); err != nil {
		t.Fatal(err)
	}
	// Deleting again is a no-op.
	if err := db.DeleteMessage("srv-1"); err != nil {
		t.Fatal(err)
	}

	msgs, _ := db.ListMessages("alice", 0, 10)
	if len(msgs) != 0 {
		t.Errorf("got %d messages after delete, want 0", len(msgs))
	}
}

func TestSearchMessages(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertMessage(&Message{ConversationKey: "alice", MsgID: "m1", SenderID: "alice", Body: "hello world", CreatedAt: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(&Message{ConversationKey: "alice", MsgID: "m2", SenderID: "alice", Body: "goodbye world", CreatedAt: 2000}); err != nil {
		t.Fatal(err)
	}

	results, err := db.SearchMessages("hello", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Message.MsgID != "m1" {
		t.Errorf("msg_id = %q, want m1", results[0].Message.MsgID)
	}
}

func TestDeleteConversationDropsMessages(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(&Conversation{Key: "g-1", IsGroup: true, LastInteractionAt: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(&Message{ConversationKey: "g-1", MsgID: "m1", SenderID: "alice", GroupID: "g-1", Body: "x", CreatedAt: 1000}); err != nil {
		t.Fatal(err)
	}

	if err := db.DeleteConversation("g-1"); err != nil {
		t.Fatal(err)
	}

	c, _ := db.GetConversation("g-1")
	if c != nil {
		t.Error("conversation row should be gone")
	}
	msgs, _ := db.ListMessages("g-1", 0, 10)
	if len(msgs) != 0 {
		t.Errorf("got %d messages, want 0", len(msgs))
	}
}

func TestSetUnread(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertConversation(&Conversation{Key: "alice", LastInteractionAt: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := db.SetUnread("alice", 7); err != nil {
		t.Fatal(err)
	}

	c, err := db.GetConversation("alice")
	if err != nil {
		t.Fatal(err)
	}
	if c.UnreadCount != 7 {
		t.Errorf("unread = %d, want 7", c.UnreadCount)
	}
}
