package unread

import (
	"context"
	"errors"
	"testing"
)

func TestInboundIncrementsOtherConversations(t *testing.T) {
	c := NewCounter()

	if !c.OnInbound("carol", "carol", "me", "bob") {
		t.Error("message for unfocused conversation should increment")
	}
	if got := c.Get("carol"); got != 1 {
		t.Errorf("carol = %d, want 1", got)
	}
}

func TestInboundNeverIncrementsForSelfOrOpen(t *testing.T) {
	c := NewCounter()

	// Own message echoed back.
	if c.OnInbound("bob", "me", "me", "carol") {
		t.Error("own message must not increment")
	}
	// Message for the open conversation.
	if c.OnInbound("bob", "bob", "me", "bob") {
		t.Error("open conversation must not increment")
	}
	if got := c.Get("bob"); got != 0 {
		t.Errorf("bob = %d, want 0", got)
	}
}

func TestOpenResetsAndMarksRead(t *testing.T) {
	c := NewCounter()
	for i := 0; i < 3; i++ {
		c.OnInbound("bob", "bob", "me", "")
	}

	marked := false
	err := c.Open(context.Background(), "bob", func(context.Context) error {
		marked = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !marked {
		t.Error("mark-as-read was not invoked")
	}
	if got := c.Get("bob"); got != 0 {
		t.Errorf("bob = %d after open, want 0", got)
	}
}

// Rollback property: a failed mark-as-read restores the exact prior value.
func TestOpenRollsBackOnMarkReadFailure(t *testing.T) {
	c := NewCounter()
	for i := 0; i < 5; i++ {
		c.OnInbound("bob", "bob", "me", "")
	}

	markErr := errors.New("backend down")
	err := c.Open(context.Background(), "bob", func(context.Context) error { return markErr })
	if !errors.Is(err, markErr) {
		t.Fatalf("err = %v, want wrapped backend error", err)
	}
	if got := c.Get("bob"); got != 5 {
		t.Errorf("bob = %d after rollback, want 5", got)
	}
}

func TestOpenIdempotentOnZeroCounter(t *testing.T) {
	c := NewCounter()

	calls := 0
	mark := func(context.Context) error { calls++; return nil }
	if err := c.Open(context.Background(), "bob", mark); err != nil {
		t.Fatal(err)
	}
	if err := c.Open(context.Background(), "bob", mark); err != nil {
		t.Fatal(err)
	}
	if got := c.Get("bob"); got != 0 {
		t.Errorf("bob = %d, want 0", got)
	}
	if calls != 2 {
		t.Errorf("mark calls = %d, want 2 (redundant but harmless)", calls)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	c := NewCounter()
	c.OnInbound("bob", "bob", "me", "")

	snap := c.Snapshot()
	snap["bob"] = 99
	if got := c.Get("bob"); got != 1 {
		t.Errorf("bob = %d, want 1 (snapshot must not alias)", got)
	}
}

func TestRestoreIgnoresNonPositive(t *testing.T) {
	c := NewCounter()
	c.Restore("bob", 4)
	c.Restore("carol", 0)
	c.Restore("dave", -2)

	if got := c.Get("bob"); got != 4 {
		t.Errorf("bob = %d, want 4", got)
	}
	if len(c.Snapshot()) != 1 {
		t.Errorf("snapshot = %v, want only bob", c.Snapshot())
	}
}
