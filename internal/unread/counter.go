// Package unread tracks per-conversation unread badges with optimistic
// reset and rollback against the backend mark-as-read call.
package unread

import (
	"context"
	"fmt"
	"sync"
)

// Counter maps conversation keys to non-negative unread counts. It is
// process-wide state: any inbound-message handler may touch it regardless
// of which conversation is open.
type Counter struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewCounter creates an empty counter map.
func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// OnInbound bumps the counter for the message's conversation unless the
// message was sent by self or belongs to the currently open conversation.
// Returns true when a counter changed.
func (c *Counter) OnInbound(key, senderID, selfID, openKey string) bool {
	if senderID == selfID || key == openKey {
		return false
	}
	c.mu.Lock()
	c.counts[key]++
	c.mu.Unlock()
	return true
}

// Open resets the counter for key to zero optimistically, then runs the
// mark-as-read call. On failure the previous value is restored exactly and
// the error returned; the reset sticks on success. Opening an already-zero
// conversation is harmless as long as mark is idempotent at the backend.
func (c *Counter) Open(ctx context.Context, key string, mark func(context.Context) error) error {
	c.mu.Lock()
	prev := c.counts[key]
	delete(c.counts, key)
	c.mu.Unlock()

	if mark == nil {
		return nil
	}
	if err := mark(ctx); err != nil {
		c.mu.Lock()
		if prev > 0 {
			c.counts[key] = prev
		}
		c.mu.Unlock()
		return fmt.Errorf("mark read %s: %w", key, err)
	}
	return nil
}

// Drop removes the counter for key without a backend call. Used when a
// conversation disappears, e.g. self leaving a group.
func (c *Counter) Drop(key string) {
	c.mu.Lock()
	delete(c.counts, key)
	c.mu.Unlock()
}

// Get returns the counter for key.
func (c *Counter) Get(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

// Snapshot returns a copy of all non-zero counters.
func (c *Counter) Snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Restore sets the counter for key to an absolute value, used when loading
// cached state at startup. Negative values are ignored.
func (c *Counter) Restore(key string, value int) {
	if value <= 0 {
		return
	}
	c.mu.Lock()
	c.counts[key] = value
	c.mu.Unlock()
}
