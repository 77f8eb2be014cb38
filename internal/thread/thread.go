// Package thread holds the in-memory ordered message sequence for one open
// conversation and reconciles locally-optimistic, server-confirmed, and
// remote-origin messages into a single consistent list.
package thread

import (
	"time"

	"github.com/google/uuid"
	"github.com/quillchat/quill/internal/model"
)

// Outcome classifies what ReconcileIncoming did with a message.
type Outcome int

const (
	// OutcomeDuplicate means the id was already present; nothing changed.
	OutcomeDuplicate Outcome = iota
	// OutcomeSuperseded means a pending entry was replaced in place.
	OutcomeSuperseded
	// OutcomeAppended means the message was new and landed at the tail.
	OutcomeAppended
)

// Draft is the local input to an optimistic send.
type Draft struct {
	SenderID   string
	ReceiverID string
	GroupID    string
	Text       string
	Media      *model.Media
	ReplyToID  string
}

// Thread is the authoritative sequence of messages for one conversation.
// It is not safe for concurrent use; the engine serializes access.
type Thread struct {
	key  string
	msgs []model.Message
}

// New creates an empty thread for the given conversation key.
func New(key string) *Thread {
	return &Thread{key: key}
}

// Key returns the conversation key this thread belongs to.
func (t *Thread) Key() string {
	return t.key
}

// Len returns the number of messages in the sequence.
func (t *Thread) Len() int {
	return len(t.msgs)
}

// Messages returns a copy of the sequence in display order.
func (t *Thread) Messages() []model.Message {
	out := make([]model.Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// AppendPending constructs a pending message from the draft and appends it
// at the tail. Optimistic sends are the newest user action, so no ordering
// check against server time is made. The returned message carries a fresh
// pending id and a correlation id for the send call to pass through.
func (t *Thread) AppendPending(d Draft, now time.Time) model.Message {
	m := model.Message{
		ID:            NewPendingID(now),
		CorrelationID: uuid.NewString(),
		SenderID:      d.SenderID,
		ReceiverID:    d.ReceiverID,
		GroupID:       d.GroupID,
		Text:          d.Text,
		Media:         d.Media,
		ReplyToID:     d.ReplyToID,
		CreatedAt:     now,
		Status:        model.StatusPending,
	}
	t.msgs = append(t.msgs, m)
	return m
}

// ReconcileIncoming merges a confirmed or remote-origin message into the
// sequence:
//
//  1. An exact id already present is a duplicate delivery; no-op.
//  2. A pending entry with a matching fingerprint is replaced in place,
//     keeping its original slot rather than moving to the tail.
//  3. Otherwise the message appends at the tail in arrival order.
//
// Safe under any interleaving of sends, confirms, and push deliveries.
func (t *Thread) ReconcileIncoming(in model.Message) Outcome {
	for i := range t.msgs {
		if t.msgs[i].ID == in.ID {
			return OutcomeDuplicate
		}
	}

	in.Status = model.StatusConfirmed
	if i := findPendingMatch(t.msgs, &in); i >= 0 {
		t.msgs[i] = in
		return OutcomeSuperseded
	}

	t.msgs = append(t.msgs, in)
	return OutcomeAppended
}

// RemoveByID removes the entry with the given id. Missing ids are a no-op,
// so duplicate delete events are harmless.
func (t *Thread) RemoveByID(id string) bool {
	for i := range t.msgs {
		if t.msgs[i].ID == id {
			t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether the sequence holds the given id.
func (t *Thread) Contains(id string) bool {
	for i := range t.msgs {
		if t.msgs[i].ID == id {
			return true
		}
	}
	return false
}

// Clear empties the sequence ("clear chat").
func (t *Thread) Clear() {
	t.msgs = nil
}

// ReapStale removes pending entries created before the cutoff and returns
// their ids. The timestamp embedded in the pending id is authoritative;
// ids that fail to parse fall back to CreatedAt. Confirmed entries are
// never touched regardless of age.
func (t *Thread) ReapStale(cutoff time.Time) []string {
	var removed []string
	kept := t.msgs[:0]
	for _, m := range t.msgs {
		if m.Status == model.StatusPending && pendingAgeBefore(m, cutoff) {
			removed = append(removed, m.ID)
			continue
		}
		kept = append(kept, m)
	}
	t.msgs = kept
	return removed
}

func pendingAgeBefore(m model.Message, cutoff time.Time) bool {
	if ts, ok := PendingIDTime(m.ID); ok {
		return ts.Before(cutoff)
	}
	return m.CreatedAt.Before(cutoff)
}
