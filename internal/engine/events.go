package engine

import (
	"sort"
	"time"

	"github.com/quillchat/quill/internal/bus"
	"github.com/quillchat/quill/internal/model"
	"github.com/quillchat/quill/internal/store"
	"github.com/quillchat/quill/internal/thread"
	"go.uber.org/zap"
)

// ReceiveExternalEvent is the single entry point for push-channel events.
// Malformed events are dropped without mutating any state; everything else
// dispatches on kind. Unknown kinds are logged and ignored so a newer
// backend cannot wedge an older client.
func (e *Engine) ReceiveExternalEvent(evt model.Event) {
	switch evt.Kind {
	case model.EventMessage:
		e.handleMessage(evt.Message)
	case model.EventDelete:
		e.handleDelete(evt.MessageID)
	case model.EventPresence:
		e.handlePresence(evt.Online)
	case model.EventTyping:
		if evt.Typing != nil && evt.Typing.PeerID != "" {
			e.tracker.OnTyping(evt.Typing.PeerID, evt.Typing.Typing)
		}
	case model.EventMembership:
		e.handleMembership(evt.Membership)
	default:
		e.logger.Debug("dropping event of unknown kind", zap.String("kind", string(evt.Kind)))
	}
}

func validMessage(m *model.Message) bool {
	if m == nil || m.ID == "" || m.SenderID == "" {
		return false
	}
	return m.ReceiverID != "" || m.GroupID != ""
}

func (e *Engine) handleMessage(msg *model.Message) {
	if !validMessage(msg) {
		e.logger.Debug("dropping malformed message event")
		return
	}
	m := *msg
	key := m.ConversationKey(e.opts.SelfID)

	e.mu.Lock()
	th := e.ensureThreadLocked(key)
	outcome := th.ReconcileIncoming(m)
	if outcome != thread.OutcomeDuplicate {
		e.touchSummaryLocked(key, m.IsGroup(), &m, m.CreatedAt)
	}
	openKey := e.openKey
	e.mu.Unlock()

	if outcome == thread.OutcomeDuplicate {
		return
	}

	// Only a genuinely new inbound message bumps the badge. Supersession
	// is our own send coming back confirmed.
	if outcome == thread.OutcomeAppended {
		if e.counter.OnInbound(key, m.SenderID, e.opts.SelfID, openKey) {
			e.persistUnread(key)
			e.publish(bus.KindUnreadChanged, e.counter.Snapshot())
		}
	}

	if e.db != nil {
		if err := e.db.UpsertMessage(toCache(key, &m)); err != nil {
			e.logger.Warn("cache write failed", zap.String("msg_id", m.ID), zap.Error(err))
		}
		e.persistSummary(key)
	}
	e.publish(bus.KindThreadUpdated, bus.ThreadChange{ConversationKey: key, MessageID: m.ID, Reason: reasonFor(outcome)})
}

func reasonFor(o thread.Outcome) string {
	if o == thread.OutcomeSuperseded {
		return "confirmed"
	}
	return "appended"
}

// handleDelete locates the message across all conversations. Message ids
// are globally unique, so the first hit is the only hit.
func (e *Engine) handleDelete(id string) {
	if id == "" {
		e.logger.Debug("dropping malformed delete event")
		return
	}
	e.mu.Lock()
	var key string
	for k, th := range e.threads {
		if th.RemoveByID(id) {
			key = k
			break
		}
	}
	e.mu.Unlock()

	if e.db != nil {
		if err := e.db.DeleteMessage(id); err != nil {
			e.logger.Warn("cache delete failed", zap.String("msg_id", id), zap.Error(err))
		}
	}
	if key != "" {
		e.publish(bus.KindThreadUpdated, bus.ThreadChange{ConversationKey: key, MessageID: id, Reason: "removed"})
	}
}

func (e *Engine) handlePresence(online []string) {
	joined, left := e.tracker.ApplySnapshot(online)
	if len(joined) == 0 && len(left) == 0 {
		return
	}
	e.publish(bus.KindPresenceMoved, bus.PresenceDiff{Joined: joined, Left: left})
}

// handleMembership bumps the group's chat-list entry, or tears the group
// down entirely when we are the one who left.
func (e *Engine) handleMembership(m *model.MembershipChange) {
	if m == nil || m.GroupID == "" || m.UserID == "" {
		e.logger.Debug("dropping malformed membership event")
		return
	}

	if m.UserID == e.opts.SelfID && !m.Joined {
		e.mu.Lock()
		delete(e.threads, m.GroupID)
		delete(e.summaries, m.GroupID)
		for i, k := range e.order {
			if k == m.GroupID {
				e.order = append(e.order[:i], e.order[i+1:]...)
				break
			}
		}
		if e.openKey == m.GroupID {
			e.openKey = ""
		}
		e.mu.Unlock()

		e.counter.Drop(m.GroupID)
		if e.db != nil {
			if err := e.db.DeleteConversation(m.GroupID); err != nil {
				e.logger.Warn("cache delete failed", zap.String("conversation", m.GroupID), zap.Error(err))
			}
		}
		e.publish(bus.KindThreadUpdated, bus.ThreadChange{ConversationKey: m.GroupID, Reason: "left"})
		return
	}

	e.mu.Lock()
	e.touchSummaryLocked(m.GroupID, true, nil, time.Now())
	e.mu.Unlock()
	e.persistSummary(m.GroupID)
	e.publish(bus.KindThreadUpdated, bus.ThreadChange{ConversationKey: m.GroupID, Reason: "membership"})
}

// Messages returns a copy of the conversation's sequence, oldest first.
func (e *Engine) Messages(key string) []model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	th := e.threads[key]
	if th == nil {
		return nil
	}
	return th.Messages()
}

// Unread returns the badge count for one conversation.
func (e *Engine) Unread(key string) int {
	return e.counter.Get(key)
}

// UnreadCounts returns a copy of the whole badge map.
func (e *Engine) UnreadCounts() map[string]int {
	return e.counter.Snapshot()
}

// Summaries returns the chat list, most recent interaction first. The sort
// is stable over first-touch order so equal timestamps keep their relative
// positions across calls.
func (e *Engine) Summaries() []model.ConversationSummary {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.ConversationSummary, 0, len(e.order))
	for _, key := range e.order {
		if s := e.summaries[key]; s != nil {
			out = append(out, *s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastInteraction.After(out[j].LastInteraction)
	})
	return out
}

// Online returns the sorted set of user ids currently online.
func (e *Engine) Online() []string {
	return e.tracker.Online()
}

// IsOnline reports one user's presence.
func (e *Engine) IsOnline(userID string) bool {
	return e.tracker.IsOnline(userID)
}

// TypingPeers returns everyone whose typing indicator is still live.
func (e *Engine) TypingPeers() []string {
	return e.tracker.TypingPeers()
}

// IsTyping reports whether one peer's typing indicator should show.
func (e *Engine) IsTyping(userID string) bool {
	return e.tracker.IsTyping(userID)
}

// Search runs a full-text query over cached message history. key narrows
// the search to one conversation; empty searches everywhere.
func (e *Engine) Search(query, key string, limit int) ([]store.SearchResult, error) {
	if e.db == nil {
		return nil, nil
	}
	return e.db.SearchMessages(query, key, limit)
}

// OpenKey returns the focused conversation key, or "" when none is open.
func (e *Engine) OpenKey() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openKey
}
