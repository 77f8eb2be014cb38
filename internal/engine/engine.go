// Package engine owns the reconciliation core: the arena of per-conversation
// message sequences, the unread counter map, and the presence tracker. All
// mutations flow through the operations here, serialized the way a UI event
// loop would serialize its handlers; frontends consume read-only views.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quillchat/quill/internal/backend"
	"github.com/quillchat/quill/internal/bus"
	"github.com/quillchat/quill/internal/model"
	"github.com/quillchat/quill/internal/presence"
	"github.com/quillchat/quill/internal/store"
	"github.com/quillchat/quill/internal/thread"
	"github.com/quillchat/quill/internal/unread"
	"go.uber.org/zap"
)

// Options carries the engine's tunables.
type Options struct {
	SelfID        string
	PollInterval  time.Duration
	PendingMaxAge time.Duration
}

// Engine is the single source of truth for chat state. The cache db is
// optional; a nil db disables persistence.
type Engine struct {
	opts    Options
	backend backend.Client
	db      *store.DB
	bus     *bus.Bus
	counter *unread.Counter
	tracker *presence.Tracker
	logger  *zap.Logger

	mu        sync.Mutex
	threads   map[string]*thread.Thread
	summaries map[string]*model.ConversationSummary
	order     []string // summary keys in first-touch order, for stable sorting
	openKey   string

	cancel context.CancelFunc
}

// New creates an engine. db may be nil (no local cache).
func New(opts Options, be backend.Client, db *store.DB, b *bus.Bus, counter *unread.Counter, tracker *presence.Tracker, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.PendingMaxAge <= 0 {
		opts.PendingMaxAge = 30 * time.Second
	}
	return &Engine{
		opts:      opts,
		backend:   be,
		db:        db,
		bus:       b,
		counter:   counter,
		tracker:   tracker,
		logger:    logger,
		threads:   make(map[string]*thread.Thread),
		summaries: make(map[string]*model.ConversationSummary),
	}
}

// Start subscribes to remote events on the bus and runs the poll fallback
// loop until Stop or context cancellation.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("remote.", 256)

	go func() {
		// Seed presence from the roster endpoint; the first push snapshot
		// takes over from there.
		if ids, err := e.backend.FetchPresenceBaseline(ctx); err == nil {
			e.tracker.SetBaseline(ids)
		} else {
			e.logger.Debug("presence baseline fetch failed", zap.Error(err))
		}
	}()

	go func() {
		defer unsub()
		ticker := time.NewTicker(e.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case evt := <-ch:
				if remote, ok := evt.Payload.(model.Event); ok {
					e.ReceiveExternalEvent(remote)
				}
			case <-ticker.C:
				e.pollOpenConversation(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine's background work.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
}

// LoadCache restores conversation summaries and unread counts from the
// local cache. Called once at startup, before any events flow.
func (e *Engine) LoadCache() error {
	if e.db == nil {
		return nil
	}
	convs, err := e.db.ListConversations(0)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, c := range convs {
		e.touchSummaryLocked(c.Key, c.IsGroup, nil, time.UnixMilli(c.LastInteractionAt))
		if s := e.summaries[c.Key]; s != nil {
			s.Preview = c.LastPreview
		}
		e.counter.Restore(c.Key, c.UnreadCount)
	}
	return nil
}

// Open marks the conversation as the focused one, resets its unread badge
// (with rollback if mark-as-read fails), and loads the baseline message
// list from cache and backend. The engine is left in a consistent, usable
// state even when the returned error is non-nil: a fetch failure opens the
// conversation with whatever the cache held, a mark-read failure restores
// the badge.
func (e *Engine) Open(ctx context.Context, key string, isGroup bool) error {
	e.mu.Lock()
	e.openKey = key
	e.ensureThreadLocked(key)
	e.touchSummaryLocked(key, isGroup, nil, time.Time{})
	e.mu.Unlock()

	e.loadCachedMessages(key)

	var fetchErr error
	msgs, err := e.backend.FetchMessages(ctx, key)
	if err != nil {
		fetchErr = &backend.FetchError{ConversationKey: key, Err: err}
		e.logger.Warn("baseline fetch failed", zap.String("conversation", key), zap.Error(err))
		e.publish(bus.KindFetchFailed, key)
	} else {
		e.mergeBatch(key, msgs)
	}

	ids := e.unreadCandidateIDs(key)
	markErr := e.counter.Open(ctx, key, func(ctx context.Context) error {
		if err := e.backend.MarkRead(ctx, key, ids); err != nil {
			return &backend.MarkReadError{ConversationKey: key, Err: err}
		}
		return nil
	})
	if markErr != nil {
		e.logger.Warn("mark read failed, badge restored", zap.String("conversation", key), zap.Error(markErr))
	}

	e.persistUnread(key)
	e.publish(bus.KindUnreadChanged, e.counter.Snapshot())
	e.publish(bus.KindThreadUpdated, bus.ThreadChange{ConversationKey: key, Reason: "opened"})

	return errors.Join(fetchErr, markErr)
}

// Close unfocuses the open conversation; inbound messages for it start
// counting as unread again.
func (e *Engine) Close() {
	e.mu.Lock()
	e.openKey = ""
	e.mu.Unlock()
}

// Send appends an optimistic pending message to the open conversation and
// dispatches the backend send asynchronously. The pending entry is visible
// immediately; a confirm arrives through the same reconcile path as push
// events, and a known send failure removes the entry and publishes
// message.send_failed instead of erroring out of band.
func (e *Engine) Send(ctx context.Context, content backend.Content) (model.Message, error) {
	e.mu.Lock()
	key := e.openKey
	if key == "" {
		e.mu.Unlock()
		return model.Message{}, errors.New("no open conversation")
	}
	th := e.ensureThreadLocked(key)
	s := e.summaries[key]
	draft := thread.Draft{
		SenderID:  e.opts.SelfID,
		Text:      content.Text,
		Media:     content.Media,
		ReplyToID: content.ReplyToID,
	}
	if s != nil && s.IsGroup {
		draft.GroupID = key
	} else {
		draft.ReceiverID = key
	}
	pending := th.AppendPending(draft, time.Now())
	e.touchSummaryLocked(key, draft.GroupID != "", &pending, pending.CreatedAt)
	e.mu.Unlock()

	e.publish(bus.KindThreadUpdated, bus.ThreadChange{ConversationKey: key, MessageID: pending.ID, Reason: "appended"})

	go e.dispatchSend(ctx, key, pending, content)
	return pending, nil
}

func (e *Engine) dispatchSend(ctx context.Context, key string, pending model.Message, content backend.Content) {
	content.CorrelationID = pending.CorrelationID
	confirmed, err := e.backend.SendMessage(ctx, key, content)
	if err != nil {
		sendErr := &backend.SendError{ConversationKey: key, Err: err}
		e.logger.Warn("send failed, pending entry removed", zap.String("conversation", key), zap.String("pending_id", pending.ID), zap.Error(err))

		e.mu.Lock()
		removed := false
		if th := e.threads[key]; th != nil {
			removed = th.RemoveByID(pending.ID)
		}
		e.mu.Unlock()

		if removed {
			e.publish(bus.KindThreadUpdated, bus.ThreadChange{ConversationKey: key, MessageID: pending.ID, Reason: "removed"})
		}
		e.publish(bus.KindSendFailed, bus.SendFailure{ConversationKey: key, PendingID: pending.ID, Err: sendErr})
		return
	}

	// The confirm may race the push-channel echo; reconcile handles both
	// orders. Carry our correlation id in case the backend drops it.
	if confirmed.CorrelationID == "" {
		confirmed.CorrelationID = pending.CorrelationID
	}
	e.ReceiveExternalEvent(model.Event{Kind: model.EventMessage, Message: confirmed})
}

// DeleteLocal removes a message by id from whichever conversation holds it
// and issues a best-effort backend delete. Unknown ids are a no-op.
func (e *Engine) DeleteLocal(ctx context.Context, id string) {
	e.mu.Lock()
	var key string
	for k, th := range e.threads {
		if th.RemoveByID(id) {
			key = k
			break
		}
	}
	e.mu.Unlock()

	if key != "" {
		e.publish(bus.KindThreadUpdated, bus.ThreadChange{ConversationKey: key, MessageID: id, Reason: "removed"})
	}
	if e.db != nil {
		if err := e.db.DeleteMessage(id); err != nil {
			e.logger.Warn("cache delete failed", zap.String("msg_id", id), zap.Error(err))
		}
	}
	if thread.IsPendingID(id) {
		return // never reached the server
	}
	go func() {
		if err := e.backend.DeleteMessage(ctx, id); err != nil {
			e.logger.Warn("backend delete failed", zap.String("msg_id", id), zap.Error(err))
		}
	}()
}

// ClearConversation empties a conversation's sequence and cached history.
func (e *Engine) ClearConversation(key string) {
	e.mu.Lock()
	if th := e.threads[key]; th != nil {
		th.Clear()
	}
	e.mu.Unlock()

	if e.db != nil {
		if err := e.db.ClearConversation(key); err != nil {
			e.logger.Warn("cache clear failed", zap.String("conversation", key), zap.Error(err))
		}
	}
	e.publish(bus.KindThreadUpdated, bus.ThreadChange{ConversationKey: key, Reason: "cleared"})
}

// ReapStale removes pending entries older than the cutoff from every
// conversation and returns how many were removed. The reaper calls this
// on its interval; it only catches silent failures — known send failures
// remove their pending entry immediately.
func (e *Engine) ReapStale(cutoff time.Time) int {
	e.mu.Lock()
	reaped := make(map[string][]string)
	for key, th := range e.threads {
		if ids := th.ReapStale(cutoff); len(ids) > 0 {
			reaped[key] = ids
		}
	}
	e.mu.Unlock()

	total := 0
	for key, ids := range reaped {
		for _, id := range ids {
			e.logger.Info("reaped stale pending message", zap.String("conversation", key), zap.String("msg_id", id))
			e.publish(bus.KindThreadUpdated, bus.ThreadChange{ConversationKey: key, MessageID: id, Reason: "reaped"})
		}
		total += len(ids)
	}
	return total
}

// pollOpenConversation is the poll-as-fallback path: refetch the open
// conversation and merge the result through the one reconcile algorithm,
// papering over any push events the channel dropped.
func (e *Engine) pollOpenConversation(ctx context.Context) {
	e.mu.Lock()
	key := e.openKey
	e.mu.Unlock()
	if key == "" {
		return
	}

	msgs, err := e.backend.FetchMessages(ctx, key)
	if err != nil {
		e.logger.Debug("poll fetch failed", zap.String("conversation", key), zap.Error(err))
		return
	}
	e.mergeBatch(key, msgs)
}

// mergeBatch treats a fetched list as a batch of reconcile calls.
func (e *Engine) mergeBatch(key string, msgs []model.Message) {
	changed := 0
	e.mu.Lock()
	th := e.ensureThreadLocked(key)
	for _, m := range msgs {
		m := m
		if !validMessage(&m) {
			continue
		}
		if out := th.ReconcileIncoming(m); out != thread.OutcomeDuplicate {
			e.touchSummaryLocked(key, m.IsGroup(), &m, m.CreatedAt)
			changed++
		}
	}
	e.mu.Unlock()

	if changed > 0 {
		e.cacheBatch(key, msgs)
		e.publish(bus.KindThreadUpdated, bus.ThreadChange{ConversationKey: key, Reason: "merged"})
	}
}

func (e *Engine) loadCachedMessages(key string) {
	if e.db == nil {
		return
	}
	cached, err := e.db.ListMessages(key, 0, 200)
	if err != nil {
		e.logger.Warn("cache read failed", zap.String("conversation", key), zap.Error(err))
		return
	}
	e.mu.Lock()
	th := e.ensureThreadLocked(key)
	for _, cm := range cached {
		m := fromCache(cm)
		if th.ReconcileIncoming(m) != thread.OutcomeDuplicate {
			e.touchSummaryLocked(key, m.IsGroup(), &m, m.CreatedAt)
		}
	}
	e.mu.Unlock()
}

// unreadCandidateIDs returns confirmed message ids from other senders in
// the conversation, for the batch mark-as-read call.
func (e *Engine) unreadCandidateIDs(key string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	th := e.threads[key]
	if th == nil {
		return nil
	}
	var ids []string
	for _, m := range th.Messages() {
		if m.Status == model.StatusConfirmed && m.SenderID != e.opts.SelfID {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (e *Engine) ensureThreadLocked(key string) *thread.Thread {
	th := e.threads[key]
	if th == nil {
		th = thread.New(key)
		e.threads[key] = th
	}
	return th
}

func (e *Engine) publish(kind string, payload any) {
	e.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func fromCache(cm store.Message) model.Message {
	m := model.Message{
		ID:         cm.MsgID,
		SenderID:   cm.SenderID,
		ReceiverID: cm.ReceiverID,
		GroupID:    cm.GroupID,
		Text:       cm.Body,
		ReplyToID:  cm.ReplyToID,
		CreatedAt:  time.UnixMilli(cm.CreatedAt),
		Status:     model.StatusConfirmed,
	}
	if cm.MediaURL != "" || cm.MediaFilename != "" {
		m.Media = &model.Media{URL: cm.MediaURL, Type: cm.MediaType, Filename: cm.MediaFilename, Size: cm.MediaSize}
	}
	return m
}

func toCache(key string, m *model.Message) *store.Message {
	cm := &store.Message{
		ConversationKey: key,
		MsgID:           m.ID,
		SenderID:        m.SenderID,
		ReceiverID:      m.ReceiverID,
		GroupID:         m.GroupID,
		Body:            m.Text,
		ReplyToID:       m.ReplyToID,
		CreatedAt:       m.CreatedAt.UnixMilli(),
	}
	if m.Media != nil {
		cm.MediaURL = m.Media.URL
		cm.MediaType = m.Media.Type
		cm.MediaFilename = m.Media.Filename
		cm.MediaSize = m.Media.Size
	}
	return cm
}

func (e *Engine) cacheBatch(key string, msgs []model.Message) {
	if e.db == nil {
		return
	}
	for i := range msgs {
		if !validMessage(&msgs[i]) {
			continue
		}
		if err := e.db.UpsertMessage(toCache(key, &msgs[i])); err != nil {
			e.logger.Warn("cache write failed", zap.String("msg_id", msgs[i].ID), zap.Error(err))
		}
	}
	e.persistSummary(key)
}

func (e *Engine) persistSummary(key string) {
	if e.db == nil {
		return
	}
	e.mu.Lock()
	s := e.summaries[key]
	e.mu.Unlock()
	if s == nil {
		return
	}
	err := e.db.UpsertConversation(&store.Conversation{
		Key:               key,
		IsGroup:           s.IsGroup,
		UnreadCount:       e.counter.Get(key),
		LastInteractionAt: s.LastInteraction.UnixMilli(),
		LastPreview:       s.Preview,
	})
	if err != nil {
		e.logger.Warn("summary cache write failed", zap.String("conversation", key), zap.Error(err))
	}
}

func (e *Engine) persistUnread(key string) {
	if e.db == nil {
		return
	}
	if err := e.db.SetUnread(key, e.counter.Get(key)); err != nil {
		e.logger.Warn("unread cache write failed", zap.String("conversation", key), zap.Error(err))
	}
}

// touchSummaryLocked updates the chat-list entry for key. Bumps with an
// older timestamp than the current one are ignored, so out-of-order
// arrivals never move a conversation backwards.
func (e *Engine) touchSummaryLocked(key string, isGroup bool, msg *model.Message, at time.Time) {
	s := e.summaries[key]
	if s == nil {
		s = &model.ConversationSummary{Key: key, IsGroup: isGroup}
		e.summaries[key] = s
		e.order = append(e.order, key)
	}
	if isGroup {
		s.IsGroup = true
	}
	if at.After(s.LastInteraction) {
		s.LastInteraction = at
		if msg != nil {
			s.LastMessage = msg
			s.Preview = msg.Preview(100)
		}
	}
}
