// Package presence derives per-peer online and typing state from
// full-snapshot broadcasts, ephemeral typing signals, and a baseline
// fetched list.
package presence

import (
	"sort"
	"sync"
	"time"
)

// DefaultTypingTimeout clears a typing flag when no stop signal follows,
// defending against a lost stop-signal.
const DefaultTypingTimeout = 2 * time.Second

// Tracker reconciles presence snapshots against a fetched baseline and
// tracks transient typing flags with deadline-based auto-clear.
type Tracker struct {
	mu            sync.Mutex
	online        map[string]struct{}
	baseline      map[string]struct{}
	snapshotSeen  bool
	typing        map[string]time.Time // peer id -> deadline
	typingTimeout time.Duration
	now           func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTypingTimeout overrides the typing auto-clear window.
func WithTypingTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.typingTimeout = d }
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker with an empty online set.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		online:        make(map[string]struct{}),
		baseline:      make(map[string]struct{}),
		typing:        make(map[string]time.Time),
		typingTimeout: DefaultTypingTimeout,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetBaseline records the "last known online" flags from the initial fetch.
// Until the first snapshot arrives, baseline entries count as online.
func (t *Tracker) SetBaseline(ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baseline = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		t.baseline[id] = struct{}{}
	}
}

// ApplySnapshot replaces the entire online set with the broadcast snapshot.
// This is a full-state protocol: the latest-received snapshot is always
// authoritative, never merged. Returns the ids that joined and left
// relative to the previous set, for logging.
func (t *Tracker) ApplySnapshot(ids []string) (joined, left []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
		if _, ok := t.online[id]; !ok {
			joined = append(joined, id)
		}
	}
	for id := range t.online {
		if _, ok := next[id]; !ok {
			left = append(left, id)
		}
	}
	t.online = next
	t.snapshotSeen = true
	sort.Strings(joined)
	sort.Strings(left)
	return joined, left
}

// IsOnline reports whether the peer is considered online: present in the
// latest snapshot, or flagged by the baseline while no snapshot has
// arrived yet.
func (t *Tracker) IsOnline(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.online[id]; ok {
		return true
	}
	if !t.snapshotSeen {
		_, ok := t.baseline[id]
		return ok
	}
	return false
}

// Online returns a sorted copy of the effective online set.
func (t *Tracker) Online() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	set := make(map[string]struct{}, len(t.online))
	for id := range t.online {
		set[id] = struct{}{}
	}
	if !t.snapshotSeen {
		for id := range t.baseline {
			set[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// OnTyping records or clears a peer's typing flag. A set flag auto-clears
// after the typing timeout if no stop signal arrives.
func (t *Tracker) OnTyping(peerID string, isTyping bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !isTyping {
		delete(t.typing, peerID)
		return
	}
	t.typing[peerID] = t.now().Add(t.typingTimeout)
}

// IsTyping reports whether the peer's typing flag is set and not expired.
func (t *Tracker) IsTyping(peerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	deadline, ok := t.typing[peerID]
	if !ok {
		return false
	}
	if t.now().After(deadline) || t.now().Equal(deadline) {
		delete(t.typing, peerID)
		return false
	}
	return true
}

// TypingPeers returns the sorted set of peers currently typing, pruning
// expired flags. Group views render this set; 1:1 views look at one id.
func (t *Tracker) TypingPeers() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var out []string
	for id, deadline := range t.typing {
		if now.After(deadline) || now.Equal(deadline) {
			delete(t.typing, id)
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
