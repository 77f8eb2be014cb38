package presence

import (
	"reflect"
	"testing"
	"time"
)

// fakeClock is a manually-advanced clock for deadline tests.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// Snapshot replacement property: {A,B} then {B,C} yields exactly {B,C},
// not a union.
func TestSnapshotReplacesNotMerges(t *testing.T) {
	tr := NewTracker()
	tr.ApplySnapshot([]string{"A", "B"})
	joined, left := tr.ApplySnapshot([]string{"B", "C"})

	if got := tr.Online(); !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Errorf("online = %v, want [B C]", got)
	}
	if tr.IsOnline("A") {
		t.Error("A should no longer be online")
	}
	if !reflect.DeepEqual(joined, []string{"C"}) || !reflect.DeepEqual(left, []string{"A"}) {
		t.Errorf("diff = +%v -%v, want +[C] -[A]", joined, left)
	}
}

func TestBaselineCountsUntilFirstSnapshot(t *testing.T) {
	tr := NewTracker()
	tr.SetBaseline([]string{"A", "B"})

	if !tr.IsOnline("A") {
		t.Error("baseline id should count as online before any snapshot")
	}

	// First snapshot becomes authoritative for ids it omits.
	tr.ApplySnapshot([]string{"B"})
	if tr.IsOnline("A") {
		t.Error("A should be offline once a snapshot arrived without it")
	}
	if !tr.IsOnline("B") {
		t.Error("B should be online")
	}
}

func TestEmptySnapshotClearsEverything(t *testing.T) {
	tr := NewTracker()
	tr.SetBaseline([]string{"A"})
	tr.ApplySnapshot(nil)

	if tr.IsOnline("A") {
		t.Error("empty snapshot should clear baseline presence too")
	}
	if got := tr.Online(); len(got) != 0 {
		t.Errorf("online = %v, want empty", got)
	}
}

func TestTypingAutoClearsAfterTimeout(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(WithClock(clock.now), WithTypingTimeout(2000*time.Millisecond))

	tr.OnTyping("B", true)
	if !tr.IsTyping("B") {
		t.Fatal("B should be typing right after the signal")
	}

	clock.advance(1999 * time.Millisecond)
	if !tr.IsTyping("B") {
		t.Error("B should still be typing just inside the window")
	}

	clock.advance(time.Millisecond)
	if tr.IsTyping("B") {
		t.Error("B should auto-clear at 2000ms without a stop signal")
	}
}

func TestStopSignalClearsImmediately(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(WithClock(clock.now))

	tr.OnTyping("B", true)
	tr.OnTyping("B", false)
	if tr.IsTyping("B") {
		t.Error("stop signal should clear the flag")
	}
}

func TestFollowUpSignalExtendsDeadline(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(WithClock(clock.now), WithTypingTimeout(2*time.Second))

	tr.OnTyping("B", true)
	clock.advance(1500 * time.Millisecond)
	tr.OnTyping("B", true)
	clock.advance(1500 * time.Millisecond)

	if !tr.IsTyping("B") {
		t.Error("repeated signal should extend the typing window")
	}
}

func TestTypingPeersTracksGroupSet(t *testing.T) {
	clock := newFakeClock()
	tr := NewTracker(WithClock(clock.now), WithTypingTimeout(2*time.Second))

	tr.OnTyping("B", true)
	tr.OnTyping("C", true)
	clock.advance(time.Second)
	tr.OnTyping("D", true)
	clock.advance(1500 * time.Millisecond)

	// B and C expired at +2s; D is still inside its window.
	if got := tr.TypingPeers(); !reflect.DeepEqual(got, []string{"D"}) {
		t.Errorf("typing = %v, want [D]", got)
	}
}
