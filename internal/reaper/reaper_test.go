package reaper

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingStore struct {
	mu      sync.Mutex
	cutoffs []time.Time
	ret     int
}

func (s *recordingStore) ReapStale(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cutoffs = append(s.cutoffs, cutoff)
	return s.ret
}

func (s *recordingStore) calls() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.cutoffs...)
}

func TestSweepUsesMaxAgeCutoff(t *testing.T) {
	st := &recordingStore{ret: 2}
	r := New(st, time.Hour, 30*time.Second, nil)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if got := r.Sweep(now); got != 2 {
		t.Fatalf("Sweep = %d, want 2", got)
	}

	calls := st.calls()
	if len(calls) != 1 {
		t.Fatalf("ReapStale called %d times, want 1", len(calls))
	}
	want := now.Add(-30 * time.Second)
	if !calls[0].Equal(want) {
		t.Fatalf("cutoff = %v, want %v", calls[0], want)
	}
}

func TestDefaultsApplied(t *testing.T) {
	r := New(&recordingStore{}, 0, 0, nil)
	if r.interval != 10*time.Second {
		t.Fatalf("interval = %v", r.interval)
	}
	if r.maxAge != 30*time.Second {
		t.Fatalf("maxAge = %v", r.maxAge)
	}
}

func TestLoopSweepsOnInterval(t *testing.T) {
	st := &recordingStore{}
	r := New(st, 10*time.Millisecond, 30*time.Second, nil)
	r.Start(context.Background())
	defer r.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(st.calls()) >= 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("loop never swept")
}

func TestStopHaltsLoop(t *testing.T) {
	st := &recordingStore{}
	r := New(st, 5*time.Millisecond, 30*time.Second, nil)
	r.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	r.Stop()

	time.Sleep(20 * time.Millisecond)
	before := len(st.calls())
	time.Sleep(30 * time.Millisecond)
	if after := len(st.calls()); after != before {
		t.Fatalf("sweeps continued after Stop: %d -> %d", before, after)
	}
}
