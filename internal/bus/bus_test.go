package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("thread.", 4)
	defer unsub()

	b.Publish(Event{Kind: KindThreadUpdated, Timestamp: time.Now(), Payload: ThreadChange{ConversationKey: "alice", Reason: "appended"}})

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(ThreadChange)
		if !ok {
			t.Fatalf("payload type = %T, want ThreadChange", evt.Payload)
		}
		if change.ConversationKey != "alice" {
			t.Errorf("conversation key = %q, want alice", change.ConversationKey)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	threadCh, unsub1 := b.Subscribe("thread.", 4)
	defer unsub1()
	remoteCh, unsub2 := b.Subscribe("remote.", 4)
	defer unsub2()

	b.Publish(Event{Kind: KindRemoteEvent, Timestamp: time.Now()})

	select {
	case <-remoteCh:
	case <-time.After(time.Second):
		t.Fatal("remote subscriber did not receive remote.event")
	}

	select {
	case evt := <-threadCh:
		t.Errorf("thread subscriber received %q, want nothing", evt.Kind)
	default:
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("unread.", 4)
	unsub()

	b.Publish(Event{Kind: KindUnreadChanged, Timestamp: time.Now()})

	select {
	case evt := <-ch:
		t.Errorf("received %q after unsubscribe", evt.Kind)
	default:
	}
}

func TestFullSubscriberDoesNotBlockPublisher(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("thread.", 1)
	defer unsub()

	// Second publish must not block even though nobody drains the channel.
	done := make(chan struct{})
	go func() {
		b.Publish(Event{Kind: KindThreadUpdated})
		b.Publish(Event{Kind: KindThreadUpdated})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on full subscriber")
	}
}
