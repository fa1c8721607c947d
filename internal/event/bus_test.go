package event

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewBus()
	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	if dropped := b.Publish(Event{Kind: KindUserJoined, UserID: "alice", ChannelID: "gen1"}); dropped != 0 {
		t.Fatalf("Publish dropped %d, want 0", dropped)
	}

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind != KindUserJoined || ev.UserID != "alice" {
				t.Errorf("subscriber %d got %+v", i, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i)
		}
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	b := NewBus()
	if dropped := b.Publish(Event{Kind: KindError, Error: "nobody listening"}); dropped != 0 {
		t.Errorf("Publish dropped %d with no subscribers, want 0", dropped)
	}
}

// TestPublishNeverBlocks fills a subscriber's buffer and verifies the
// overflow is counted as dropped instead of stalling the publisher.
func TestPublishNeverBlocks(t *testing.T) {
	b := NewBus()
	_, cancel := b.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBufferSize; i++ {
		if dropped := b.Publish(Event{Kind: KindAudioPacket, Sequence: uint32(i)}); dropped != 0 {
			t.Fatalf("event %d dropped with buffer space remaining", i)
		}
	}

	done := make(chan int, 1)
	go func() { done <- b.Publish(Event{Kind: KindAudioPacket}) }()
	select {
	case dropped := <-done:
		if dropped != 1 {
			t.Errorf("overflow Publish dropped %d, want 1", dropped)
		}
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe()

	cancel()
	if _, open := <-ch; open {
		t.Error("channel still open after cancel")
	}
	if n := b.SubscriberCount(); n != 0 {
		t.Errorf("SubscriberCount = %d after cancel, want 0", n)
	}

	// Cancel is safe to call twice.
	cancel()

	if dropped := b.Publish(Event{Kind: KindUserLeft}); dropped != 0 {
		t.Errorf("Publish after cancel dropped %d, want 0", dropped)
	}
}

func TestSubscriberCount(t *testing.T) {
	b := NewBus()
	_, cancel1 := b.Subscribe()
	_, cancel2 := b.Subscribe()
	if n := b.SubscriberCount(); n != 2 {
		t.Fatalf("SubscriberCount = %d, want 2", n)
	}
	cancel1()
	if n := b.SubscriberCount(); n != 1 {
		t.Fatalf("SubscriberCount = %d after one cancel, want 1", n)
	}
	cancel2()
}
