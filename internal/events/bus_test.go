package events

import (
	"testing"
	"time"
)

func TestPublishReachesSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventPlaylistUpdated)
	defer bus.Unsubscribe(EventPlaylistUpdated, sub)

	bus.Publish(EventPlaylistUpdated, Payload{"revision": int64(3)})

	select {
	case payload := <-sub:
		if payload["revision"] != int64(3) {
			t.Fatalf("payload = %v", payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}
}

func TestPublishSkipsOtherEventTypes(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventPlaylistUpdated)
	defer bus.Unsubscribe(EventPlaylistUpdated, sub)

	bus.Publish(EventNowPlaying, Payload{"entry_id": "a"})

	select {
	case payload := <-sub:
		t.Fatalf("unexpected delivery: %v", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventPlaybackState)
	defer bus.Unsubscribe(EventPlaybackState, sub)

	// Overflow the buffered channel; extra publishes must drop, not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 64; i++ {
			bus.Publish(EventPlaybackState, Payload{"seq": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a full subscriber")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventPresenceChanged)
	bus.Unsubscribe(EventPresenceChanged, sub)

	if _, ok := <-sub; ok {
		t.Fatalf("channel still open after unsubscribe")
	}

	// Publishing after unsubscribe reaches nobody and must not panic.
	bus.Publish(EventPresenceChanged, Payload{"terminal_id": "tablet-1"})
}

func TestConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := NewBus()

	// Publishers hammer the bus while subscribers come and go; a send
	// racing a close would panic.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			bus.Publish(EventPlaylistUpdated, Payload{"seq": i})
		}
		close(done)
	}()

	for i := 0; i < 100; i++ {
		sub := bus.Subscribe(EventPlaylistUpdated)
		bus.Unsubscribe(EventPlaylistUpdated, sub)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publisher did not finish")
	}
}

func TestFanOutToMultipleSubscribers(t *testing.T) {
	bus := NewBus()
	first := bus.Subscribe(EventMediaIngested)
	second := bus.Subscribe(EventMediaIngested)
	defer bus.Unsubscribe(EventMediaIngested, first)
	defer bus.Unsubscribe(EventMediaIngested, second)

	bus.Publish(EventMediaIngested, Payload{"key": "spot.mp4"})

	for _, sub := range []Subscriber{first, second} {
		select {
		case payload := <-sub:
			if payload["key"] != "spot.mp4" {
				t.Fatalf("payload = %v", payload)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber missed the event")
		}
	}
}
