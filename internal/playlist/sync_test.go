package playlist

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetsign/fleetsign/internal/events"
)

// collector records delivered snapshots for assertions.
type collector struct {
	mu        sync.Mutex
	snapshots []Playlist
	notify    chan struct{}
}

func newCollector() *collector {
	return &collector{notify: make(chan struct{}, 16)}
}

func (c *collector) fn(p Playlist) {
	c.mu.Lock()
	c.snapshots = append(c.snapshots, p)
	c.mu.Unlock()
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snapshots)
}

func (c *collector) last() Playlist {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshots[len(c.snapshots)-1]
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.notify:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for snapshot delivery")
	}
}

func TestPushSyncPrimesSubscriber(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Replace(context.Background(), []MediaEntry{{ID: "a", SourceKind: SourceRemoteLink, Locator: "https://example.com/a.mp4"}}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	push := NewPushSync(store, events.NewBus(), zerolog.Nop())
	c := newCollector()
	unsub := push.Subscribe(c.fn)
	defer unsub()

	c.wait(t)
	if got := c.last(); got.Len() != 1 || got.Revision != 1 {
		t.Fatalf("primed snapshot len=%d rev=%d", got.Len(), got.Revision)
	}
}

func TestPushSyncDeliversOnNotification(t *testing.T) {
	store := NewMemoryStore()
	bus := events.NewBus()
	push := NewPushSync(store, bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = push.Run(ctx) }()

	c := newCollector()
	unsub := push.Subscribe(c.fn)
	defer unsub()
	c.wait(t) // empty priming snapshot

	if _, err := store.Replace(ctx, []MediaEntry{{ID: "a", SourceKind: SourceRemoteLink, Locator: "https://example.com/a.mp4"}}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	bus.Publish(events.EventPlaylistUpdated, events.Payload{"revision": int64(1)})

	c.wait(t)
	if got := c.last(); got.Len() != 1 {
		t.Fatalf("delivered snapshot len=%d", got.Len())
	}
}

func TestPushSyncCoalescesByRevision(t *testing.T) {
	store := NewMemoryStore()
	bus := events.NewBus()
	push := NewPushSync(store, bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = push.Run(ctx) }()

	c := newCollector()
	unsub := push.Subscribe(c.fn)
	defer unsub()
	c.wait(t)
	before := c.count()

	// Duplicate notifications for an unchanged revision stay silent.
	bus.Publish(events.EventPlaylistUpdated, events.Payload{})
	bus.Publish(events.EventPlaylistUpdated, events.Payload{})
	time.Sleep(100 * time.Millisecond)

	if c.count() != before {
		t.Fatalf("unchanged revision redelivered: %d -> %d", before, c.count())
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	push := NewPushSync(store, events.NewBus(), zerolog.Nop())

	c := newCollector()
	unsub := push.Subscribe(c.fn)
	unsub()
	unsub() // second call must be a no-op, not a panic
}

func TestPollSyncDeliversChanges(t *testing.T) {
	store := NewMemoryStore()
	poll := NewPollSync(store, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = poll.Run(ctx) }()

	c := newCollector()
	unsub := poll.Subscribe(c.fn)
	defer unsub()
	c.wait(t) // priming snapshot

	if _, err := store.Replace(ctx, []MediaEntry{{ID: "a", SourceKind: SourceRemoteLink, Locator: "https://example.com/a.mp4"}}); err != nil {
		t.Fatalf("replace: %v", err)
	}

	c.wait(t)
	if got := c.last(); got.Len() != 1 {
		t.Fatalf("polled snapshot len=%d", got.Len())
	}

	// Unchanged revisions do not fan out again.
	count := c.count()
	time.Sleep(50 * time.Millisecond)
	if c.count() != count {
		t.Fatalf("unchanged revision redelivered by poll: %d -> %d", count, c.count())
	}
}
