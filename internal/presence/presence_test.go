package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetsign/fleetsign/internal/events"
)

// memStore is an in-memory presence store with a switchable failure.
type memStore struct {
	mu      sync.Mutex
	records map[string]Record
	fail    error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]Record)}
}

func (m *memStore) Set(ctx context.Context, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.records[record.TerminalID] = record
	return nil
}

func (m *memStore) List(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	out := make([]Record, 0, len(m.records))
	for _, record := range m.records {
		out = append(out, record)
	}
	return out, nil
}

func TestMarkOnlineAndList(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, events.NewBus(), zerolog.Nop())

	svc.MarkOnline(context.Background(), "tablet-1")

	records, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].TerminalID != "tablet-1" || records[0].Status != StatusOnline {
		t.Fatalf("records = %+v", records)
	}
}

func TestMarkOfflineOverwrites(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, events.NewBus(), zerolog.Nop())
	ctx := context.Background()

	svc.MarkOnline(ctx, "tablet-1")
	svc.MarkOffline(ctx, "tablet-1")

	records, _ := svc.List(ctx)
	if len(records) != 1 || records[0].Status != StatusOffline {
		t.Fatalf("records = %+v", records)
	}
}

func TestFallbackOnPrimaryFailure(t *testing.T) {
	primary := newMemStore()
	primary.fail = errors.New("redis down")
	fallback := newMemStore()
	svc := NewService(primary, fallback, events.NewBus(), zerolog.Nop())
	ctx := context.Background()

	svc.MarkOnline(ctx, "tablet-2")

	records, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list via fallback: %v", err)
	}
	if len(records) != 1 || records[0].TerminalID != "tablet-2" {
		t.Fatalf("fallback records = %+v", records)
	}
}

func TestWriteFailureNeverPanicsOrBlocks(t *testing.T) {
	primary := newMemStore()
	primary.fail = errors.New("redis down")
	svc := NewService(primary, nil, events.NewBus(), zerolog.Nop())

	// No fallback: the failure is logged and swallowed.
	svc.MarkOnline(context.Background(), "tablet-3")
}

func TestOnlineCount(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, events.NewBus(), zerolog.Nop())
	ctx := context.Background()

	svc.MarkOnline(ctx, "a")
	svc.MarkOnline(ctx, "b")
	svc.MarkOffline(ctx, "b")
	svc.MarkOnline(ctx, "c")

	count, err := svc.OnlineCount(ctx)
	if err != nil {
		t.Fatalf("online count: %v", err)
	}
	if count != 2 {
		t.Fatalf("online count = %d, want 2", count)
	}
}

func TestPresenceChangePublishes(t *testing.T) {
	bus := events.NewBus()
	svc := NewService(newMemStore(), nil, bus, zerolog.Nop())

	changes := bus.Subscribe(events.EventPresenceChanged)
	defer bus.Unsubscribe(events.EventPresenceChanged, changes)

	svc.MarkOnline(context.Background(), "tablet-4")

	select {
	case payload := <-changes:
		if payload["terminal_id"] != "tablet-4" || payload["status"] != string(StatusOnline) {
			t.Fatalf("payload = %v", payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for presence event")
	}
}
