package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetsign/fleetsign/internal/config"
	"github.com/fleetsign/fleetsign/internal/events"
)

func testService(t *testing.T) (*Service, *events.Bus, string) {
	t.Helper()
	root := t.TempDir()
	bus := events.NewBus()
	cfg := &config.Config{MediaRoot: root, BaseURL: "http://admin.fleet.example.com:8080"}
	svc, err := NewService(cfg, bus, zerolog.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, bus, root
}

func TestIngestStoresAndReturnsLocator(t *testing.T) {
	svc, bus, root := testService(t)
	ingested := bus.Subscribe(events.EventMediaIngested)
	defer bus.Unsubscribe(events.EventMediaIngested, ingested)

	locator, err := svc.Ingest(context.Background(), "spot.mp4", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if locator != "http://admin.fleet.example.com:8080/media/spot.mp4" {
		t.Fatalf("locator = %q", locator)
	}

	stored, err := os.ReadFile(filepath.Join(root, "spot.mp4"))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(stored) != "payload" {
		t.Fatalf("stored content = %q", stored)
	}

	select {
	case payload := <-ingested:
		if payload["key"] != "spot.mp4" || payload["locator"] != locator {
			t.Fatalf("event payload = %v", payload)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for ingest event")
	}
}

func TestRemoveDeletesStoredObject(t *testing.T) {
	svc, _, root := testService(t)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, "spot.mp4", strings.NewReader("payload")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := svc.Remove(ctx, "spot.mp4"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "spot.mp4")); !os.IsNotExist(err) {
		t.Fatalf("object still present: %v", err)
	}
}

func TestRemoveMissingIsNotAnError(t *testing.T) {
	svc, _, _ := testService(t)
	if err := svc.Remove(context.Background(), "never-stored.mp4"); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
}

func TestCheckAccess(t *testing.T) {
	svc, _, _ := testService(t)
	if err := svc.CheckAccess(context.Background()); err != nil {
		t.Fatalf("check access: %v", err)
	}

	missing := NewFilesystemStorage(filepath.Join(t.TempDir(), "gone"), "http://x", zerolog.Nop())
	if err := missing.CheckAccess(context.Background()); err == nil {
		t.Fatalf("expected error for missing media root")
	}
}

func TestFilesystemStorageNestedKeys(t *testing.T) {
	root := t.TempDir()
	fs := NewFilesystemStorage(root, "http://base/", zerolog.Nop())
	ctx := context.Background()

	if _, err := fs.Store(ctx, "2026/08/spot.mp4", strings.NewReader("x")); err != nil {
		t.Fatalf("store nested: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "2026", "08", "spot.mp4")); err != nil {
		t.Fatalf("nested file missing: %v", err)
	}
	if got := fs.URL("2026/08/spot.mp4"); got != "http://base/media/2026/08/spot.mp4" {
		t.Fatalf("url = %q", got)
	}
}
