package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fleetsign/fleetsign/internal/blobstore"
	"github.com/fleetsign/fleetsign/internal/playlist"
)

func testResolver(t *testing.T) (*Resolver, *blobstore.Store) {
	t.Helper()
	blobs := blobstore.New(t.TempDir(), zerolog.Nop())
	return New(blobs, zerolog.Nop()), blobs
}

func TestResolve_LocalFile(t *testing.T) {
	res, blobs := testResolver(t)
	ctx := context.Background()

	if _, err := blobs.Put(ctx, "clip.mp4", strings.NewReader("payload")); err != nil {
		t.Fatalf("put blob: %v", err)
	}

	entry := playlist.MediaEntry{ID: "e1", SourceKind: playlist.SourceLocalFile, Locator: "clip.mp4"}
	handle, err := res.Resolve(ctx, entry, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	defer handle.Release()

	if !strings.HasPrefix(handle.URI(), "file://") {
		t.Fatalf("URI = %q, want file scheme", handle.URI())
	}
}

func TestResolve_LocalFileViaServingURL(t *testing.T) {
	res, blobs := testResolver(t)
	ctx := context.Background()

	if _, err := blobs.Put(ctx, "ad7.mp4", strings.NewReader("payload")); err != nil {
		t.Fatalf("put blob: %v", err)
	}

	// Uploads are recorded under the admin server's URL; the terminal
	// resolves by the trailing key.
	entry := playlist.MediaEntry{
		ID:         "e2",
		SourceKind: playlist.SourceLocalFile,
		Locator:    "http://admin.fleet.example.com:8080/media/ad7.mp4",
	}
	handle, err := res.Resolve(ctx, entry, 0)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	defer handle.Release()

	if !strings.Contains(handle.URI(), "ad7.mp4") {
		t.Fatalf("URI = %q, want local blob path", handle.URI())
	}
}

func TestResolve_LocalFileMissing(t *testing.T) {
	res, _ := testResolver(t)

	entry := playlist.MediaEntry{ID: "e3", SourceKind: playlist.SourceLocalFile, Locator: "gone.mp4"}
	_, err := res.Resolve(context.Background(), entry, 0)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve_RemoteLink(t *testing.T) {
	res, _ := testResolver(t)

	entry := playlist.MediaEntry{
		ID:         "e4",
		SourceKind: playlist.SourceRemoteLink,
		Locator:    "https://drive.google.com/file/d/abc123/view",
	}

	first, err := res.Resolve(context.Background(), entry, 0)
	if err != nil {
		t.Fatalf("resolve attempt 0: %v", err)
	}
	first.Release()

	second, err := res.Resolve(context.Background(), entry, 1)
	if err != nil {
		t.Fatalf("resolve attempt 1: %v", err)
	}
	second.Release()

	if first.URI() == second.URI() {
		t.Fatalf("retry produced identical URI %q", first.URI())
	}
}

func TestResolve_RemoteRewriteUnavailable(t *testing.T) {
	res, _ := testResolver(t)

	entry := playlist.MediaEntry{ID: "e5", SourceKind: playlist.SourceRemoteLink, Locator: "not a url"}
	_, err := res.Resolve(context.Background(), entry, 0)
	if !errors.Is(err, ErrRewriteUnavailable) {
		t.Fatalf("expected ErrRewriteUnavailable, got %v", err)
	}
}

func TestResolve_UnknownSourceKind(t *testing.T) {
	res, _ := testResolver(t)

	entry := playlist.MediaEntry{ID: "e6", SourceKind: "tape", Locator: "x"}
	if _, err := res.Resolve(context.Background(), entry, 0); err == nil {
		t.Fatalf("expected error for unknown source kind")
	}
}
