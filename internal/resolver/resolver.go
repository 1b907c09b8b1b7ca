/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package resolver turns stored media references into playable handles.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fleetsign/fleetsign/internal/blobstore"
	"github.com/fleetsign/fleetsign/internal/playlist"
	"github.com/rs/zerolog"
)

var (
	// ErrNotFound reports local media missing from the device. Never
	// retried against the network.
	ErrNotFound = errors.New("local media not found")
	// ErrRewriteUnavailable reports a remote link that could not be
	// normalized into anything fetchable.
	ErrRewriteUnavailable = errors.New("remote link rewrite unavailable")
)

// Handle is a resolved, playable resource. Local handles pin a blob open
// and must be released when superseded; remote handles release to a no-op.
type Handle struct {
	uri  string
	blob *blobstore.Handle
}

// URI returns the location a media surface can load.
func (h *Handle) URI() string { return h.uri }

// Release frees any locally-allocated resource. Idempotent.
func (h *Handle) Release() {
	if h.blob != nil {
		h.blob.Release()
	}
}

// Resolver maps media entries to playable handles.
type Resolver struct {
	blobs  *blobstore.Store
	logger zerolog.Logger
}

// New creates a resolver backed by the terminal's local blob store.
func New(blobs *blobstore.Store, logger zerolog.Logger) *Resolver {
	return &Resolver{blobs: blobs, logger: logger}
}

// Resolve produces a handle for the entry. Attempt selects among rewrite
// strategies for remote links, so a retry loads a structurally different
// URL instead of repeating the request that just failed. For local files
// attempt is ignored; absence is final.
func (r *Resolver) Resolve(ctx context.Context, entry playlist.MediaEntry, attempt int) (*Handle, error) {
	switch entry.SourceKind {
	case playlist.SourceLocalFile:
		blob, err := r.blobs.Acquire(ctx, localKey(entry.Locator))
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				return nil, fmt.Errorf("entry %s: %w", entry.ID, ErrNotFound)
			}
			return nil, fmt.Errorf("entry %s: %w", entry.ID, err)
		}
		return &Handle{uri: blob.URI(), blob: blob}, nil

	case playlist.SourceRemoteLink:
		uri, err := normalizeRemote(entry.Locator, attempt)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", entry.ID, err)
		}
		if uri != entry.Locator {
			r.logger.Debug().
				Str("entry", entry.ID).
				Int("attempt", attempt).
				Str("uri", uri).
				Msg("remote locator rewritten")
		}
		return &Handle{uri: uri}, nil

	default:
		return nil, fmt.Errorf("entry %s: unknown source kind %q", entry.ID, entry.SourceKind)
	}
}

// localKey maps a local-file locator to its blob store key. Uploads are
// recorded under the admin server's serving URL; the trailing path
// segment after /media/ is the key the terminal's store uses.
func localKey(locator string) string {
	const marker = "/media/"
	if index := strings.LastIndex(locator, marker); index >= 0 {
		return locator[index+len(marker):]
	}
	return locator
}
