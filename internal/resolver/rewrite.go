/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package resolver

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Share-page URLs from common file hosts do not stream directly; they are
// rewritten to the host's direct-download endpoint before loading.

var (
	drivePathID  = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	driveQueryID = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
)

// driveFileID extracts the file id from a Google Drive share URL, or "".
func driveFileID(raw string) string {
	if m := drivePathID.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := driveQueryID.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// rewriteDrive returns a direct-download form for the Drive file id.
// Attempt selects among structurally different endpoints so a retry does
// not repeat the exact request that just failed.
func rewriteDrive(fileID string, attempt int) string {
	if attempt == 0 {
		return fmt.Sprintf("https://drive.google.com/uc?export=download&id=%s", fileID)
	}
	return fmt.Sprintf("https://drive.usercontent.google.com/download?id=%s&export=download", fileID)
}

// rewriteDropbox forces direct content delivery for a Dropbox share URL.
func rewriteDropbox(u *url.URL) string {
	rewritten := *u
	rewritten.Host = "dl.dropboxusercontent.com"
	q := rewritten.Query()
	q.Set("dl", "1")
	rewritten.RawQuery = q.Encode()
	return rewritten.String()
}

// normalizeRemote rewrites a stored remote locator into a fetchable URL.
// Unrecognized URLs pass through unchanged.
func normalizeRemote(locator string, attempt int) (string, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("locator %q: %w", locator, ErrRewriteUnavailable)
	}

	host := strings.ToLower(u.Host)
	switch {
	case strings.HasSuffix(host, "drive.google.com") || strings.HasSuffix(host, "docs.google.com"):
		id := driveFileID(locator)
		if id == "" {
			return "", fmt.Errorf("locator %q: no drive file id: %w", locator, ErrRewriteUnavailable)
		}
		return rewriteDrive(id, attempt), nil
	case host == "www.dropbox.com" || host == "dropbox.com":
		return rewriteDropbox(u), nil
	default:
		return locator, nil
	}
}
