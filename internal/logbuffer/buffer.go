/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package logbuffer keeps a ring of recent log entries in memory so the
// admin dashboard can show them without shelling into the host.
package logbuffer

import (
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"
)

// LogEntry is one captured log line.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Terminal  string         `json:"terminal,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Raw       string         `json:"raw,omitempty"`
}

// Buffer is a thread-safe ring buffer of log entries.
type Buffer struct {
	mu       sync.RWMutex
	entries  []LogEntry
	capacity int
	head     int
	count    int
}

// New creates a buffer holding up to capacity entries.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Buffer{
		entries:  make([]LogEntry, capacity),
		capacity: capacity,
	}
}

// Add appends an entry, evicting the oldest once full.
func (b *Buffer) Add(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// All returns the buffered entries in chronological order.
func (b *Buffer) All() []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]LogEntry, b.count)
	start := 0
	if b.count == b.capacity {
		start = b.head
	}
	for i := 0; i < b.count; i++ {
		result[i] = b.entries[(start+i)%b.capacity]
	}
	return result
}

// QueryParams filters buffered entries.
type QueryParams struct {
	Level      string    // debug, info, warn, error
	Terminal   string    // match the terminal field
	Search     string    // substring match on message and fields
	Since      time.Time // only entries after this time
	Limit      int       // max entries, 0 for all
	Descending bool      // newest first
}

// Query returns the entries matching params.
func (b *Buffer) Query(params QueryParams) []LogEntry {
	var filtered []LogEntry
	for _, entry := range b.All() {
		if params.Level != "" && entry.Level != params.Level {
			continue
		}
		if params.Terminal != "" && entry.Terminal != params.Terminal {
			continue
		}
		if !params.Since.IsZero() && entry.Timestamp.Before(params.Since) {
			continue
		}
		if params.Search != "" && !entryMatches(entry, params.Search) {
			continue
		}
		filtered = append(filtered, entry)
	}

	if params.Descending {
		for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
			filtered[i], filtered[j] = filtered[j], filtered[i]
		}
	}
	if params.Limit > 0 && len(filtered) > params.Limit {
		filtered = filtered[:params.Limit]
	}
	return filtered
}

func entryMatches(entry LogEntry, search string) bool {
	needle := strings.ToLower(search)
	if strings.Contains(strings.ToLower(entry.Message), needle) {
		return true
	}
	for _, v := range entry.Fields {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// Stats summarizes the buffer contents.
type Stats struct {
	Capacity   int            `json:"capacity"`
	Count      int            `json:"count"`
	LevelCount map[string]int `json:"level_count"`
}

// Stats returns per-level counts for the buffered entries.
func (b *Buffer) Stats() Stats {
	stats := Stats{Capacity: b.capacity, LevelCount: make(map[string]int)}
	for _, entry := range b.All() {
		stats.Count++
		stats.LevelCount[entry.Level]++
	}
	return stats
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.count = 0
}

// Writer captures zerolog's JSON output into a Buffer. It implements
// io.Writer so it can sit behind a MultiLevelWriter next to the console.
type Writer struct {
	buffer   *Buffer
	fallback io.Writer
}

// NewWriter creates a writer feeding buffer, with an optional fallback
// that receives every line unchanged.
func NewWriter(buffer *Buffer, fallback io.Writer) *Writer {
	return &Writer{buffer: buffer, fallback: fallback}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	var raw map[string]any
	if err := json.Unmarshal(p, &raw); err == nil {
		entry := LogEntry{
			Timestamp: time.Now(),
			Fields:    make(map[string]any),
			Raw:       string(p),
		}
		if lvl, ok := raw["level"].(string); ok {
			entry.Level = lvl
			delete(raw, "level")
		}
		if msg, ok := raw["message"].(string); ok {
			entry.Message = msg
			delete(raw, "message")
		}
		if terminal, ok := raw["terminal"].(string); ok {
			entry.Terminal = terminal
			delete(raw, "terminal")
		}
		if ts, ok := raw["time"].(string); ok {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				entry.Timestamp = t
			}
			delete(raw, "time")
		}
		for k, v := range raw {
			entry.Fields[k] = v
		}
		w.buffer.Add(entry)
	}

	if w.fallback != nil {
		return w.fallback.Write(p)
	}
	return len(p), nil
}
