package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

type BreadcrumbType string

const (
	BreadcrumbKeyboard   BreadcrumbType = "keyboard"
	BreadcrumbNavigation BreadcrumbType = "navigation"
	BreadcrumbDatabase   BreadcrumbType = "database"
)

type BreadcrumbEntry struct {
	Type      BreadcrumbType
	Message   string
	Timestamp time.Time
	Level     sentry.Level
}

// BreadcrumbBuffer is a thread-safe ring of recent user and database events,
// attached to the next captured error.
type BreadcrumbBuffer struct {
	mu      sync.Mutex
	entries []BreadcrumbEntry
	next    int
	count   int
}

func NewBreadcrumbBuffer(maxSize int) *BreadcrumbBuffer {
	return &BreadcrumbBuffer{entries: make([]BreadcrumbEntry, maxSize)}
}

func (b *BreadcrumbBuffer) add(t BreadcrumbType, level sentry.Level, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = BreadcrumbEntry{Type: t, Message: msg, Timestamp: time.Now(), Level: level}
	b.next = (b.next + 1) % len(b.entries)
	if b.count < len(b.entries) {
		b.count++
	}
}

func (b *BreadcrumbBuffer) RecordKeyboard(key string) {
	b.add(BreadcrumbKeyboard, sentry.LevelDebug, "Key: "+key)
}

func (b *BreadcrumbBuffer) RecordNavigation(table string) {
	b.add(BreadcrumbNavigation, sentry.LevelInfo, "Open: "+table)
}

func (b *BreadcrumbBuffer) RecordDatabase(operation string) {
	b.add(BreadcrumbDatabase, sentry.LevelInfo, "DB: "+operation)
}

// Entries returns the buffered events oldest first, with runs of identical
// events collapsed into one "(xN)" entry.
func (b *BreadcrumbBuffer) Entries() []BreadcrumbEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	start := 0
	if b.count == len(b.entries) {
		start = b.next
	}
	var out []BreadcrumbEntry
	for i := 0; i < b.count; {
		cur := b.entries[(start+i)%len(b.entries)]
		n := 1
		for i+n < b.count {
			e := b.entries[(start+i+n)%len(b.entries)]
			if e.Type != cur.Type || e.Message != cur.Message {
				break
			}
			n++
		}
		if n > 1 {
			cur.Message = fmt.Sprintf("%s (x%d)", cur.Message, n)
		}
		out = append(out, cur)
		i += n
	}
	return out
}

// Flush moves the buffered events to the Sentry scope and empties the buffer.
func (b *BreadcrumbBuffer) Flush() {
	entries := b.Entries()
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		for _, e := range entries {
			scope.AddBreadcrumb(&sentry.Breadcrumb{
				Category:  string(e.Type),
				Message:   e.Message,
				Timestamp: e.Timestamp,
				Level:     e.Level,
			}, 100)
		}
	})
	b.mu.Lock()
	b.next, b.count = 0, 0
	b.mu.Unlock()
}

// breadcrumbs is nil unless Sentry is enabled.
var breadcrumbs *BreadcrumbBuffer

func InitBreadcrumbs(maxSize int) {
	breadcrumbs = NewBreadcrumbBuffer(maxSize)
}
