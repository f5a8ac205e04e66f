package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreadcrumbEntriesCollapseRuns(t *testing.T) {
	b := NewBreadcrumbBuffer(10)
	b.RecordKeyboard("down")
	b.RecordKeyboard("down")
	b.RecordKeyboard("down")
	b.RecordDatabase("save")
	b.RecordKeyboard("down")

	entries := b.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "Key: down (x3)", entries[0].Message)
	assert.Equal(t, BreadcrumbDatabase, entries[1].Type)
	assert.Equal(t, "Key: down", entries[2].Message)
}

func TestBreadcrumbRingKeepsNewest(t *testing.T) {
	b := NewBreadcrumbBuffer(3)
	for _, table := range []string{"a", "b", "c", "d", "e"} {
		b.RecordNavigation(table)
	}
	entries := b.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "Open: c", entries[0].Message)
	assert.Equal(t, "Open: e", entries[2].Message)

	b.Flush()
	assert.Empty(t, b.Entries())
}
