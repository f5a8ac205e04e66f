package dblib

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// PendingEdit is a buffered change of one cell awaiting commit.
type PendingEdit struct {
	Table  string
	Row    int // display position at the latest edit
	Col    int
	Column string
	// Identity is the encoded key anchor of the row captured from the
	// database at the first edit; empty when no anchor could be captured.
	Identity string
	// Old is the database value before any edit in this session.
	Old any
	// New is the latest text typed by the user.
	New      string
	Recorded time.Time
}

type editKey struct {
	table    string
	identity string
	column   string
}

type cellPos struct {
	table    string
	row, col int
}

// StagingArea holds pending edits per table. Edits are keyed by the row
// identity captured at edit time so they stay attached to the same record;
// a position index finds the edit again when the same cell is edited twice.
type StagingArea struct {
	mu      sync.Mutex
	edits   map[editKey]*PendingEdit
	byPos   map[cellPos]editKey
	order   []editKey
	nowFunc func() time.Time
}

func NewStagingArea() *StagingArea {
	return &StagingArea{
		edits:   make(map[editKey]*PendingEdit),
		byPos:   make(map[cellPos]editKey),
		nowFunc: time.Now,
	}
}

// Lookup returns the pending edit of a display cell.
func (s *StagingArea) Lookup(table string, row, col int) (*PendingEdit, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.byPos[cellPos{table, row, col}]
	if !ok {
		return nil, false
	}
	e := s.edits[k]
	return e, e != nil
}

// Update overwrites the new value of an existing edit. The old value is
// preserved.
func (s *StagingArea) Update(e *PendingEdit, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.New = text
	e.Recorded = s.nowFunc()
}

// Add stages a first edit. An edit already staged for the same row identity
// and column keeps its old value and takes the new text and position.
func (s *StagingArea) Add(e PendingEdit) *PendingEdit {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity := e.Identity
	if identity == "" {
		identity = "@" + strconv.Itoa(e.Row)
	}
	k := editKey{table: e.Table, identity: identity, column: e.Column}
	if existing, ok := s.edits[k]; ok {
		existing.New = e.New
		existing.Row = e.Row
		existing.Col = e.Col
		existing.Recorded = s.nowFunc()
		s.byPos[cellPos{e.Table, e.Row, e.Col}] = k
		return existing
	}
	e.Recorded = s.nowFunc()
	stored := e
	s.edits[k] = &stored
	s.byPos[cellPos{e.Table, e.Row, e.Col}] = k
	s.order = append(s.order, k)
	return &stored
}

// Pending returns the edits of table in the order they were first staged.
func (s *StagingArea) Pending(table string) []*PendingEdit {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*PendingEdit
	for _, k := range s.order {
		if k.table != table {
			continue
		}
		if e, ok := s.edits[k]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of pending edits of table.
func (s *StagingArea) Len(table string) int {
	return len(s.Pending(table))
}

// Modified reports whether a display cell has a pending edit.
func (s *StagingArea) Modified(table string, row, col int) bool {
	_, ok := s.Lookup(table, row, col)
	return ok
}

// Clear drops every pending edit of table.
func (s *StagingArea) Clear(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.edits {
		if k.table == table {
			delete(s.edits, k)
		}
	}
	for p := range s.byPos {
		if p.table == table {
			delete(s.byPos, p)
		}
	}
	kept := s.order[:0]
	for _, k := range s.order {
		if k.table != table {
			kept = append(kept, k)
		}
	}
	s.order = kept
}

// Reset drops every pending edit of every table.
func (s *StagingArea) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = make(map[editKey]*PendingEdit)
	s.byPos = make(map[cellPos]editKey)
	s.order = nil
}

// encodeIdentity turns an anchor into a staging identity.
func encodeIdentity(anchor []any) string {
	parts := make([]string, len(anchor))
	for i, v := range anchor {
		parts[i] = valueKey(v)
	}
	return strings.Join(parts, "\x1f")
}
