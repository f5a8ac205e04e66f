package dblib

import "sync"

type MessageKind int

const (
	MessageInfo MessageKind = iota
	MessageWarning
	MessageError
)

func (k MessageKind) String() string {
	switch k {
	case MessageWarning:
		return "warning"
	case MessageError:
		return "error"
	default:
		return "info"
	}
}

// Surface is the display the reconciler talks to: a grid of editable cells
// per table plus blocking prompts. Positions are display coordinates.
type Surface interface {
	// Load replaces the grid of table with fresh rows.
	Load(table string, columns []string, rows [][]string)
	CellText(table string, row, col int) (string, bool)
	RowCount(table string) int
	// SelectedRow returns the selected row of table, or -1.
	SelectedRow(table string) int
	UpdateCell(table string, row, col int, text string)

	ShowMessage(kind MessageKind, text string)
	// PromptForm asks for one value per field. ok is false when the user
	// cancelled.
	PromptForm(title string, fields []string) (values map[string]string, ok bool)
	PromptConfirm(text string) bool
}

type gridTable struct {
	columns  []string
	rows     [][]string
	selected int
}

// Grid is a concurrency-safe in-memory store of displayed tables. Front
// ends embed it and add the message and prompt methods.
type Grid struct {
	mu     sync.RWMutex
	tables map[string]*gridTable
}

func NewGrid() *Grid {
	return &Grid{tables: make(map[string]*gridTable)}
}

func (g *Grid) Load(table string, columns []string, rows [][]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	selected := -1
	if old, ok := g.tables[table]; ok {
		selected = old.selected
	}
	if selected >= len(rows) {
		selected = len(rows) - 1
	}
	g.tables[table] = &gridTable{columns: columns, rows: rows, selected: selected}
}

func (g *Grid) CellText(table string, row, col int) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.tables[table]
	if !ok || row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.rows[row]) {
		return "", false
	}
	return t.rows[row][col], true
}

func (g *Grid) RowCount(table string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if t, ok := g.tables[table]; ok {
		return len(t.rows)
	}
	return 0
}

func (g *Grid) SelectedRow(table string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if t, ok := g.tables[table]; ok {
		return t.selected
	}
	return -1
}

// Select marks row as selected; -1 clears the selection.
func (g *Grid) Select(table string, row int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.tables[table]; ok {
		if row >= len(t.rows) {
			row = len(t.rows) - 1
		}
		t.selected = row
	}
}

func (g *Grid) UpdateCell(table string, row, col int, text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.tables[table]
	if !ok || row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.rows[row]) {
		return
	}
	t.rows[row][col] = text
}

// Columns returns the column names shown for table.
func (g *Grid) Columns(table string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if t, ok := g.tables[table]; ok {
		return append([]string(nil), t.columns...)
	}
	return nil
}

// Rows returns a copy of the rows shown for table.
func (g *Grid) Rows(table string) [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	t, ok := g.tables[table]
	if !ok {
		return nil
	}
	out := make([][]string, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// Drop forgets table.
func (g *Grid) Drop(table string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.tables, table)
}
