package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"mdbed/internal/dblib"
)

type pane int

const (
	paneTree pane = iota
	paneGrid
)

// tab is one open table. The selected row lives in the shared grid.
type tab struct {
	table     string
	col       int
	rowOffset int
	colOffset int
}

type treeItem struct {
	table  string
	column *dblib.Column
}

type Model struct {
	ctx        context.Context
	cfg        *Config
	session    *dblib.Session
	reconciler *dblib.Reconciler
	surface    *teaSurface

	tables     []string
	expanded   map[string][]dblib.Column
	treeCursor int
	treeOffset int

	tabs   []*tab
	active int
	focus  pane

	editing bool
	editor  textinput.Model
	modal   *modal

	// busy is set while a database command runs; database work is strictly
	// sequential, so no second command starts until it is cleared.
	busy      bool
	busyLabel string
	spinner   spinner.Model

	status     string
	statusKind dblib.MessageKind

	help     help.Model
	showHelp bool
	width    int
	height   int

	initialTable string
}

func NewModel(ctx context.Context, cfg *Config, session *dblib.Session, reconciler *dblib.Reconciler, surface *teaSurface, tables []string) Model {
	editor := textinput.New()
	editor.Prompt = ""
	editor.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:        ctx,
		cfg:        cfg,
		session:    session,
		reconciler: reconciler,
		surface:    surface,
		tables:     tables,
		expanded:   make(map[string][]dblib.Column),
		editor:     editor,
		spinner:    sp,
		help:       help.New(),
		status:     fmt.Sprintf("%d tables", len(tables)),
	}
}

// Messages produced by database commands.
type (
	openTableMsg struct{ table string }
	columnsLoadedMsg struct {
		table   string
		columns []dblib.Column
		err     error
	}
	opDoneMsg struct {
		op  string
		err error
	}
	progressMsg struct{ done, total int }

	reconnectedMsg struct {
		tables []string
		err    error
	}

	// Follow-ups of local modals.
	reloadMsg      struct{ table string }
	closeTabMsg    struct{ table string }
	insertMsg      struct{ table string }
	deleteMsg      struct{ table string }
	reconnectMsg   struct{}
	bulkRequestMsg struct {
		table string
		col   int
		mode  dblib.BulkMode
		value string
	}
	bulkFormMsg struct {
		table string
		col   int
	}
)

func (m Model) Init() tea.Cmd {
	if m.initialTable != "" {
		table := m.initialTable
		return func() tea.Msg { return openTableMsg{table: table} }
	}
	return nil
}

// run starts fn as the single in-flight database command.
func (m *Model) run(label string, fn func(ctx context.Context) error) tea.Cmd {
	m.busy = true
	m.busyLabel = label
	if breadcrumbs != nil {
		breadcrumbs.RecordDatabase(label)
	}
	ctx := m.ctx
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return opDoneMsg{op: label, err: fn(ctx)}
	})
}

func (m *Model) setStatus(kind dblib.MessageKind, text string) {
	m.statusKind = kind
	m.status = text
}

func (m Model) currentTab() *tab {
	if m.active < 0 || m.active >= len(m.tabs) {
		return nil
	}
	return m.tabs[m.active]
}

func (m Model) pendingEdits() int {
	n := 0
	for _, t := range m.tabs {
		n += m.reconciler.Staging().Len(t.table)
	}
	return n
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMsg:
		m.setStatus(msg.kind, msg.text)
		return m, nil

	case progressMsg:
		m.setStatus(dblib.MessageInfo, fmt.Sprintf("%s %d/%d", m.busyLabel, msg.done, msg.total))
		return m, nil

	case formRequestMsg:
		md := newFormModal(msg.title, msg.fields, nil)
		md.formReply = msg.reply
		m.modal = md
		return m, textinput.Blink

	case confirmRequestMsg:
		md := newConfirmModal(msg.text)
		md.confirmReply = msg.reply
		m.modal = md
		return m, nil

	case opDoneMsg:
		m.busy = false
		m.busyLabel = ""
		if msg.err != nil {
			m.session.Logger().Info("operation failed", "op", msg.op, "error", msg.err.Error())
			if !errors.Is(msg.err, dblib.ErrNoSelection) && !errors.Is(msg.err, dblib.ErrNoRowsAffected) {
				CaptureError(msg.err)
			}
		}
		if t := m.currentTab(); t != nil {
			m.afterLoad(t)
		}
		return m, nil

	case openTableMsg:
		return m.openTable(msg.table)

	case reloadMsg:
		if m.busy {
			return m, nil
		}
		return m, m.reload(msg.table)

	case closeTabMsg:
		m.closeTab(msg.table)
		return m, nil

	case insertMsg:
		if m.busy {
			return m, nil
		}
		return m, m.insertRow(msg.table)

	case deleteMsg:
		if m.busy {
			return m, nil
		}
		return m, m.deleteRow(msg.table)

	case bulkFormMsg:
		if m.busy {
			return m, nil
		}
		m.openBulkForm(msg.table, msg.col)
		return m, textinput.Blink

	case reconnectMsg:
		if m.busy {
			return m, nil
		}
		return m, m.reconnect()

	case reconnectedMsg:
		m.busy = false
		m.busyLabel = ""
		for _, t := range m.tabs {
			m.surface.Drop(t.table)
		}
		m.tabs = nil
		m.active = 0
		m.focus = paneTree
		m.expanded = make(map[string][]dblib.Column)
		m.treeCursor, m.treeOffset = 0, 0
		if msg.err != nil {
			m.tables = nil
			CaptureError(msg.err)
			return m, nil
		}
		m.tables = msg.tables
		return m, nil

	case bulkRequestMsg:
		if m.busy {
			return m, nil
		}
		return m, m.bulkEdit(msg.table, msg.col, msg.mode, msg.value)

	case columnsLoadedMsg:
		if msg.err != nil {
			m.setStatus(dblib.MessageError, msg.err.Error())
			return m, nil
		}
		m.expanded[msg.table] = msg.columns
		return m, nil

	case tea.KeyMsg:
		if breadcrumbs != nil && !m.editing && m.modal == nil {
			breadcrumbs.RecordKeyboard(msg.String())
		}
		if m.modal != nil {
			return m.updateModal(msg)
		}
		if m.editing {
			return m.updateEditor(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	res, cmd := m.modal.update(msg)
	if res == modalPending {
		return m, cmd
	}
	md := m.modal
	m.modal = nil
	return m, md.finish(res)
}

func (m Model) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t := m.currentTab()
	switch {
	case msg.String() == "esc":
		m.editing = false
		m.editor.Blur()
		return m, nil
	case key.Matches(msg, keys.SetNull):
		m.editor.SetValue(dblib.NullGlyph)
		m.editor.CursorEnd()
		return m, nil
	case msg.String() == "enter":
		m.editing = false
		m.editor.Blur()
		if t == nil {
			return m, nil
		}
		row := m.surface.SelectedRow(t.table)
		old, ok := m.surface.CellText(t.table, row, t.col)
		text := m.editor.Value()
		if !ok || text == old {
			return m, nil
		}
		table, col := t.table, t.col
		m.surface.UpdateCell(table, row, col, text)
		return m, m.run("edit", func(ctx context.Context) error {
			err := m.reconciler.RecordEdit(ctx, table, row, col, text)
			if err != nil {
				m.surface.UpdateCell(table, row, col, old)
				m.surface.ShowMessage(dblib.MessageError, "Edit not recorded: "+err.Error())
				return err
			}
			n := m.reconciler.Staging().Len(table)
			m.surface.ShowMessage(dblib.MessageInfo, fmt.Sprintf("%d unsaved change(s) in %s, ^s to save", n, table))
			return nil
		})
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		if n := m.pendingEdits(); n > 0 {
			md := newConfirmModal(fmt.Sprintf("Quit and discard %d unsaved change(s)?", n))
			md.onConfirm = func() tea.Cmd { return tea.Quit }
			m.modal = md
			return m, nil
		}
		return m, tea.Quit
	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil
	case key.Matches(msg, keys.Reconnect):
		if m.busy {
			return m, nil
		}
		if n := m.pendingEdits(); n > 0 {
			md := newConfirmModal(fmt.Sprintf("Reconnect and discard %d unsaved change(s)?", n))
			md.onConfirm = func() tea.Cmd {
				return func() tea.Msg { return reconnectMsg{} }
			}
			m.modal = md
			return m, nil
		}
		return m, m.reconnect()
	case key.Matches(msg, keys.Pane):
		if m.focus == paneTree && len(m.tabs) > 0 {
			m.focus = paneGrid
		} else {
			m.focus = paneTree
		}
		return m, nil
	case key.Matches(msg, keys.NextTab):
		if len(m.tabs) > 0 {
			m.active = (m.active + 1) % len(m.tabs)
		}
		return m, nil
	case key.Matches(msg, keys.PrevTab):
		if len(m.tabs) > 0 {
			m.active = (m.active - 1 + len(m.tabs)) % len(m.tabs)
		}
		return m, nil
	}

	if m.focus == paneTree {
		return m.updateTree(msg)
	}
	return m.updateGrid(msg)
}

func (m Model) treeItems() []treeItem {
	var items []treeItem
	for _, name := range m.tables {
		items = append(items, treeItem{table: name})
		for i := range m.expanded[name] {
			items = append(items, treeItem{table: name, column: &m.expanded[name][i]})
		}
	}
	return items
}

func (m Model) updateTree(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.treeItems()
	if len(items) == 0 {
		return m, nil
	}
	switch {
	case key.Matches(msg, keys.Up):
		m.treeCursor = max(m.treeCursor-1, 0)
	case key.Matches(msg, keys.Down):
		m.treeCursor = min(m.treeCursor+1, len(items)-1)
	case key.Matches(msg, keys.Home):
		m.treeCursor = 0
	case key.Matches(msg, keys.End):
		m.treeCursor = len(items) - 1
	case key.Matches(msg, keys.Right), key.Matches(msg, keys.Left):
		item := items[m.treeCursor]
		if _, open := m.expanded[item.table]; open {
			delete(m.expanded, item.table)
			m.treeCursor = m.indexOfTable(item.table)
			return m, nil
		}
		if m.busy {
			return m, nil
		}
		table := item.table
		session := m.session
		ctx := m.ctx
		return m, func() tea.Msg {
			cols, err := session.Columns(ctx, table)
			return columnsLoadedMsg{table: table, columns: cols, err: err}
		}
	case key.Matches(msg, keys.Open):
		return m.openTable(items[m.treeCursor].table)
	}
	m.scrollTree()
	return m, nil
}

func (m Model) indexOfTable(table string) int {
	for i, item := range m.treeItems() {
		if item.column == nil && item.table == table {
			return i
		}
	}
	return 0
}

func (m *Model) scrollTree() {
	h := m.bodyHeight()
	if m.treeCursor < m.treeOffset {
		m.treeOffset = m.treeCursor
	}
	if h > 0 && m.treeCursor >= m.treeOffset+h {
		m.treeOffset = m.treeCursor - h + 1
	}
}

func (m Model) openTable(table string) (tea.Model, tea.Cmd) {
	for i, t := range m.tabs {
		if t.table == table {
			m.active = i
			m.focus = paneGrid
			return m, nil
		}
	}
	if m.busy {
		m.setStatus(dblib.MessageWarning, "Busy, try again")
		return m, nil
	}
	if breadcrumbs != nil {
		breadcrumbs.RecordNavigation(table)
	}
	m.tabs = append(m.tabs, &tab{table: table})
	m.active = len(m.tabs) - 1
	m.focus = paneGrid
	r := m.reconciler
	return m, m.run("open "+table, func(ctx context.Context) error {
		_, err := r.Load(ctx, table)
		return err
	})
}

// afterLoad selects the first row of a freshly loaded table and keeps the
// cursor inside the grid.
func (m *Model) afterLoad(t *tab) {
	rows := m.surface.RowCount(t.table)
	if rows > 0 && m.surface.SelectedRow(t.table) < 0 {
		m.surface.Select(t.table, 0)
	}
	if cols := len(m.surface.Columns(t.table)); t.col >= cols {
		t.col = max(cols-1, 0)
	}
	m.scrollGrid(t)
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t := m.currentTab()
	if t == nil {
		return m, nil
	}
	table := t.table
	rows := m.surface.RowCount(table)
	cols := len(m.surface.Columns(table))
	row := m.surface.SelectedRow(table)
	page := max(m.bodyHeight()-2, 1)

	switch {
	case key.Matches(msg, keys.Up):
		m.surface.Select(table, max(row-1, 0))
	case key.Matches(msg, keys.Down):
		m.surface.Select(table, min(row+1, rows-1))
	case key.Matches(msg, keys.PageUp):
		m.surface.Select(table, max(row-page, 0))
	case key.Matches(msg, keys.PageDown):
		m.surface.Select(table, min(row+page, rows-1))
	case key.Matches(msg, keys.Left):
		t.col = max(t.col-1, 0)
	case key.Matches(msg, keys.Right):
		t.col = min(t.col+1, max(cols-1, 0))
	case key.Matches(msg, keys.Home):
		t.col = 0
	case key.Matches(msg, keys.End):
		t.col = max(cols-1, 0)

	case key.Matches(msg, keys.Edit):
		if m.busy || row < 0 || cols == 0 {
			return m, nil
		}
		text, _ := m.surface.CellText(table, row, t.col)
		m.editor.SetValue(text)
		m.editor.CursorEnd()
		m.editing = true
		return m, m.editor.Focus()

	case key.Matches(msg, keys.Save):
		if m.busy {
			return m, nil
		}
		r := m.reconciler
		return m, m.run("save", func(ctx context.Context) error {
			_, err := r.Commit(ctx, table)
			return err
		})

	case key.Matches(msg, keys.Insert):
		if m.busy {
			return m, nil
		}
		if m.confirmDiscard(table, "Insert a row", insertMsg{table: table}) {
			return m, nil
		}
		return m, m.insertRow(table)

	case key.Matches(msg, keys.Delete):
		if m.busy {
			return m, nil
		}
		if m.confirmDiscard(table, "Delete a row", deleteMsg{table: table}) {
			return m, nil
		}
		return m, m.deleteRow(table)

	case key.Matches(msg, keys.Bulk):
		if m.busy || cols == 0 {
			return m, nil
		}
		if m.confirmDiscard(table, "Bulk edit", bulkFormMsg{table: table, col: t.col}) {
			return m, nil
		}
		m.openBulkForm(table, t.col)
		return m, textinput.Blink

	case key.Matches(msg, keys.Reload):
		if m.busy {
			return m, nil
		}
		if n := m.reconciler.Staging().Len(table); n > 0 {
			md := newConfirmModal(fmt.Sprintf("Reload %s and discard %d unsaved change(s)?", table, n))
			md.onConfirm = func() tea.Cmd {
				return func() tea.Msg { return reloadMsg{table: table} }
			}
			m.modal = md
			return m, nil
		}
		return m, m.reload(table)

	case key.Matches(msg, keys.CloseTab):
		if m.busy {
			return m, nil
		}
		if n := m.reconciler.Staging().Len(table); n > 0 {
			md := newConfirmModal(fmt.Sprintf("Close %s and discard %d unsaved change(s)?", table, n))
			md.onConfirm = func() tea.Cmd {
				return func() tea.Msg { return closeTabMsg{table: table} }
			}
			m.modal = md
			return m, nil
		}
		m.closeTab(table)
		return m, nil
	}
	m.scrollGrid(t)
	return m, nil
}

// confirmDiscard asks before an action that reloads table while it has
// staged edits, since the reload drops them. It reports whether a question
// was opened; follow is sent when the user agrees.
func (m *Model) confirmDiscard(table, action string, follow tea.Msg) bool {
	n := m.reconciler.Staging().Len(table)
	if n == 0 {
		return false
	}
	md := newConfirmModal(fmt.Sprintf("%s reloads %s and discards %d unsaved change(s). Continue?", action, table, n))
	md.onConfirm = func() tea.Cmd {
		return func() tea.Msg { return follow }
	}
	m.modal = md
	return true
}

func (m *Model) openBulkForm(table string, col int) {
	columns := m.surface.Columns(table)
	if col < 0 || col >= len(columns) {
		return
	}
	md := newFormModal(fmt.Sprintf("Bulk edit %s.%s", table, columns[col]), []string{"mode", "value"},
		map[string]string{"mode": dblib.BulkReplace.String()})
	md.onSubmit = func(values map[string]string) tea.Cmd {
		mode, err := dblib.ParseBulkMode(values["mode"])
		if err != nil {
			return func() tea.Msg { return statusMsg{kind: dblib.MessageError, text: err.Error()} }
		}
		return func() tea.Msg { return bulkRequestMsg{table: table, col: col, mode: mode, value: values["value"]} }
	}
	m.modal = md
}

func (m *Model) insertRow(table string) tea.Cmd {
	r := m.reconciler
	return m.run("insert", func(ctx context.Context) error {
		_, err := r.InsertRow(ctx, table)
		return err
	})
}

func (m *Model) deleteRow(table string) tea.Cmd {
	r := m.reconciler
	return m.run("delete", func(ctx context.Context) error {
		return r.DeleteRow(ctx, table)
	})
}

// reconnect reopens the database from the current configuration. The tree
// and tabs are rebuilt from the new connection.
func (m *Model) reconnect() tea.Cmd {
	m.busy = true
	m.busyLabel = "reconnect"
	if breadcrumbs != nil {
		breadcrumbs.RecordDatabase("reconnect")
	}
	r, cfg, ctx := m.reconciler, m.cfg, m.ctx
	logger := m.session.Logger()
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		opts, err := cfg.Options(logger)
		if err != nil {
			return reconnectedMsg{err: err}
		}
		tables, err := r.Reconnect(ctx, opts)
		return reconnectedMsg{tables: tables, err: err}
	})
}

func (m *Model) closeTab(table string) {
	m.reconciler.Discard(table)
	m.surface.Drop(table)
	for i, t := range m.tabs {
		if t.table == table {
			m.tabs = append(m.tabs[:i], m.tabs[i+1:]...)
			break
		}
	}
	if m.active >= len(m.tabs) {
		m.active = len(m.tabs) - 1
	}
	if len(m.tabs) == 0 {
		m.focus = paneTree
	}
}

func (m *Model) reload(table string) tea.Cmd {
	r := m.reconciler
	return m.run("reload", func(ctx context.Context) error {
		_, err := r.Reload(ctx, table)
		return err
	})
}

// bulkEdit runs a bulk edit, reporting progress to the status bar.
func (m *Model) bulkEdit(table string, col int, mode dblib.BulkMode, value string) tea.Cmd {
	r := m.reconciler
	s := m.surface
	return m.run("bulk "+mode.String(), func(ctx context.Context) error {
		_, err := r.BulkEdit(ctx, table, col, mode, value, dblib.WithProgress(func(done, total int) {
			if done%50 == 0 || done == total {
				s.send(progressMsg{done: done, total: total})
			}
		}))
		return err
	})
}
