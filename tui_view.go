package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"mdbed/internal/dblib"
)

const (
	treeWidth      = 28
	maxColumnWidth = 30
	minColumnWidth = 3
	// title, tab bar, grid header, status, help
	chromeHeight = 5
)

var nullHint = dblib.NullGlyph

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62")).Padding(0, 1)
	headerStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	cursorStyle    = lipgloss.NewStyle().Reverse(true)
	selectedStyle  = lipgloss.NewStyle().Background(lipgloss.Color("236"))
	modifiedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	nullStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
	keyColumnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	tabStyle       = lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("245"))
	activeTabStyle = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	treeStyle      = lipgloss.NewStyle().Width(treeWidth).BorderStyle(lipgloss.NormalBorder()).BorderRight(true).BorderForeground(lipgloss.Color("238"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyles   = map[dblib.MessageKind]lipgloss.Style{
		dblib.MessageInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
		dblib.MessageWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		dblib.MessageError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

func (m Model) bodyHeight() int {
	return max(m.height-chromeHeight, 1)
}

func (m Model) gridWidth() int {
	return max(m.width-treeWidth-1, 10)
}

// displayText renders cell text on one line.
func displayText(s string) string {
	if s == dblib.NullGlyph {
		return dblib.NullDisplay
	}
	return strings.NewReplacer("\r\n", "↵", "\n", "↵", "\t", " ").Replace(s)
}

// columnWidths sizes each column to its header and the rows in view.
func (m Model) columnWidths(t *tab, columns []string, rows [][]string) []int {
	widths := make([]int, len(columns))
	end := min(t.rowOffset+m.bodyHeight(), len(rows))
	for i, c := range columns {
		w := runewidth.StringWidth(c)
		for r := t.rowOffset; r < end; r++ {
			if i < len(rows[r]) {
				w = max(w, runewidth.StringWidth(displayText(rows[r][i])))
			}
		}
		widths[i] = min(max(w, minColumnWidth), maxColumnWidth)
	}
	return widths
}

// lastVisibleColumn returns the last column that fits when drawing from
// offset.
func lastVisibleColumn(widths []int, offset, width int) int {
	used := 0
	last := offset
	for i := offset; i < len(widths); i++ {
		used += widths[i] + 1
		if used > width && i > offset {
			break
		}
		last = i
	}
	return last
}

// scrollGrid keeps the cursor cell of t in view.
func (m *Model) scrollGrid(t *tab) {
	row := m.surface.SelectedRow(t.table)
	h := m.bodyHeight() - 1
	if row >= 0 {
		if row < t.rowOffset {
			t.rowOffset = row
		}
		if h > 0 && row >= t.rowOffset+h {
			t.rowOffset = row - h + 1
		}
	}
	if t.col < t.colOffset {
		t.colOffset = t.col
	}
	widths := m.columnWidths(t, m.surface.Columns(t.table), m.surface.Rows(t.table))
	for t.colOffset < t.col && lastVisibleColumn(widths, t.colOffset, m.gridWidth()) < t.col {
		t.colOffset++
	}
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := fmt.Sprintf("mdbed · %s · %s", m.cfg.DisplayName(), m.session.Type())
	if m.busy {
		title += " " + m.spinner.View() + " " + m.busyLabel
	}
	header := titleStyle.Width(m.width).Render(title)

	right := m.renderTabs() + "\n" + m.renderGrid()
	if m.modal != nil {
		right = lipgloss.Place(m.gridWidth(), m.bodyHeight()+1, lipgloss.Center, lipgloss.Center, m.modal.view(m.gridWidth()))
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		treeStyle.Height(m.bodyHeight()+1).Render(m.renderTree()),
		right,
	)

	style, ok := statusStyles[m.statusKind]
	if !ok {
		style = statusStyles[dblib.MessageInfo]
	}
	status := style.Render(runewidth.Truncate(strings.ReplaceAll(m.status, "\n", " · "), m.width, "…"))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, status, m.help.View(keys))
}

func (m Model) renderTree() string {
	items := m.treeItems()
	h := m.bodyHeight() + 1
	var b strings.Builder
	for i := m.treeOffset; i < len(items) && i < m.treeOffset+h; i++ {
		item := items[i]
		var line string
		if item.column == nil {
			marker := "▸ "
			if _, open := m.expanded[item.table]; open {
				marker = "▾ "
			}
			line = marker + item.table
		} else {
			line = "   " + item.column.Name + " " + strings.ToLower(item.column.Type)
		}
		line = runewidth.Truncate(line, treeWidth-1, "…")
		if i == m.treeCursor && m.focus == paneTree {
			line = cursorStyle.Render(runewidth.FillRight(line, treeWidth-1))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) renderTabs() string {
	if len(m.tabs) == 0 {
		return helpStyle.Render("select a table and press enter")
	}
	parts := make([]string, len(m.tabs))
	for i, t := range m.tabs {
		label := t.table
		if n := m.reconciler.Staging().Len(t.table); n > 0 {
			label += fmt.Sprintf(" ●%d", n)
		}
		if i == m.active {
			parts[i] = activeTabStyle.Render(label)
		} else {
			parts[i] = tabStyle.Render(label)
		}
	}
	return runewidth.Truncate(strings.Join(parts, " "), m.gridWidth(), "…")
}

func (m Model) renderGrid() string {
	t := m.currentTab()
	if t == nil {
		return ""
	}
	columns := m.surface.Columns(t.table)
	if len(columns) == 0 {
		return helpStyle.Render("loading " + t.table + "...")
	}
	rows := m.surface.Rows(t.table)
	selected := m.surface.SelectedRow(t.table)
	widths := m.columnWidths(t, columns, rows)
	last := lastVisibleColumn(widths, t.colOffset, m.gridWidth())

	kd, _ := m.reconciler.Resolver().Cached(t.table)
	staging := m.reconciler.Staging()

	var b strings.Builder
	for c := t.colOffset; c <= last; c++ {
		cell := runewidth.FillRight(runewidth.Truncate(columns[c], widths[c], "…"), widths[c])
		style := headerStyle
		if kd.Contains(columns[c]) {
			style = style.Inherit(keyColumnStyle)
		}
		b.WriteString(style.Render(cell))
		b.WriteString(" ")
	}
	b.WriteString("\n")

	h := m.bodyHeight() - 1
	for r := t.rowOffset; r < len(rows) && r < t.rowOffset+h; r++ {
		for c := t.colOffset; c <= last; c++ {
			raw := ""
			if c < len(rows[r]) {
				raw = rows[r][c]
			}
			var cell string
			if m.editing && r == selected && c == t.col && m.focus == paneGrid {
				cell = runewidth.FillRight(runewidth.Truncate(m.editor.Value(), widths[c]-1, "…")+"▏", widths[c])
				b.WriteString(cursorStyle.Render(cell))
				b.WriteString(" ")
				continue
			}
			cell = runewidth.FillRight(runewidth.Truncate(displayText(raw), widths[c], "…"), widths[c])
			style := lipgloss.NewStyle()
			switch {
			case staging.Modified(t.table, r, c):
				style = modifiedStyle
			case raw == dblib.NullGlyph:
				style = nullStyle
			}
			if r == selected {
				style = style.Inherit(selectedStyle)
				if c == t.col && m.focus == paneGrid {
					style = style.Inherit(cursorStyle)
				}
			}
			b.WriteString(style.Render(cell))
			b.WriteString(" ")
		}
		b.WriteString("\n")
	}
	if len(rows) == 0 {
		b.WriteString(helpStyle.Render("no rows · ^n to insert"))
	}
	return strings.TrimSuffix(b.String(), "\n")
}
