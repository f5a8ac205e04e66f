package main

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Home     key.Binding
	End      key.Binding
	Open     key.Binding
	Edit     key.Binding
	SetNull  key.Binding
	Save     key.Binding
	Insert   key.Binding
	Delete   key.Binding
	Bulk     key.Binding
	Reload   key.Binding
	CloseTab key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	Pane     key.Binding
	Help     key.Binding
	Quit     key.Binding

	Reconnect key.Binding
}

var keys = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "left")),
	Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "right")),
	PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
	Home:     key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("home", "first")),
	End:      key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("end", "last")),
	Open:     key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "open")),
	Edit:     key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter", "edit")),
	SetNull:  key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("^x", "set null")),
	Save:     key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("^s", "save")),
	Insert:   key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("^n", "insert")),
	Delete:   key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("^d", "delete")),
	Bulk:     key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("^b", "bulk edit")),
	Reload:   key.NewBinding(key.WithKeys("ctrl+r", "f5"), key.WithHelp("^r", "reload")),
	CloseTab: key.NewBinding(key.WithKeys("ctrl+w"), key.WithHelp("^w", "close tab")),
	NextTab:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next tab")),
	PrevTab:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev tab")),
	Pane:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

	Reconnect: key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("^o", "reconnect")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Edit, k.Save, k.Insert, k.Delete, k.Bulk, k.Pane, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.PageUp, k.PageDown, k.Home, k.End},
		{k.Edit, k.SetNull, k.Save, k.Reload},
		{k.Insert, k.Delete, k.Bulk},
		{k.NextTab, k.PrevTab, k.CloseTab, k.Reconnect, k.Pane, k.Help, k.Quit},
	}
}
