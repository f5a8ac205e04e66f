package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type modalKind int

const (
	modalForm modalKind = iota
	modalConfirm
)

type modalResult int

const (
	modalPending modalResult = iota
	modalAccepted
	modalCancelled
)

// modal is a blocking form or yes/no question. Requests coming from the
// reconciler carry a reply channel; local ones carry callbacks.
type modal struct {
	kind   modalKind
	title  string
	text   string
	fields []string
	inputs []textinput.Model
	focus  int

	formReply    chan formReply
	confirmReply chan bool

	onSubmit  func(values map[string]string) tea.Cmd
	onConfirm func() tea.Cmd
}

func newFormModal(title string, fields []string, initial map[string]string) *modal {
	md := &modal{kind: modalForm, title: title, fields: fields}
	width := 0
	for _, f := range fields {
		width = max(width, len(f))
	}
	for i, f := range fields {
		ti := textinput.New()
		ti.Prompt = fmt.Sprintf("%-*s  ", width, f)
		ti.CharLimit = 0
		ti.Width = 40
		ti.SetValue(initial[f])
		if i == 0 {
			ti.Focus()
		}
		md.inputs = append(md.inputs, ti)
	}
	return md
}

func newConfirmModal(text string) *modal {
	return &modal{kind: modalConfirm, title: "Confirm", text: text}
}

func (md *modal) values() map[string]string {
	out := make(map[string]string, len(md.fields))
	for i, f := range md.fields {
		out[f] = md.inputs[i].Value()
	}
	return out
}

func (md *modal) setFocus(i int) {
	if len(md.inputs) == 0 {
		return
	}
	md.inputs[md.focus].Blur()
	md.focus = (i + len(md.inputs)) % len(md.inputs)
	md.inputs[md.focus].Focus()
}

func (md *modal) update(msg tea.KeyMsg) (modalResult, tea.Cmd) {
	if md.kind == modalConfirm {
		switch msg.String() {
		case "y", "Y", "enter":
			return modalAccepted, nil
		case "n", "N", "esc", "ctrl+c":
			return modalCancelled, nil
		}
		return modalPending, nil
	}

	switch msg.String() {
	case "esc", "ctrl+c":
		return modalCancelled, nil
	case "enter":
		if md.focus == len(md.inputs)-1 {
			return modalAccepted, nil
		}
		md.setFocus(md.focus + 1)
		return modalPending, nil
	case "ctrl+s":
		return modalAccepted, nil
	case "tab", "down":
		md.setFocus(md.focus + 1)
		return modalPending, nil
	case "shift+tab", "up":
		md.setFocus(md.focus - 1)
		return modalPending, nil
	}
	if len(md.inputs) == 0 {
		return modalPending, nil
	}
	var cmd tea.Cmd
	md.inputs[md.focus], cmd = md.inputs[md.focus].Update(msg)
	return modalPending, cmd
}

// finish answers the requester and returns the follow-up command, if any.
func (md *modal) finish(res modalResult) tea.Cmd {
	accepted := res == modalAccepted
	switch md.kind {
	case modalForm:
		if md.formReply != nil {
			if accepted {
				md.formReply <- formReply{values: md.values(), ok: true}
			} else {
				md.formReply <- formReply{}
			}
			return nil
		}
		if accepted && md.onSubmit != nil {
			return md.onSubmit(md.values())
		}
	case modalConfirm:
		if md.confirmReply != nil {
			md.confirmReply <- accepted
			return nil
		}
		if accepted && md.onConfirm != nil {
			return md.onConfirm()
		}
	}
	return nil
}

func (md *modal) view(width int) string {
	var b strings.Builder
	b.WriteString(modalTitleStyle.Render(md.title))
	b.WriteString("\n\n")
	switch md.kind {
	case modalConfirm:
		b.WriteString(md.text)
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("y yes · n no"))
	case modalForm:
		for _, in := range md.inputs {
			b.WriteString(in.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(fmt.Sprintf("enter next · ^s submit · esc cancel · %s for null", nullHint)))
	}
	return modalStyle.Width(min(width-4, 72)).Render(b.String())
}

var (
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)
	modalTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
)
