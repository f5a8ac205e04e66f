package main

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"mdbed/internal/dblib"
)

// Messages sent by the surface into the program.
type (
	statusMsg struct {
		kind dblib.MessageKind
		text string
	}
	formRequestMsg struct {
		title  string
		fields []string
		reply  chan formReply
	}
	confirmRequestMsg struct {
		text  string
		reply chan bool
	}
)

type formReply struct {
	values map[string]string
	ok     bool
}

// sender is the part of *tea.Program the surface needs.
type sender interface {
	Send(msg tea.Msg)
}

// teaSurface connects the reconciler to the bubbletea program. The grid is
// shared with the model; prompts block the calling command goroutine until
// the model answers through the reply channel.
type teaSurface struct {
	*dblib.Grid

	mu sync.Mutex
	p  sender
}

func newTeaSurface() *teaSurface {
	return &teaSurface{Grid: dblib.NewGrid()}
}

func (s *teaSurface) attach(p sender) {
	s.mu.Lock()
	s.p = p
	s.mu.Unlock()
}

func (s *teaSurface) send(msg tea.Msg) bool {
	s.mu.Lock()
	p := s.p
	s.mu.Unlock()
	if p == nil {
		return false
	}
	p.Send(msg)
	return true
}

func (s *teaSurface) ShowMessage(kind dblib.MessageKind, text string) {
	s.send(statusMsg{kind: kind, text: text})
}

func (s *teaSurface) PromptForm(title string, fields []string) (map[string]string, bool) {
	reply := make(chan formReply, 1)
	if !s.send(formRequestMsg{title: title, fields: fields, reply: reply}) {
		return nil, false
	}
	r := <-reply
	return r.values, r.ok
}

func (s *teaSurface) PromptConfirm(text string) bool {
	reply := make(chan bool, 1)
	if !s.send(confirmRequestMsg{text: text, reply: reply}) {
		return false
	}
	return <-reply
}
