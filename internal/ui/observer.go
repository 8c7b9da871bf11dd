package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/postboard/internal/controller"
)

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Observer forwards controller output to a Bubble Tea program.
// Send is safe from any goroutine, so the controller can notify inline.
type Observer struct {
	sender Sender
}

// NewObserver creates an observer that sends to s.
func NewObserver(s Sender) *Observer {
	return &Observer{sender: s}
}

// PostsChanged implements controller.Observer.
func (o *Observer) PostsChanged(snap controller.Snapshot) {
	o.sender.Send(PostsChanged{Snap: snap})
}

// FetchFailed implements controller.Observer.
func (o *Observer) FetchFailed(message string) {
	o.sender.Send(FetchFailed{Message: message})
}

var _ controller.Observer = (*Observer)(nil)
