package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/temporal/internal/weekdlg"
)

type showDialogMsg struct {
	form   weekdlg.Form
	submit weekdlg.SubmitFunc
}

type notifyMsg struct {
	note weekdlg.Notification
}

// Host forwards dialog requests into a running Bubble Tea program.
// It must not be called from the program's Update loop.
type Host struct {
	send func(tea.Msg)
}

// NewHost creates a Host around send, usually (*tea.Program).Send.
func NewHost(send func(tea.Msg)) *Host {
	return &Host{send: send}
}

// Show opens form as a modal.
func (h *Host) Show(form weekdlg.Form, submit weekdlg.SubmitFunc) error {
	h.send(showDialogMsg{form: form, submit: submit})
	return nil
}

// Notify appends n to the notification pane.
func (h *Host) Notify(n weekdlg.Notification) {
	h.send(notifyMsg{note: n})
}
