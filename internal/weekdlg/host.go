package weekdlg

import (
	"context"
	"encoding/json"
)

// Field is one integer input of the form.
type Field struct {
	Name  string
	Label string
	Value string
}

// Form describes a modal dialog.
type Form struct {
	Title       string
	SubmitLabel string
	CancelLabel string
	Fields      []Field
}

// Dialog is the handle of a shown form.
type Dialog interface {
	Hide()
}

// SubmitFunc is called when the user confirms the form. A non-nil error
// keeps the dialog open; a *FieldError is reported next to its field.
type SubmitFunc func(dlg Dialog, values map[string]string) error

// Level classifies notifications.
type Level int

const (
	LevelInfo Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "info"
}

// Notification is a dismissible message shown by the host.
type Notification struct {
	Level Level
	Title string
	Body  string
}

// Host provides the UI primitives the dialog needs. Notify may be called
// from any goroutine.
type Host interface {
	Show(form Form, submit SubmitFunc) error
	Notify(n Notification)
}

// Localizer resolves user-facing strings by key.
type Localizer interface {
	T(key string) string
}

// Caller invokes a remote procedure and returns its message payload.
type Caller interface {
	Call(ctx context.Context, method string, args map[string]any) (json.RawMessage, error)
}
