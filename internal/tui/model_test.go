package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/goleak"

	"github.com/verte-zerg/temporal/internal/weekdlg"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type keyLocalizer struct{}

func (keyLocalizer) T(key string) string { return key }

type capture struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (c *capture) send(msg tea.Msg) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msg)
	c.mu.Unlock()
}

func (c *capture) drain() []tea.Msg {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.msgs
	c.msgs = nil
	return out
}

type stubCaller struct {
	payload json.RawMessage
	err     error
}

func (s stubCaller) Call(context.Context, string, map[string]any) (json.RawMessage, error) {
	return s.payload, s.err
}

const twoWeeks = `"[{\"year\":2024,\"week_number\":1,\"week_start\":\"2023-12-31\",\"week_end\":\"2024-01-06\",\"week_dates\":[]},{\"year\":2024,\"week_number\":2,\"week_start\":\"2024-01-07\",\"week_end\":\"2024-01-13\",\"week_dates\":[]}]"`

func newTestModel(t *testing.T, caller weekdlg.Caller) (*Model, *weekdlg.WeekDialog, *capture) {
	t.Helper()
	c := &capture{}
	d := weekdlg.New(NewHost(c.send), keyLocalizer{}, caller, weekdlg.Options{
		Prefill: true,
		Now:     func() time.Time { return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC) },
	})
	m := NewModel(Options{
		Localizer: keyLocalizer{},
		Open:      func() error { return d.Open(nil) },
	})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return m, d, c
}

func feed(m *Model, msgs []tea.Msg) {
	for _, msg := range msgs {
		m.Update(msg)
	}
}

func pressRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func openDialog(t *testing.T, m *Model, c *capture) {
	t.Helper()
	_, cmd := m.Update(pressRunes("w"))
	if cmd == nil {
		t.Fatalf("expected open command")
	}
	if msg := cmd(); msg != nil {
		t.Fatalf("unexpected message from open: %#v", msg)
	}
	feed(m, c.drain())
	if !m.DialogOpen() {
		t.Fatalf("expected dialog to be open")
	}
}

func TestSubmitHidesDialogAndShowsTable(t *testing.T) {
	m, d, c := newTestModel(t, stubCaller{payload: json.RawMessage(twoWeeks)})
	openDialog(t, m, c)

	if got := m.dialog.inputs[0].Value(); got != "2024" {
		t.Fatalf("expected prefilled year, got %q", got)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.DialogOpen() {
		t.Fatalf("dialog must close on submit")
	}
	d.Wait()
	feed(m, c.drain())

	notes := m.Notifications()
	if len(notes) != 1 || notes[0].Level != weekdlg.LevelInfo {
		t.Fatalf("expected one info notification, got %#v", notes)
	}
	view := m.View()
	if !containsAll(view, []string{"Year", "Week", "2023-12-31", "2024-01-13"}) {
		t.Fatalf("view missing week table:\n%s", view)
	}
}

func TestValidationErrorStaysInline(t *testing.T) {
	m, d, c := newTestModel(t, stubCaller{payload: json.RawMessage(twoWeeks)})
	openDialog(t, m, c)

	m.dialog.inputs[0].SetValue("")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	d.Wait()

	if !m.DialogOpen() {
		t.Fatalf("dialog must stay open on validation error")
	}
	if !strings.Contains(m.View(), weekdlg.KeyRequired) {
		t.Fatalf("expected inline error in view:\n%s", m.View())
	}
	if msgs := c.drain(); len(msgs) != 0 {
		t.Fatalf("unexpected messages: %#v", msgs)
	}
}

func TestRemoteErrorIsNotified(t *testing.T) {
	m, d, c := newTestModel(t, stubCaller{err: errors.New("connection refused")})
	openDialog(t, m, c)

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	d.Wait()
	feed(m, c.drain())

	notes := m.Notifications()
	if len(notes) != 1 || notes[0].Level != weekdlg.LevelError {
		t.Fatalf("expected one error notification, got %#v", notes)
	}
	if !strings.Contains(m.View(), "connection refused") {
		t.Fatalf("expected error body in view:\n%s", m.View())
	}
}

func TestEscapeCancelsWithoutCall(t *testing.T) {
	m, d, c := newTestModel(t, stubCaller{payload: json.RawMessage(twoWeeks)})
	openDialog(t, m, c)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	d.Wait()
	if m.DialogOpen() {
		t.Fatalf("dialog must close on escape")
	}
	if msgs := c.drain(); len(msgs) != 0 {
		t.Fatalf("unexpected messages: %#v", msgs)
	}
}

func TestDialogAcceptsOnlyIntegerRunes(t *testing.T) {
	m, _, c := newTestModel(t, stubCaller{})
	openDialog(t, m, c)

	m.dialog.inputs[0].SetValue("")
	m.Update(pressRunes("2a0b2x4"))
	if got := m.dialog.inputs[0].Value(); got != "2024" {
		t.Fatalf("expected filtered value 2024, got %q", got)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.dialog.index != 1 {
		t.Fatalf("expected focus on second field, got %d", m.dialog.index)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if m.dialog.index != 2 {
		t.Fatalf("expected focus to wrap to last field, got %d", m.dialog.index)
	}
}

func TestOpenErrorShownInFooter(t *testing.T) {
	m := NewModel(Options{
		Localizer: keyLocalizer{},
		Open:      func() error { return errors.New("not connected") },
	})
	m.Update(tea.WindowSizeMsg{Width: 60, Height: 10})

	_, cmd := m.Update(pressRunes("w"))
	m.Update(cmd())
	if !strings.Contains(m.View(), "not connected") {
		t.Fatalf("expected status in footer:\n%s", m.View())
	}
}

func TestRefreshAndClear(t *testing.T) {
	refreshed := 0
	m := NewModel(Options{Localizer: keyLocalizer{}, Refresh: func() { refreshed++ }})
	m.Update(tea.WindowSizeMsg{Width: 60, Height: 10})
	m.Update(notifyMsg{note: weekdlg.Notification{Level: weekdlg.LevelInfo, Title: "t", Body: "plain text"}})

	m.Update(pressRunes("r"))
	if refreshed != 1 {
		t.Fatalf("expected refresh hook to run once, got %d", refreshed)
	}
	if !strings.Contains(m.View(), "plain text") {
		t.Fatalf("expected note body:\n%s", m.View())
	}
	m.Update(pressRunes("c"))
	if len(m.Notifications()) != 0 {
		t.Fatalf("expected notes cleared")
	}
	if !strings.Contains(m.View(), "app.empty") {
		t.Fatalf("expected empty placeholder:\n%s", m.View())
	}
}

func TestPushedShowKeepsOpenDialog(t *testing.T) {
	m, d, c := newTestModel(t, stubCaller{payload: json.RawMessage(twoWeeks)})
	openDialog(t, m, c)

	m.dialog.inputs[0].SetValue("")
	m.Update(pressRunes("2031"))
	id := m.dialog.id

	if err := d.Open(nil); err != nil {
		t.Fatalf("second open: %v", err)
	}
	msgs := c.drain()
	if len(msgs) != 1 {
		t.Fatalf("expected one show message, got %#v", msgs)
	}
	if _, cmd := m.Update(msgs[0]); cmd != nil {
		t.Fatalf("ignored show must not return a command")
	}

	if !m.DialogOpen() || m.dialog.id != id {
		t.Fatalf("expected dialog %d to stay open", id)
	}
	if got := m.dialog.inputs[0].Value(); got != "2031" {
		t.Fatalf("typed year was replaced, got %q", got)
	}
}

func TestFitLinesPadsAndTruncates(t *testing.T) {
	out := fitLines("ab\ncd\nef", 4, 2)
	if out != "ab  \ncd  " {
		t.Fatalf("unexpected output %q", out)
	}
	if got := truncateLine("abcdefgh", 6); got != "abc..." {
		t.Fatalf("unexpected truncation %q", got)
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
