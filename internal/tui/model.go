// Package tui provides the Bubble Tea host for the week dialog.
package tui

import (
	"errors"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/verte-zerg/temporal/internal/weekdlg"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	modalStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A")).
			Padding(1, 2)
)

// Options configures the interface.
type Options struct {
	Localizer weekdlg.Localizer
	// Open shows the week dialog. It runs outside the Update loop.
	Open func() error
	// Refresh runs the form-refresh hook.
	Refresh func()
	Logger  *zap.Logger
}

type openErrMsg struct {
	err error
}

type dialogState struct {
	id       int
	form     weekdlg.Form
	submit   weekdlg.SubmitFunc
	inputs   []textinput.Model
	index    int
	errField string
	errText  string
}

// dialogHandle hides the dialog it was created for. It is only used from
// within Update, so it mutates the model directly.
type dialogHandle struct {
	m  *Model
	id int
}

func (h dialogHandle) Hide() {
	if h.m.dialog != nil && h.m.dialog.id == h.id {
		h.m.dialog = nil
	}
}

// Model implements the Bubble Tea notification pane and dialog.
type Model struct {
	opts Options

	width  int
	height int

	dialog *dialogState
	nextID int

	notes    []weekdlg.Notification
	viewport viewport.Model
	status   string
}

// NewModel constructs the interface model.
func NewModel(opts Options) *Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	m := &Model{
		opts:     opts,
		viewport: viewport.New(0, 0),
	}
	m.renderNotes()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderNotes()
		return m, nil
	case showDialogMsg:
		if m.dialog != nil {
			// Keep the form the user is typing into.
			m.opts.Logger.Debug("dialog already open, ignoring show", zap.Int("dialog", m.dialog.id))
			return m, nil
		}
		return m, m.openDialog(msg.form, msg.submit)
	case notifyMsg:
		m.notes = append(m.notes, msg.note)
		m.renderNotes()
		m.viewport.GotoBottom()
		return m, nil
	case openErrMsg:
		m.status = msg.err.Error()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.dialog != nil {
			return m.updateDialog(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "w":
			m.status = ""
			return m, m.openCmd()
		case "r":
			if m.opts.Refresh != nil {
				m.opts.Refresh()
			}
			return m, nil
		case "c":
			m.notes = nil
			m.status = ""
			m.renderNotes()
			return m, nil
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	if m.dialog != nil {
		return fitLines(m.renderDialog(), m.width, m.height)
	}
	bodyHeight, footerHeight := m.layoutHeights()
	body := fitLines(m.viewport.View(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return body + "\n" + footer
}

// Notifications returns the notifications shown so far.
func (m *Model) Notifications() []weekdlg.Notification {
	return append([]weekdlg.Notification(nil), m.notes...)
}

// DialogOpen reports whether the modal is visible.
func (m *Model) DialogOpen() bool {
	return m.dialog != nil
}

func (m *Model) openCmd() tea.Cmd {
	open := m.opts.Open
	if open == nil {
		return nil
	}
	return func() tea.Msg {
		if err := open(); err != nil {
			return openErrMsg{err: err}
		}
		return nil
	}
}

func (m *Model) openDialog(form weekdlg.Form, submit weekdlg.SubmitFunc) tea.Cmd {
	m.nextID++
	state := &dialogState{
		id:     m.nextID,
		form:   form,
		submit: submit,
		inputs: make([]textinput.Model, 0, len(form.Fields)),
	}
	for _, f := range form.Fields {
		input := textinput.New()
		input.Prompt = f.Label + ": "
		input.CharLimit = 6
		input.Cursor.SetMode(cursor.CursorBlink)
		input.SetValue(f.Value)
		state.inputs = append(state.inputs, input)
	}
	m.dialog = state
	m.updateLayout()
	return m.setDialogIndex(0)
}

func (m *Model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.dialog = nil
		return m, nil
	case tea.KeyEnter:
		return m, m.submitDialog()
	case tea.KeyTab:
		return m, m.setDialogIndex(m.dialog.index + 1)
	case tea.KeyShiftTab:
		return m, m.setDialogIndex(m.dialog.index - 1)
	case tea.KeyRunes:
		msg.Runes = integerRunes(msg.Runes)
		if len(msg.Runes) == 0 {
			return m, nil
		}
	}
	if len(m.dialog.inputs) == 0 {
		return m, nil
	}
	var cmd tea.Cmd
	d := m.dialog
	d.inputs[d.index], cmd = d.inputs[d.index].Update(msg)
	return m, cmd
}

func (m *Model) submitDialog() tea.Cmd {
	d := m.dialog
	values := make(map[string]string, len(d.form.Fields))
	for i, f := range d.form.Fields {
		values[f.Name] = d.inputs[i].Value()
	}
	err := d.submit(dialogHandle{m: m, id: d.id}, values)
	if err == nil {
		return nil
	}
	if m.dialog != d {
		m.opts.Logger.Warn("submit failed after dialog closed", zap.Error(err))
		return nil
	}
	var fe *weekdlg.FieldError
	if errors.As(err, &fe) {
		d.errField = fe.Field
		d.errText = m.t(fe.Key)
		for i, f := range d.form.Fields {
			if f.Name == fe.Field {
				return m.setDialogIndex(i)
			}
		}
		return nil
	}
	d.errField = ""
	d.errText = err.Error()
	return nil
}

func (m *Model) setDialogIndex(idx int) tea.Cmd {
	d := m.dialog
	count := len(d.inputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	d.index = idx
	var cmd tea.Cmd
	for i := range d.inputs {
		if i == d.index {
			cmd = d.inputs[i].Focus()
		} else {
			d.inputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) renderDialog() string {
	d := m.dialog
	lines := []string{titleStyle.Render(d.form.Title), ""}
	for i, input := range d.inputs {
		lines = append(lines, input.View())
		if d.errText != "" && d.errField == d.form.Fields[i].Name {
			lines = append(lines, errorStyle.Render("  "+d.errText))
		}
	}
	if d.errText != "" && d.errField == "" {
		lines = append(lines, errorStyle.Render(d.errText))
	}
	lines = append(lines, "", headerStyle.Render("enter: "+d.form.SubmitLabel+"  esc: "+d.form.CancelLabel+"  tab/shift+tab: next field"))
	box := modalStyle.Width(modalWidth(m.width)).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) renderFooter() string {
	help := headerStyle.Render(m.t("app.help"))
	if m.status != "" {
		return help + "\n" + errorStyle.Render(m.status)
	}
	return help
}

func (m *Model) layoutHeights() (bodyHeight, footerHeight int) {
	footerHeight = 1
	if m.status != "" {
		footerHeight++
	}
	bodyHeight = m.height - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	bodyHeight, _ := m.layoutHeights()
	m.viewport.Width = m.width
	m.viewport.Height = bodyHeight
	if m.dialog != nil {
		for i := range m.dialog.inputs {
			promptWidth := lipgloss.Width(m.dialog.inputs[i].Prompt)
			m.dialog.inputs[i].Width = maxInt(8, modalInnerWidth(m.width)-promptWidth)
		}
	}
}

func (m *Model) renderNotes() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	if len(m.notes) == 0 {
		m.viewport.SetContent(headerStyle.Render(m.t("app.empty")))
		return
	}
	blocks := make([]string, 0, len(m.notes))
	for _, n := range m.notes {
		blocks = append(blocks, renderNote(n, width))
	}
	m.viewport.SetContent(strings.Join(blocks, "\n\n"))
}

func renderNote(n weekdlg.Notification, width int) string {
	style := infoStyle
	if n.Level == weekdlg.LevelError {
		style = errorStyle.Bold(true)
	}
	title := style.Render(truncateLine(n.Title, width))
	if n.Level == weekdlg.LevelInfo {
		if table, err := FormatWeeks(n.Body); err == nil {
			return title + "\n" + table
		}
	}
	return title + "\n" + wrapText(n.Body, width)
}

func (m *Model) t(key string) string {
	if m.opts.Localizer == nil {
		return key
	}
	return m.opts.Localizer.T(key)
}

func integerRunes(runes []rune) []rune {
	out := runes[:0:0]
	for _, r := range runes {
		if unicode.IsDigit(r) || r == '-' {
			out = append(out, r)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func modalWidth(width int) int {
	return maxInt(40, minInt(width-4, 72))
}

func modalInnerWidth(width int) int {
	w := modalWidth(width)
	w -= 6 // 2 border + 4 padding
	if w < 10 {
		return 10
	}
	return w
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
