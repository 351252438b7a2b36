// Package weekdlg implements the week range dialog: it collects a year and a
// range of week numbers, forwards them to the get_weeks_as_dict procedure and
// routes the answer to the host's notification surface.
//
// The dialog is hidden as soon as the form is submitted. The procedure call
// then runs on its own goroutine, and its continuation only talks to
// Host.Notify.
package weekdlg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/temporal/internal/model"
	"github.com/verte-zerg/temporal/internal/realtime"
)

// Procedure is the remote procedure queried by the dialog.
const Procedure = "get_weeks_as_dict"

// DefaultTimeout bounds a single procedure call.
const DefaultTimeout = 30 * time.Second

// Localization keys used by the dialog.
const (
	KeyTitle       = "weeks.dialog.title"
	KeyShow        = "weeks.action.show"
	KeyCancel      = "weeks.action.cancel"
	KeyResultTitle = "weeks.result.title"
	KeyErrorTitle  = "weeks.error.title"
	KeyRemote      = "weeks.error.remote"
	KeyMalformed   = "weeks.error.malformed"
)

// Mode selects what happens with a successful response.
type Mode string

const (
	// ModeDisplay shows the payload as a notification.
	ModeDisplay Mode = "display"
	// ModeParseOnly decodes the payload and discards it.
	ModeParseOnly Mode = "parse-only"
)

// ParseMode validates a configured mode. Empty selects ModeDisplay.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeDisplay:
		return ModeDisplay, nil
	case ModeParseOnly:
		return ModeParseOnly, nil
	default:
		return "", fmt.Errorf("on-result must be %q or %q (got %q)", ModeDisplay, ModeParseOnly, s)
	}
}

// Options configures a WeekDialog.
type Options struct {
	Mode Mode
	// Prefill opens the dialog with the current year and weeks 1 to 52
	// when no explicit defaults are given.
	Prefill bool
	Timeout time.Duration
	Method  string
	Now     func() time.Time
	Logger  *zap.Logger
}

// WeekDialog opens the week form and handles its submission.
type WeekDialog struct {
	host   Host
	loc    Localizer
	caller Caller
	opts   Options
	wg     sync.WaitGroup
}

// New creates a WeekDialog.
func New(host Host, loc Localizer, caller Caller, opts Options) *WeekDialog {
	if opts.Mode == "" {
		opts.Mode = ModeDisplay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Method == "" {
		opts.Method = Procedure
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &WeekDialog{host: host, loc: loc, caller: caller, opts: opts}
}

// Mode returns the configured result mode.
func (d *WeekDialog) Mode() Mode {
	return d.opts.Mode
}

// Open shows the form. Explicit defaults win; without them the prefilled
// variant uses the current year and weeks 1 to 52, the blank one shows
// empty fields.
func (d *WeekDialog) Open(defaults *model.WeekQuery) error {
	if defaults == nil && d.opts.Prefill {
		q := model.DefaultWeekQuery(d.opts.Now())
		defaults = &q
	}
	return d.host.Show(d.Form(defaults), d.Submit)
}

// OpenBlank shows the form with empty fields.
func (d *WeekDialog) OpenBlank() error {
	return d.host.Show(d.Form(nil), d.Submit)
}

// Form builds the localized form for defaults.
func (d *WeekDialog) Form(defaults *model.WeekQuery) Form {
	fields := []Field{
		{Name: model.ArgYear, Label: d.loc.T("weeks.field." + model.ArgYear)},
		{Name: model.ArgFromWeekNum, Label: d.loc.T("weeks.field." + model.ArgFromWeekNum)},
		{Name: model.ArgToWeekNum, Label: d.loc.T("weeks.field." + model.ArgToWeekNum)},
	}
	if defaults != nil {
		fields[0].Value = strconv.Itoa(defaults.Year)
		fields[1].Value = strconv.Itoa(defaults.FromWeekNum)
		fields[2].Value = strconv.Itoa(defaults.ToWeekNum)
	}
	return Form{
		Title:       d.loc.T(KeyTitle),
		SubmitLabel: d.loc.T(KeyShow),
		CancelLabel: d.loc.T(KeyCancel),
		Fields:      fields,
	}
}

// Submit validates values, hides dlg and starts the procedure call.
// Validation errors are returned without hiding the dialog.
func (d *WeekDialog) Submit(dlg Dialog, values map[string]string) error {
	q, err := ParseQuery(values)
	if err != nil {
		return err
	}
	dlg.Hide()

	d.wg.Add(1)
	go d.resolve(q)
	return nil
}

// Wait blocks until every started call has finished.
func (d *WeekDialog) Wait() {
	d.wg.Wait()
}

// RegisterRealtime attaches the show-weeks listener to reg. Calling it from
// several lifecycle hooks attaches the listener once.
func (d *WeekDialog) RegisterRealtime(reg *realtime.Registry) bool {
	attached := reg.Attach(realtime.EventShowWeeks, func(ev realtime.Event) {
		d.opts.Logger.Debug("show weeks requested", zap.String("id", ev.ID))
		if err := d.OpenBlank(); err != nil {
			d.opts.Logger.Warn("failed to open week dialog", zap.Error(err))
		}
	})
	if attached {
		d.opts.Logger.Debug("realtime listener attached", zap.String("event", realtime.EventShowWeeks))
	}
	return attached
}

func (d *WeekDialog) resolve(q model.WeekQuery) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			d.opts.Logger.Error("week call panicked", zap.Any("panic", r))
			d.notifyError(KeyRemote, fmt.Errorf("%v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.opts.Timeout)
	defer cancel()

	logger := d.opts.Logger.With(
		zap.Int(model.ArgYear, q.Year),
		zap.Int(model.ArgFromWeekNum, q.FromWeekNum),
		zap.Int(model.ArgToWeekNum, q.ToWeekNum),
	)
	payload, err := d.caller.Call(ctx, d.opts.Method, q.Args())
	if err != nil {
		logger.Warn("week call failed", zap.Error(err))
		d.notifyError(KeyRemote, err)
		return
	}
	if isEmpty(payload) {
		logger.Debug("week call returned no payload")
		return
	}

	switch d.opts.Mode {
	case ModeParseOnly:
		if _, err := decodePayload(payload); err != nil {
			logger.Warn("malformed week payload", zap.Error(err))
			d.notifyError(KeyMalformed, err)
			return
		}
		logger.Debug("week payload parsed")
	default:
		d.host.Notify(Notification{
			Level: LevelInfo,
			Title: fmt.Sprintf("%s %d: %d-%d", d.loc.T(KeyResultTitle), q.Year, q.FromWeekNum, q.ToWeekNum),
			Body:  unwrap(payload),
		})
	}
}

func (d *WeekDialog) notifyError(key string, err error) {
	d.host.Notify(Notification{
		Level: LevelError,
		Title: d.loc.T(KeyErrorTitle),
		Body:  d.loc.T(key) + ": " + err.Error(),
	})
}

func isEmpty(payload json.RawMessage) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`))
}

// unwrap returns the text of a JSON string payload, or the raw JSON otherwise.
func unwrap(payload json.RawMessage) string {
	var s string
	if err := json.Unmarshal(payload, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(payload))
}

// decodePayload parses the payload. A JSON string holding JSON is decoded twice.
func decodePayload(payload json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	var inner any
	if err := json.Unmarshal([]byte(s), &inner); err != nil {
		return nil, err
	}
	return inner, nil
}
