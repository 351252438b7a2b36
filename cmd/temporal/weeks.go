package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/verte-zerg/temporal/internal/model"
	"github.com/verte-zerg/temporal/internal/rpc"
	"github.com/verte-zerg/temporal/internal/tui"
	"github.com/verte-zerg/temporal/internal/weekdlg"
)

var (
	weeksYear int
	weeksFrom int
	weeksTo   int
)

// cliHost submits the dialog as soon as it is shown, using the form's
// defaults overridden by explicit flag values.
type cliHost struct {
	overrides map[string]string

	mu    sync.Mutex
	notes []weekdlg.Notification
}

type cliDialog struct{}

func (cliDialog) Hide() {}

func (h *cliHost) Show(form weekdlg.Form, submit weekdlg.SubmitFunc) error {
	values := make(map[string]string, len(form.Fields))
	for _, f := range form.Fields {
		if f.Value != "" {
			values[f.Name] = f.Value
		}
	}
	for k, v := range h.overrides {
		values[k] = v
	}
	return submit(cliDialog{}, values)
}

func (h *cliHost) Notify(n weekdlg.Notification) {
	h.mu.Lock()
	h.notes = append(h.notes, n)
	h.mu.Unlock()
}

func (h *cliHost) notifications() []weekdlg.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]weekdlg.Notification(nil), h.notes...)
}

func newWeeksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weeks",
		Short: "Query a week range without the TUI",
		Args:  cobra.NoArgs,
		RunE:  runWeeksCmd,
	}
	cmd.Flags().IntVar(&weeksYear, "year", 0, "year (default: current year when prefill is on)")
	cmd.Flags().IntVar(&weeksFrom, "from", 0, "first week number")
	cmd.Flags().IntVar(&weeksTo, "to", 0, "last week number")
	return cmd
}

func runWeeksCmd(cmd *cobra.Command, _ []string) error {
	if err := loadSettings(cmd); err != nil {
		return err
	}
	logger, err := newStderrLogger()
	if err != nil {
		return err
	}
	defer syncLogger(logger)

	loc, err := newLocalizer()
	if err != nil {
		return err
	}
	dlgOpts, err := dialogOptions(logger)
	if err != nil {
		return err
	}

	host := &cliHost{overrides: weekOverrides(cmd)}
	caller := rpc.NewClient(opts.server, opts.user, logger.Named("rpc"))
	dlg := weekdlg.New(host, loc, caller, dlgOpts)

	err = dlg.Open(nil)
	dlg.Wait()
	var fe *weekdlg.FieldError
	if errors.As(err, &fe) {
		return fmt.Errorf("%s: %s", loc.T("weeks.field."+fe.Field), loc.T(fe.Key))
	}
	if err != nil {
		return err
	}

	notes := host.notifications()
	if len(notes) == 0 && dlg.Mode() == weekdlg.ModeParseOnly {
		logger.Info("result parsed, nothing to display", zap.String("on-result", string(dlg.Mode())))
		return nil
	}
	tty := false
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return printNotes(cmd.OutOrStdout(), tty, notes)
}

func weekOverrides(cmd *cobra.Command) map[string]string {
	overrides := map[string]string{}
	for flag, arg := range map[string]struct {
		name  string
		value *int
	}{
		"year": {model.ArgYear, &weeksYear},
		"from": {model.ArgFromWeekNum, &weeksFrom},
		"to":   {model.ArgToWeekNum, &weeksTo},
	} {
		if cmd.Flags().Changed(flag) {
			overrides[arg.name] = strconv.Itoa(*arg.value)
		}
	}
	return overrides
}

// printNotes writes info notifications to w, as a table when tty is set.
// The first error notification is returned as an error.
func printNotes(w io.Writer, tty bool, notes []weekdlg.Notification) error {
	for _, n := range notes {
		if n.Level == weekdlg.LevelError {
			return fmt.Errorf("%s: %s", n.Title, n.Body)
		}
		body := n.Body
		if tty {
			if table, err := tui.FormatWeeks(n.Body); err == nil {
				body = n.Title + "\n" + table
			}
		}
		if _, err := fmt.Fprintln(w, body); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}
