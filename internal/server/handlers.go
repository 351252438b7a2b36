package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/verte-zerg/temporal/internal/calendar"
	"github.com/verte-zerg/temporal/internal/model"
	"github.com/verte-zerg/temporal/internal/service"
	"github.com/verte-zerg/temporal/internal/store"
)

// Request headers understood by the handlers.
const (
	HeaderRequestID = "X-Request-ID"
	HeaderUser      = "X-Temporal-User"
)

// Exception types reported in the error envelope.
const (
	ExcTypeError       = "TypeError"
	ExcValidationError = "ValidationError"
	ExcDoesNotExist    = "DoesNotExistError"
	ExcInternal        = "Exception"
)

const maxBodyBytes = 1 << 20

// WeekProvider is the service behind the procedures.
type WeekProvider interface {
	GetWeeks(ctx context.Context, q model.WeekQuery) ([]model.Week, error)
	Rebuild(ctx context.Context) error
	ShowWeeks(ctx context.Context, user string) error
	DateToScalar(ctx context.Context, d time.Time) (int64, error)
	Years(ctx context.Context) ([]int, error)
	WeekIDs(ctx context.Context) ([]string, error)
	Day(ctx context.Context, d time.Time) (*model.Day, error)
}

// ProcedureHandler serves the whitelisted procedures.
type ProcedureHandler struct {
	weeks  WeekProvider
	logger *zap.Logger
}

// NewProcedureHandler creates a ProcedureHandler.
func NewProcedureHandler(weeks WeekProvider, logger *zap.Logger) *ProcedureHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcedureHandler{weeks: weeks, logger: logger}
}

// procError is written as the error envelope.
type procError struct {
	status  int
	excType string
	message string
}

func (e *procError) Error() string {
	return e.excType + ": " + e.message
}

// GetWeeksAsDict handles get_weeks_as_dict. The message member is the week
// list encoded as a JSON string.
func (h *ProcedureHandler) GetWeeksAsDict(w http.ResponseWriter, r *http.Request) {
	args, err := readArgs(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := checkSignature(MethodGetWeeks, args, model.ArgYear, model.ArgFromWeekNum, model.ArgToWeekNum); err != nil {
		h.writeError(w, err)
		return
	}
	var q model.WeekQuery
	for name, target := range map[string]*int{
		model.ArgYear:        &q.Year,
		model.ArgFromWeekNum: &q.FromWeekNum,
		model.ArgToWeekNum:   &q.ToWeekNum,
	} {
		v, err := toInt(args[name])
		if err != nil {
			h.writeError(w, &procError{
				status:  http.StatusExpectationFailed,
				excType: ExcValidationError,
				message: fmt.Sprintf("%s must be an integer", name),
			})
			return
		}
		*target = v
	}

	weeks, err := h.weeks.GetWeeks(r.Context(), q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	encoded, err := json.Marshal(weeks)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeMessage(w, string(encoded))
}

// ShowWeeks handles temporal.show_weeks. The target user comes from the
// "user" argument or the X-Temporal-User header.
func (h *ProcedureHandler) ShowWeeks(w http.ResponseWriter, r *http.Request) {
	args, err := readArgs(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	user := r.Header.Get(HeaderUser)
	if v, ok := args["user"]; ok {
		s, _ := v.(string)
		user = s
		delete(args, "user")
	}
	if err := checkSignature(MethodShowWeeks, args); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.weeks.ShowWeeks(r.Context(), user); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeMessage(w, nil)
}

// RebuildCalendar handles temporal.rebuild_calendar.
func (h *ProcedureHandler) RebuildCalendar(w http.ResponseWriter, r *http.Request) {
	if err := h.weeks.Rebuild(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeMessage(w, nil)
}

// DateToScalar handles temporal.date_to_scalar.
func (h *ProcedureHandler) DateToScalar(w http.ResponseWriter, r *http.Request) {
	d, err := dateArg(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	v, err := h.weeks.DateToScalar(r.Context(), d)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeMessage(w, v)
}

// GetYears handles temporal.get_years.
func (h *ProcedureHandler) GetYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.weeks.Years(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeMessage(w, years)
}

// GetWeekIDs handles temporal.get_week_ids.
func (h *ProcedureHandler) GetWeekIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := h.weeks.WeekIDs(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeMessage(w, ids)
}

// GetDay handles temporal.get_day.
func (h *ProcedureHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	d, err := dateArg(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	day, err := h.weeks.Day(r.Context(), d)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeMessage(w, day)
}

// Ping handles GET /ping.
func (h *ProcedureHandler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"}, h.logger)
}

func (h *ProcedureHandler) writeMessage(w http.ResponseWriter, message any) {
	writeJSON(w, http.StatusOK, map[string]any{"message": message}, h.logger)
}

func (h *ProcedureHandler) writeError(w http.ResponseWriter, err error) {
	pe := classify(err)
	if pe.status >= http.StatusInternalServerError {
		h.logger.Error("procedure failed", zap.Error(err))
	} else {
		h.logger.Debug("procedure rejected", zap.Error(err))
	}
	writeJSON(w, pe.status, map[string]string{
		"exc_type":  pe.excType,
		"exception": pe.message,
	}, h.logger)
}

func classify(err error) *procError {
	var pe *procError
	switch {
	case errors.As(err, &pe):
		return pe
	case errors.Is(err, service.ErrInvalidQuery):
		return &procError{status: http.StatusExpectationFailed, excType: ExcValidationError, message: err.Error()}
	case errors.Is(err, service.ErrWeekNotFound), errors.Is(err, service.ErrDayNotFound), errors.Is(err, store.ErrNotFound):
		return &procError{status: http.StatusNotFound, excType: ExcDoesNotExist, message: err.Error()}
	default:
		return &procError{status: http.StatusInternalServerError, excType: ExcInternal, message: err.Error()}
	}
}

func dateArg(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	d, err := calendar.ParseDate(raw)
	if err != nil {
		return time.Time{}, &procError{
			status:  http.StatusExpectationFailed,
			excType: ExcValidationError,
			message: fmt.Sprintf("invalid date %q", raw),
		}
	}
	return d, nil
}

func writeJSON(w http.ResponseWriter, status int, body any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("error encoding response", zap.Error(err))
	}
}

// readArgs merges query parameters with a JSON object body. Body values win.
func readArgs(r *http.Request) (map[string]any, error) {
	args := map[string]any{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			args[key] = values[len(values)-1]
		}
	}
	if r.Body == nil {
		return args, nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return args, nil
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, &procError{
			status:  http.StatusBadRequest,
			excType: ExcValidationError,
			message: "request body must be a JSON object",
		}
	}
	for k, v := range body {
		args[k] = v
	}
	return args, nil
}

// checkSignature rejects unknown and missing keyword arguments.
func checkSignature(method string, args map[string]any, params ...string) error {
	declared := make(map[string]struct{}, len(params))
	for _, p := range params {
		declared[p] = struct{}{}
	}
	var unexpected []string
	for k := range args {
		if _, ok := declared[k]; !ok {
			unexpected = append(unexpected, k)
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		return &procError{
			status:  http.StatusBadRequest,
			excType: ExcTypeError,
			message: fmt.Sprintf("%s() got an unexpected keyword argument '%s'", method, unexpected[0]),
		}
	}
	var missing []string
	for _, p := range params {
		if _, ok := args[p]; !ok {
			missing = append(missing, "'"+p+"'")
		}
	}
	if len(missing) > 0 {
		return &procError{
			status:  http.StatusBadRequest,
			excType: ExcTypeError,
			message: fmt.Sprintf("%s() missing %d required argument(s): %s", method, len(missing), strings.Join(missing, ", ")),
		}
	}
	return nil
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		return int(n), err
	case string:
		return strconv.Atoi(strings.TrimSpace(t))
	case float64:
		if t != float64(int(t)) {
			return 0, fmt.Errorf("%v is not an integer", t)
		}
		return int(t), nil
	default:
		return 0, fmt.Errorf("unsupported value %v", v)
	}
}
