// Package server exposes the temporal procedures over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Procedure names. Each is reachable as /api/method/{name}.
const (
	MethodGetWeeks        = "get_weeks_as_dict"
	MethodGetWeeksDotted  = "temporal.get_weeks_as_dict"
	MethodShowWeeks       = "temporal.show_weeks"
	MethodRebuildCalendar = "temporal.rebuild_calendar"
	MethodDateToScalar    = "temporal.date_to_scalar"
	MethodGetYears        = "temporal.get_years"
	MethodGetWeekIDs      = "temporal.get_week_ids"
	MethodGetDay          = "temporal.get_day"
)

// Router registers the procedure routes on a mux router.
type Router struct {
	handler *ProcedureHandler
	router  *mux.Router
	logger  *zap.Logger
}

// NewRouter creates a router with the app's routes.
func NewRouter(handler *ProcedureHandler, router *mux.Router, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handler: handler,
		router:  router,
		logger:  logger,
	}
}

// RegisterRoutes installs the middleware and every route.
func (r *Router) RegisterRoutes() {
	r.router.Use(r.logRequests)

	// expects {"year": int, "from_week_num": int, "to_week_num": int} as JSON body or query string
	r.router.HandleFunc("/api/method/"+MethodGetWeeks, r.handler.GetWeeksAsDict).Methods(http.MethodGet, http.MethodPost)
	r.router.HandleFunc("/api/method/"+MethodGetWeeksDotted, r.handler.GetWeeksAsDict).Methods(http.MethodGet, http.MethodPost)

	r.router.HandleFunc("/api/method/"+MethodShowWeeks, r.handler.ShowWeeks).Methods(http.MethodPost)
	r.router.HandleFunc("/api/method/"+MethodRebuildCalendar, r.handler.RebuildCalendar).Methods(http.MethodPost)
	// expects ?date=YYYY-MM-DD
	r.router.HandleFunc("/api/method/"+MethodDateToScalar, r.handler.DateToScalar).Methods(http.MethodGet)
	r.router.HandleFunc("/api/method/"+MethodGetDay, r.handler.GetDay).Methods(http.MethodGet)

	r.router.HandleFunc("/api/method/"+MethodGetYears, r.handler.GetYears).Methods(http.MethodGet)
	r.router.HandleFunc("/api/method/"+MethodGetWeekIDs, r.handler.GetWeekIDs).Methods(http.MethodGet)

	r.router.HandleFunc("/ping", r.handler.Ping).Methods(http.MethodGet)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (r *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		r.logger.Info("request",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", rec.status),
			zap.String("request_id", req.Header.Get(HeaderRequestID)),
			zap.Duration("elapsed", time.Since(start)))
	})
}
