// Package server exposes the consumer API over the result store: read access
// to stored results for the external dashboard, plus an operational trigger
// endpoint that hands off to the scheduler. Results are never written here.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/legallex/djenwatch/internal/model"
	"github.com/legallex/djenwatch/internal/results"
	"github.com/legallex/djenwatch/internal/sched"
)

// ResultReader is the read side of the result store.
type ResultReader interface {
	Read(date model.Date) (*model.DailyResult, error)
	ListDates() ([]model.Date, error)
}

// Triggerer starts a manual run, subject to the scheduler's state machine.
// Satisfied by *sched.Scheduler.
type Triggerer interface {
	TriggerNow(ctx context.Context, from, to model.Date) (*model.ExecutionRecord, error)
}

// Server serves the consumer API.
type Server struct {
	store     ResultReader
	triggerer Triggerer
	logger    *log.Logger
}

// New creates a Server over the given result reader. triggerer may be nil, in
// which case the trigger endpoint is not mounted.
func New(store ResultReader, triggerer Triggerer, logger *log.Logger) *Server {
	return &Server{store: store, triggerer: triggerer, logger: logger}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/results", s.handleListDates)
		r.Get("/results/{date}", s.handleGetResult)
		if s.triggerer != nil {
			r.Post("/trigger", s.handleTrigger)
		}
	})
	return r
}

// handleTrigger runs one cycle synchronously for the requested date (default:
// the previous calendar day). A trigger while a run is active is rejected with
// 409, never queued.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	date := model.DateOf(time.Now().AddDate(0, 0, -1))
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := model.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		date = parsed
	}

	record, err := s.triggerer.TriggerNow(r.Context(), date, date)
	if err != nil {
		if errors.Is(err, sched.ErrRunInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("manual trigger failed", "date", date, "err", err)
		if record != nil {
			writeJSON(w, http.StatusInternalServerError, record)
			return
		}
		writeError(w, http.StatusInternalServerError, "run failed")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleListDates(w http.ResponseWriter, _ *http.Request) {
	dates, err := s.store.ListDates()
	if err != nil {
		s.logger.Error("list dates", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list result dates")
		return
	}

	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.String())
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": out})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "date")
	date, err := model.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.store.Read(date)
	if err != nil {
		// No run yet for this date; distinct from a run with zero matches.
		if errors.Is(err, results.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no result for "+date.String())
			return
		}
		s.logger.Error("read result", "date", date, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read result")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
