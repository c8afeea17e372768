// Package httpapi exposes checklist sessions to the host UI over HTTP and
// server-sent events.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hperssn/benchtop/internal/catalog"
	"github.com/hperssn/benchtop/internal/runner"
	"github.com/hperssn/benchtop/internal/storage"
)

const defaultEventBuffer = 16

type Options struct {
	Catalog catalog.Source
	Manager *runner.SessionManager

	// History is optional; the /history routes answer 404 without it.
	History storage.Repository

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	Logger      *slog.Logger
	EventBuffer int
}

type Server struct {
	catalog     catalog.Source
	manager     *runner.SessionManager
	history     storage.Repository
	metrics     http.Handler
	logger      *slog.Logger
	eventBuffer int
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	return &Server{
		catalog:     opts.Catalog,
		manager:     opts.Manager,
		history:     opts.History,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		eventBuffer: opts.EventBuffer,
	}
}

// Handler builds the router. No per-request timeout is installed because the
// event stream stays open for the life of a session.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(technicianMiddleware)

	r.Get("/healthz", s.healthz)

	r.Route("/checklists", func(r chi.Router) {
		r.Get("/", s.listChecklists)
		r.Get("/{id}", s.getChecklist)
		r.Post("/{id}/sessions", s.openSession)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Get("/{id}", s.getSession)
		r.Delete("/{id}", s.closeSession)
		r.Post("/{id}/steps/{order}/toggle", s.toggleStep)
		r.Post("/{id}/timer/start", s.startTimer)
		r.Post("/{id}/timer/stop", s.stopTimer)
		r.Get("/{id}/events", s.streamEvents)
	})

	r.Get("/history", s.recentHistory)
	r.Get("/history/stats", s.historyStats)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, map[string]any{
		"status":   "ok",
		"sessions": s.manager.Count(),
	}, http.StatusOK)
}
