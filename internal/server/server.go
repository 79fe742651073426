// =============================================================================
// Grade Summary - HTTP Session API
// =============================================================================
//
// This module exposes sessions over HTTP. A client creates a session,
// uploads a batch of registrar exports, picks periods and courses, and reads
// or downloads the two summaries.
//
// ROUTES:
//   GET    /health
//   GET    /metrics
//   POST   /api/sessions
//   GET    /api/sessions/{id}
//   DELETE /api/sessions/{id}
//   POST   /api/sessions/{id}/reset
//   POST   /api/sessions/{id}/files                  (multipart, field "files")
//   GET    /api/sessions/{id}/preview?limit=N
//   GET    /api/sessions/{id}/periods                 PUT {"values": [...]}
//   GET    /api/sessions/{id}/courses                 PUT {"values": [...]}
//   GET    /api/sessions/{id}/summaries/{level}       level = course | cohort
//   GET    /api/sessions/{id}/summaries/{level}/export
//
// STATUS CODES:
//   404 unknown session, 409 session not ready for the request,
//   400 malformed request or unknown selection, 422 failed ingest.
//
// =============================================================================

package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ginjaninja78/gradesum/internal/config"
	"github.com/ginjaninja78/gradesum/internal/logging"
	"github.com/ginjaninja78/gradesum/internal/session"
)

// Server serves the session API.
type Server struct {
	manager  *session.Manager
	cfg      config.ServerConfig
	gatherer prometheus.Gatherer
	validate *validator.Validate
	logger   *slog.Logger
	started  time.Time
}

// New creates a Server.
//
// PARAMETERS:
//   - manager: The session store.
//   - cfg: The server configuration (upload limit).
//   - gatherer: The registry exposed on /metrics.
//   - logger: The logger for request and handler records.
func New(manager *session.Manager, cfg config.ServerConfig, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	return &Server{
		manager:  manager,
		cfg:      cfg,
		gatherer: gatherer,
		validate: validator.New(),
		logger:   logging.WithComponent(logger, "http"),
		started:  time.Now(),
	}
}

// Routes returns the HTTP handler of the API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(recoverer(s.logger))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Post("/", s.createSession)

		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.sessionCtx)

			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/reset", s.resetSession)
			r.Post("/files", s.uploadFiles)
			r.Get("/preview", s.preview)

			r.Get("/periods", s.getPeriods)
			r.Put("/periods", s.putPeriods)
			r.Get("/courses", s.getCourses)
			r.Put("/courses", s.putCourses)

			r.Get("/summaries/{level}", s.getSummary)
			r.Get("/summaries/{level}/export", s.exportSummary)
		})
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"status":   "ok",
		"sessions": s.manager.Count(),
		"uptime":   time.Since(s.started).Round(time.Second).String(),
	})
}
