// Package api exposes the annotator over HTTP/JSON.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/syntaxd/internal/annotate"
	"github.com/dgallion1/syntaxd/internal/config"
	"github.com/dgallion1/syntaxd/internal/pipeline"
	"github.com/dgallion1/syntaxd/internal/stats"
)

// Server is the HTTP API server for syntaxd.
type Server struct {
	router       chi.Router
	annotator    *annotate.Annotator
	orchestrator *pipeline.Orchestrator
	stats        *stats.ParserStats
	log          *slog.Logger
	cfg          *config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil.
func NewServer(a *annotate.Annotator, orch *pipeline.Orchestrator, st *stats.ParserStats, log *slog.Logger, cfg *config.Config) *Server {
	s := &Server{
		annotator:    a,
		orchestrator: orch,
		stats:        st,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.Auth.APIKey, s.log))

		r.Get("/api/ping", s.handlePing)
		r.Get("/api/info", s.handleInfo)
		r.Get("/api/activity", s.handleActivity)

		r.Post("/api/parse/sentence", s.handleParseSentence)
		r.Post("/api/parse/tokens", s.handleParseTokens)
		r.Post("/api/parse/record", s.handleParseRecord)

		r.Post("/api/jobs/record", s.handleSubmitRecord)
		r.Post("/api/jobs/file", s.handleSubmitFile)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)

		r.Get("/api/stats/parser", s.handleParserStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":               "ok",
		"source":               s.annotator.SourceIdentifier(),
		"last_annotation_time": formatTime(s.annotator.LastAnnotationTime()),
	})
}

// formatTime renders t as RFC 3339, or null when t is zero.
func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
