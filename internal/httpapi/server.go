package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/polyglot-cms/internal/jobs"
	"github.com/MimeLyc/polyglot-cms/internal/service"
)

type Server struct {
	orchestrator *service.Orchestrator
	repo         service.Repository
	queue        *jobs.Queue

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithQueue exposes the background task list on the jobs endpoint.
func WithQueue(queue *jobs.Queue) Option {
	return func(s *Server) {
		s.queue = queue
	}
}

func NewServer(orchestrator *service.Orchestrator, repo service.Repository, opts ...Option) *Server {
	s := &Server{
		orchestrator: orchestrator,
		repo:         repo,
		mux:          http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/contents", s.handleContents)
	s.mux.HandleFunc("/api/contents/", s.handleContentByID)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/backfill", s.handleBackfill)
	s.mux.HandleFunc("/healthz", s.handleHealth)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
