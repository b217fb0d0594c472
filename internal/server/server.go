// Package server is the HTTP delivery layer: caption generation and
// export, the two render flows, health, and static serving of published
// exports.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/eklimov/capvid/internal/pipeline"
	"github.com/eklimov/capvid/internal/usecase"
)

// Renderer is the orchestrator surface the handlers need; narrowed to an
// interface so handler tests can fake renders.
type Renderer interface {
	Run(ctx context.Context, job usecase.Job) (*usecase.Outcome, error)
	Burn(ctx context.Context, job usecase.Job) (*usecase.Outcome, error)
}

type Server struct {
	pipeline  *pipeline.Pipeline // nil when no transcriber is configured
	renderer  Renderer
	publicDir string
	logger    *log.Logger
}

func New(p *pipeline.Pipeline, r Renderer, publicDir string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{pipeline: p, renderer: r, publicDir: publicDir, logger: logger}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/captions/generate", s.handleGenerate)
	mux.HandleFunc("/api/captions/export", s.handleExport)
	mux.HandleFunc("/api/render", s.handleRender)
	mux.HandleFunc("/api/render/burn", s.handleRenderBurn)
	mux.Handle("/exports/", http.StripPrefix("/exports/", http.FileServer(http.Dir(s.publicDir))))
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Printf("%s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// errorEnvelope is the uniform error response shape.
type errorEnvelope struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg, details string) {
	s.writeJSON(w, status, errorEnvelope{Error: msg, Details: details})
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}
