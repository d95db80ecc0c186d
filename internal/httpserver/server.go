// Package httpserver owns the gateway's HTTP surface: routing, auth, and
// the protocol handlers that feed the orchestrator and relay.
package httpserver

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/promptgate/gateway/internal/auth"
	"github.com/promptgate/gateway/internal/config"
	"github.com/promptgate/gateway/internal/orchestrator"
	"github.com/promptgate/gateway/internal/session"
)

// Server wires the protocol handlers to their collaborators.
type Server struct {
	cfg      config.Config
	checker  *auth.Checker
	sessions *session.Manager
	orch     *orchestrator.Orchestrator
	useAPI   bool
}

// New assembles a Server from its collaborators.
func New(cfg config.Config, sessions *session.Manager, orch *orchestrator.Orchestrator) *Server {
	return &Server{
		cfg:      cfg,
		checker:  auth.New(cfg.APIKey),
		sessions: sessions,
		orch:     orch,
		useAPI:   cfg.UseHostedAPI(),
	}
}

// Router builds the chi router with auth applied to every endpoint except
// health.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/v1/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/v1/chat/completions", s.handleChatCompletions)
		r.Post("/v1/messages", s.handleMessages)
		r.Post("/v1/cli/execute", s.handleExecute)
		r.Get("/v1/sessions", s.handleListSessions)
		r.Post("/v1/sessions", s.handleCreateSession)
		r.Get("/v1/sessions/{id}", s.handleGetSession)
		r.Delete("/v1/sessions/{id}", s.handleDeleteSession)
	})
	return r
}

// requireAuth rejects unauthorized requests in the OpenAI error shape,
// which every protocol's clients can parse for a 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.checker.Authorize(r); err != nil {
			writeOpenAIError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Printf("httpserver: %s %s status=%d bytes=%d elapsed=%s",
			r.Method, r.URL.Path, ww.Status(), ww.BytesWritten(), time.Since(start).Round(time.Millisecond))
	})
}

type healthResponse struct {
	Status         string             `json:"status"`
	Backend        string             `json:"backend"`
	HasAPIKey      bool               `json:"has_api_key"`
	CLIPath        string             `json:"cli_path"`
	MaxConcurrency int                `json:"max_concurrency"`
	Pool           orchestrator.Stats `json:"pool"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	backend := "cli"
	if s.useAPI {
		backend = "api"
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "ok",
		Backend:        backend,
		HasAPIKey:      s.cfg.AnthropicAPIKey != "",
		CLIPath:        s.cfg.CLIPath,
		MaxConcurrency: s.cfg.MaxConcurrency,
		Pool:           s.orch.Stats(),
	})
}
