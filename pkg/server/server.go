// Package server exposes the chat and analytics surfaces as a JSON API.
// It serves data only; page rendering is up to the client.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/listener/pkg/adapter"
	"github.com/m-mizutani/listener/pkg/repository"
	"github.com/m-mizutani/listener/pkg/usecase/analytics"
	"github.com/m-mizutani/listener/pkg/usecase/tagging"
	"github.com/m-mizutani/listener/pkg/utils/logging"
)

type Server struct {
	repo      repository.Repository
	gemini    adapter.Gemini
	pipeline  *tagging.Pipeline
	analytics *analytics.UseCase
	logger    *slog.Logger

	router chi.Router
}

// NewInput contains the dependencies of the HTTP server
type NewInput struct {
	Repo      repository.Repository
	Gemini    adapter.Gemini
	Pipeline  *tagging.Pipeline
	Analytics *analytics.UseCase
	Logger    *slog.Logger
}

func New(input NewInput) *Server {
	logger := input.Logger
	if logger == nil {
		logger = logging.Default()
	}

	s := &Server{
		repo:      input.Repo,
		gemini:    input.Gemini,
		pipeline:  input.Pipeline,
		analytics: input.Analytics,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat/{sessionID}", s.handleChat)
		r.Get("/conversations/{sessionID}", s.handleGetConversation)
		r.Get("/tags", s.handleListTags)
		r.Post("/tags", s.handleRegisterTag)
		r.Get("/analytics", s.handleAnalytics)
	})
	s.router = r

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
