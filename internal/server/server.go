// Package server is the HTTP front door: site chat, image generation,
// buffer reset, the inbound X webhook and the static front end.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/wotyapustoy-lab/promt-protocol-chat/internal/chathistory"
	"github.com/wotyapustoy-lab/promt-protocol-chat/internal/reply"
	"github.com/wotyapustoy-lab/promt-protocol-chat/persona"
)

type ImageClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ReplyPoster interface {
	PostReply(ctx context.Context, text string, inReplyTo int64) error
}

type Config struct {
	Persona   persona.Config
	BotHandle string
	StaticDir string
}

type Deps struct {
	History *chathistory.Buffer
	// Chat and Mention carry different token budgets and fallback lines.
	Chat    *reply.Generator
	Mention *reply.Generator
	Images  ImageClient
	Poster  ReplyPoster
	Logger  *slog.Logger
}

type Server struct {
	router *chi.Mux
	cfg    Config
	deps   Deps
}

func New(cfg Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{router: chi.NewRouter(), cfg: cfg, deps: deps}

	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	s.router.Use(s.requestLog)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/", s.handleRoot)
	s.router.Post("/api/chat", s.handleChat)
	s.router.Post("/api/image", s.handleImage)
	s.router.Post("/api/reset", s.handleReset)
	s.router.Post("/x/webhook", s.handleWebhook)
	if s.cfg.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(s.cfg.StaticDir)))
		s.router.Get("/static/*", fs.ServeHTTP)
	}
}

func (s *Server) Router() http.Handler { return s.router }

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.deps.Logger.Info("http_request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
