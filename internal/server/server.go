// Package server exposes the question pipeline over HTTP with a
// server-sent event stream.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/dataexplorer/internal/auth"
	"github.com/leapstack-labs/dataexplorer/internal/stream"
	"golang.org/x/sync/errgroup"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = ":3001"

// DefaultAllowedOrigins are the development front-end origins.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}

const sessionName = "dataexplorer_session"

// Runner answers one question, emitting events to sink.
type Runner interface {
	Run(ctx context.Context, question string, sink stream.Sink) error
}

// Config holds configuration for the HTTP server.
type Config struct {
	Addr           string
	Runner         Runner
	Identities     auth.IdentityStore
	Tokens         *auth.Tokens
	Datasets       []string
	AllowedOrigins []string
	SessionSecret  string
	AuthRequired   bool
	Logger         *slog.Logger
}

// Server is the HTTP front door.
type Server struct {
	addr         string
	runner       Runner
	identities   auth.IdentityStore
	tokens       *auth.Tokens
	datasets     []string
	origins      []string
	sessionStore *sessions.CookieStore
	authRequired bool
	logger       *slog.Logger
}

// New creates a server. Missing optional fields get defaults.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}
	identities := cfg.Identities
	if identities == nil {
		identities = auth.NewStaticStore(nil)
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = auth.NewTokens(0, 0)
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400) // 1 day, matches token TTL
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	return &Server{
		addr:         addr,
		runner:       cfg.Runner,
		identities:   identities,
		tokens:       tokens,
		datasets:     cfg.Datasets,
		origins:      origins,
		sessionStore: sessionStore,
		authRequired: cfg.AuthRequired,
		logger:       logger,
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		requestID,
		middleware.RequestID,
		middleware.RealIP,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
			NoColor: true,
		}),
		middleware.Recoverer,
		cors(s.origins),
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Get("/datasets", s.listDatasets)
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)
		r.With(s.requireAuth).Post("/chat", s.chat)
	})
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("starting server", "addr", s.addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
