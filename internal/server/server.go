// Package server wires the HTTP routes.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"todo-relevance-backend/internal/ai"
	"todo-relevance-backend/internal/analytics"
	"todo-relevance-backend/internal/auth"
	"todo-relevance-backend/internal/db"
	"todo-relevance-backend/internal/settings"
	"todo-relevance-backend/internal/todos"
	"todo-relevance-backend/internal/voice"
)

type Options struct {
	DB             *db.DB
	JWTSecret      []byte
	AI             *ai.OpenAIClient
	AllowedOrigins []string
	// Now overrides the ranking clock. Defaults to time.Now.
	Now func() time.Time
}

type Server struct {
	db      *db.DB
	handler http.Handler
}

func New(opts Options) *Server {
	s := &Server{db: opts.DB}

	events := analytics.NewStore(opts.DB)
	settingsSvc := settings.NewService(settings.NewSQLStore(opts.DB))
	todoHandler := todos.NewHandler(todos.NewStore(opts.DB), settingsSvc, events)
	if opts.Now != nil {
		todoHandler.Now = opts.Now
	}
	voiceHandler := voice.NewHandler(opts.AI, events)
	authMW := auth.New(opts.JWTSecret)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", auth.RegisterHandler(opts.DB, opts.JWTSecret))
		r.Post("/login", auth.LoginHandler(opts.DB, opts.JWTSecret))

		r.Group(func(r chi.Router) {
			r.Use(authMW.Handler)
			r.Get("/me", auth.MeHandler(opts.DB))
			r.Post("/logout", auth.LogoutHandler())
			r.Delete("/account", auth.DeleteAccountHandler(opts.DB))
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authMW.Handler)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settings.GetHandler(settingsSvc))
			r.Put("/", settings.PutHandler(settingsSvc, events))
			r.Patch("/", settings.PatchHandler(settingsSvc, events))
			r.Delete("/", settings.DeleteHandler(settingsSvc, events))
		})

		r.Route("/todos", func(r chi.Router) {
			r.Get("/", todoHandler.List)
			r.Post("/", todoHandler.Create)
			r.Post("/bulk", todoHandler.CreateBulk)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", todoHandler.Get)
				r.Patch("/", todoHandler.Update)
				r.Delete("/", todoHandler.Delete)
				r.Post("/archive", todoHandler.Archive)
				r.Post("/unarchive", todoHandler.Unarchive)
				r.Post("/tags/{tagID}", todoHandler.AttachTag)
				r.Delete("/tags/{tagID}", todoHandler.DetachTag)
			})
		})

		r.Route("/tags", func(r chi.Router) {
			r.Get("/", todoHandler.ListTags)
			r.Post("/", todoHandler.CreateTag)
			r.Patch("/{id}", todoHandler.RenameTag)
			r.Delete("/{id}", todoHandler.DeleteTag)
		})

		r.Post("/voice/process", voiceHandler.Process)
		r.Post("/analytics/app-opened", analytics.AppOpenedHandler(events))
	})

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Content-Type", "Authorization", "Idempotency-Key", "X-Source-Event-Key",
			"X-Platform", "X-App-Version", "X-Device-Locale", "X-Session-Id",
		},
		AllowCredentials: true,
	})

	s.handler = c.Handler(r)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		log.Printf("[WARN] health: db ping: %v", err)
		http.Error(w, "db unavailable", http.StatusServiceUnavailable)
		return
	}
	_, _ = w.Write([]byte("OK"))
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] api listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Printf("[INFO] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
