// Package server exposes the marketplace over HTTP.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"go.mau.fi/util/exhttp"
	"go.mau.fi/util/requestlog"

	"github.com/letmevibethatforyou/promptplace/internal/app"
	"github.com/letmevibethatforyou/promptplace/internal/auth"
)

const (
	shutdownTimeout = 10 * time.Second
	loginRequired   = "Please login to access this resource"
)

// Server routes API requests to the components of an App.
type Server struct {
	app    *app.App
	log    zerolog.Logger
	router chi.Router
}

func New(a *app.App) *Server {
	s := &Server{
		app:    a,
		log:    a.Log.With().Str("component", "http").Logger(),
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(hlog.NewHandler(s.log))
	r.Use(requestlog.AccessLogger(requestlog.Options{Recover: true}))
	r.Use(auth.Middleware(s.app.Auth))

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/health", s.handleHealth)

		r.Get("/prompts", s.handleListPrompts)
		r.Get("/prompts/related", s.handleRelatedPrompts)
		r.Get("/prompts/{promptID}", s.handleGetPrompt)
		r.Get("/shops/top", s.handleTopShops)
		r.Get("/users/{userID}", s.handleGetUser)
		r.Get("/me", s.handleMe)

		r.Route("/dev-auth", func(r chi.Router) {
			r.Use(s.requireDemo)
			r.Post("/login", s.handleDevLogin)
			r.Get("/me", s.handleDevMe)
			r.Post("/logout", s.handleDevLogout)
		})

		r.Get("/payments/publishable-key", s.handlePublishableKey)
		r.Post("/payments/intent", s.handleCreateIntent)
		r.Post("/payments/confirm", s.handleConfirmPayment)

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/uploads", s.handleUpload)
			r.Delete("/uploads/{publicID}", s.handleDeleteUpload)
		})
	})

	if h := s.app.UploadsHandler(); h != nil {
		r.Handle("/uploads/*", h)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on the configured address until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.app.Config.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return s.log.WithContext(context.Background())
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server failed")
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down http server")
	}
	return nil
}

func (s *Server) requireDemo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.app.Sessions == nil {
			writeError(w, http.StatusBadRequest, "Demo mode not enabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireUser rejects requests without a signed-in user.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, loginRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	exhttp.WriteJSONResponse(w, status, v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	exhttp.WriteJSONResponse(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return dec.Decode(v)
}
