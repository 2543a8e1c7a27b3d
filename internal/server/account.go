package server

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/letmevibethatforyou/promptplace/internal/auth"
)

type loginRequest struct {
	Preset string     `json:"preset"`
	User   *auth.User `json:"user"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, loginRequired)
		return
	}
	shop, err := s.app.Store.ShopByOwner(r.Context(), u.ID)
	if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("Failed to load shop")
		writeError(w, http.StatusInternalServerError, "Internal Error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "shop": shop})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.LookupUser(chi.URLParam(r, "userID")))
}

func (s *Server) handleDevLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	var (
		u   *auth.User
		err error
	)
	switch {
	case req.Preset != "":
		u, err = s.app.Sessions.LoginPreset(w, req.Preset)
	case req.User != nil:
		u, err = s.app.Sessions.Login(w, *req.User)
	default:
		err = errors.New("no preset or user")
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("Rejected demo login")
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("user_id", u.ID).Str("role", string(u.Role)).Msg("Demo login")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": u})
}

func (s *Server) handleDevMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.app.Sessions.CurrentUser(r)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (s *Server) handleDevLogout(w http.ResponseWriter, r *http.Request) {
	s.app.Sessions.Logout(w)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
