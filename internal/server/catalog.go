package server

import (
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/letmevibethatforyou/promptplace/store"
)

type promptPage struct {
	Prompts []*store.Prompt `json:"prompts"`
	Total   int             `json:"total"`
	Page    int             `json:"page"`
}

type promptDetail struct {
	*store.Prompt
	Reviews []*store.Review `json:"reviews"`
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	prompts, total, err := s.app.Store.ListLivePrompts(r.Context(), page)
	if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Int("page", page).Msg("Failed to list prompts")
		writeError(w, http.StatusInternalServerError, "Internal Error")
		return
	}
	writeJSON(w, http.StatusOK, promptPage{Prompts: prompts, Total: total, Page: page})
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "promptID")
	p, err := s.app.Store.GetPrompt(r.Context(), id)
	if errors.Is(err, store.ErrPromptNotFound) {
		writeError(w, http.StatusNotFound, "Prompt not found")
		return
	} else if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("prompt_id", id).Msg("Failed to get prompt")
		writeError(w, http.StatusInternalServerError, "Internal Error")
		return
	}

	reviews, err := s.app.Store.ListReviews(r.Context(), id)
	if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("prompt_id", id).Msg("Failed to list reviews")
		writeError(w, http.StatusInternalServerError, "Internal Error")
		return
	}
	writeJSON(w, http.StatusOK, promptDetail{Prompt: p, Reviews: reviews})
}

func (s *Server) handleRelatedPrompts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("promptCategory")
	if category == "" {
		writeError(w, http.StatusBadRequest, "Missing 'promptCategory' in the request.")
		return
	}
	prompts, err := s.app.Store.RelatedPrompts(r.Context(), category)
	if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Str("category", category).Msg("Failed to get related prompts")
		writeError(w, http.StatusInternalServerError, "Internal Error")
		return
	}
	writeJSON(w, http.StatusOK, prompts)
}

func (s *Server) handleTopShops(w http.ResponseWriter, r *http.Request) {
	shops, err := s.app.Store.TopShops(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Err(err).Msg("Failed to get top shops")
		writeError(w, http.StatusInternalServerError, "Internal Error")
		return
	}
	writeJSON(w, http.StatusOK, shops)
}
