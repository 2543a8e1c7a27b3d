package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/letmevibethatforyou/promptplace"
)

// handleSearch answers GET /api/search?q=. The body is always a JSON array
// on success; any failure of the terminal tier is a generic 500.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeJSON(w, http.StatusOK, []promptplace.SearchResult{})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.app.Config.SearchTimeout)
	defer cancel()

	res, err := s.app.Resolver.Search(ctx, query)
	if err != nil {
		zerolog.Ctx(ctx).Err(err).Str("query", query).Msg("Search failed")
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	items := res.Items
	if items == nil {
		items = []promptplace.SearchResult{}
	}
	zerolog.Ctx(ctx).Debug().
		Str("tier", res.Tier).
		Int("hits", len(items)).
		Int64("took_ms", res.Took).
		Msg("Search answered")
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.app.Store.Ping(ctx); err != nil {
		zerolog.Ctx(ctx).Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":    false,
			"error": err.Error(),
			"hint":  "Check the database settings (DATABASE_TYPE, DATABASE_URL)",
		})
		return
	}

	resp := map[string]any{
		"ok":        true,
		"message":   "Database connection successful",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.app.Elastic != nil {
		resp["elasticsearch"] = s.app.Elastic.Ping(ctx) == nil
	}
	writeJSON(w, http.StatusOK, resp)
}
