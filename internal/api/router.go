package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/halvard/munin/internal/engine"
	"github.com/halvard/munin/internal/index"
)

// NewRouter creates a chi router with all API routes mounted. authEnabled
// controls whether Bearer token auth is enforced. sseHandler, if non-nil,
// is mounted at GET /events inside the auth group.
func NewRouter(eng *engine.Engine, db *index.DB, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(eng, db)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Entry queries.
	r.Get("/entries", h.ListEntries)
	r.Get("/entry", h.GetEntry)
	r.Get("/search", h.Search)
	r.Get("/backlinks", h.Backlinks)

	// Staged edits.
	r.Post("/notes", h.CreateNote)
	r.Put("/notes", h.UpdateNote)
	r.Post("/links", h.CreateLink)
	r.Delete("/entry", h.DeleteEntry)

	// Session lifecycle.
	r.Get("/changes", h.Changes)
	r.Post("/commit", h.Commit)
	r.Post("/reload", h.Reload)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
