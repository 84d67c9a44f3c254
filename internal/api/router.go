package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/halvard/notegraph/internal/noteservice"
	"github.com/halvard/notegraph/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, serves SSE at GET /events inside the auth group and
// receives rename events from the move endpoint.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, broker *sse.Broker) chi.Router {
	h := NewHandler(svc, broker)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD + rename.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Post("/notes/move", h.MoveNote)
	r.Get("/notes/*", h.GetNote)
	r.Put("/notes/*", h.UpdateNote)
	r.Delete("/notes/*", h.DeleteNote)

	// Graph queries.
	r.Get("/resolve", h.Resolve)
	r.Get("/backlinks/*", h.Backlinks)
	r.Get("/tags", h.ListTags)
	r.Get("/tags/{tag}", h.NotesWithTag)
	r.Get("/graph", h.Graph)
	r.Get("/broken-links", h.BrokenLinks)
	r.Get("/warnings", h.Warnings)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by the same auth middleware).
	if broker != nil {
		r.Get("/events", broker.ServeHTTP)
	}

	return r
}
