package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lattice/internal/logstream"
	"github.com/starford/lattice/internal/treeservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// hub, if non-nil, serves the log streaming routes under /logs.
func NewRouter(svc *treeservice.Service, hub *logstream.Hub, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Trees.
	r.Get("/tree/{kind}", h.GetTree)
	r.Post("/tree/{kind}/move", h.Move)
	r.Put("/tree/{kind}/sort", h.ApplySort)

	// Folders and items.
	r.Post("/folders", h.CreateFolder)
	r.Patch("/folders/{id}", h.RenameFolder)
	r.Delete("/folders/{id}", h.DeleteFolder)
	r.Post("/items", h.CreateItem)
	r.Patch("/items/{id}", h.RenameItem)
	r.Delete("/items/{id}", h.DeleteItem)

	// Selection.
	r.Get("/selection", h.GetSelection)
	r.Put("/selection", h.PutSelection)
	r.Patch("/selection", h.RenameSelected)
	r.Delete("/selection", h.ClearSelection)
	r.Post("/selection/delete", h.DeleteSelected)

	// Navigation and search.
	r.Get("/breadcrumb/{id}", h.Breadcrumb)
	r.Get("/search", h.Search)

	// History.
	r.Post("/undo", h.Undo)
	r.Post("/redo", h.Redo)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	// Log streaming.
	if hub != nil {
		lh := NewLogHandler(hub)
		r.Post("/logs", lh.CreateChannel)
		r.Get("/logs/{channel}", lh.Stream)
		r.Post("/logs/{channel}", lh.Publish)
	}

	return r
}
