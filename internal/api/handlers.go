package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/lattice/internal/models"
	"github.com/starford/lattice/internal/treeservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *treeservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *treeservice.Service) *Handler {
	return &Handler{svc: svc}
}

// kindParam parses the {kind} URL parameter, writing a 400 when it is invalid.
func kindParam(w http.ResponseWriter, r *http.Request) (models.Kind, bool) {
	kind, err := treeservice.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return "", false
	}
	return kind, true
}

func quoteETag(tag string) string { return `"` + tag + `"` }

// GetTree handles GET /api/tree/{kind}.
//
//	@Summary		Get one kind's tree, optionally filtered
//	@Tags			tree
//	@Produce		json
//	@Param			kind			path		string	true	"Tree kind"	Enums(api, scheduler, database)
//	@Param			q				query		string	false	"Name filter"
//	@Param			placeholders	query		bool	false	"Add a placeholder child to empty folders"
//	@Success		200				{object}	treeservice.TreeView
//	@Failure		400				{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/{kind} [get]
func (h *Handler) GetTree(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	var placeholders *bool
	if raw := q.Get("placeholders"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("placeholders must be a boolean"))
			return
		}
		placeholders = &v
	}

	view, err := h.svc.Tree(r.Context(), kind, q.Get("q"), placeholders)
	if err != nil {
		writeServiceError(w, "get tree", err, slog.String("kind", string(kind)))
		return
	}
	w.Header().Set("ETag", quoteETag(view.ETag))
	writeJSON(w, http.StatusOK, view)
}

// Move handles POST /api/tree/{kind}/move.
//
//	@Summary		Apply a drag-and-drop gesture
//	@Tags			tree
//	@Accept			json
//	@Produce		json
//	@Param			kind	path		string		true	"Tree kind"
//	@Param			body	body		MoveRequest	true	"Drop"
//	@Success		200		{object}	MoveResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/{kind}/move [post]
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	applied, err := h.svc.Move(r.Context(), kind, req.Drop())
	if err != nil {
		writeServiceError(w, "move", err, slog.String("drag", req.Drag), slog.String("target", req.Target))
		return
	}
	writeJSON(w, http.StatusOK, MoveResponse{Applied: applied})
}

// ApplySort handles PUT /api/tree/{kind}/sort.
//
//	@Summary		Write sort records with optimistic concurrency
//	@Tags			tree
//	@Accept			json
//	@Produce		json
//	@Param			kind		path		string		true	"Tree kind"
//	@Param			If-Match	header		string		false	"ETag from GET /tree/{kind}"
//	@Param			body		body		SortRequest	true	"Records"
//	@Success		200			{object}	SortResponse
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tree/{kind}/sort [put]
func (h *Handler) ApplySort(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(w, r)
	if !ok {
		return
	}
	var req SortRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	etag, err := h.svc.ApplySort(r.Context(), kind, req.Records, ifMatch)
	if err != nil {
		writeServiceError(w, "apply sort", err, slog.String("kind", string(kind)))
		return
	}
	w.Header().Set("ETag", quoteETag(etag))
	writeJSON(w, http.StatusOK, SortResponse{ETag: etag})
}

func (req CreateRequest) input() treeservice.CreateInput {
	return treeservice.CreateInput{Name: req.Name, Parent: req.Parent, Kind: models.Kind(req.Kind), Order: req.Order}
}

// CreateFolder handles POST /api/folders.
//
//	@Summary		Create a folder
//	@Tags			folders
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateRequest	true	"Folder to create"
//	@Success		201		{object}	models.Folder
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders [post]
func (h *Handler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.svc.CreateFolder(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, "create folder", err, slog.String("parent", req.Parent))
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// CreateItem handles POST /api/items.
//
//	@Summary		Create an item
//	@Tags			items
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateRequest	true	"Item to create"
//	@Success		201		{object}	models.Item
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/items [post]
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	it, err := h.svc.CreateItem(r.Context(), req.input())
	if err != nil {
		writeServiceError(w, "create item", err, slog.String("parent", req.Parent))
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

// RenameFolder handles PATCH /api/folders/{id}.
func (h *Handler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req RenameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.svc.RenameFolder(r.Context(), id, req.Name)
	if err != nil {
		writeServiceError(w, "rename folder", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// RenameItem handles PATCH /api/items/{id}.
func (h *Handler) RenameItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req RenameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	it, err := h.svc.RenameItem(r.Context(), id, req.Name)
	if err != nil {
		writeServiceError(w, "rename item", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// DeleteFolder handles DELETE /api/folders/{id}.
//
//	@Summary		Delete a folder and everything nested in it
//	@Tags			folders
//	@Produce		json
//	@Param			id	path		string	true	"Folder id"
//	@Success		200	{object}	models.Selection	"Selection after the delete"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/folders/{id} [delete]
func (h *Handler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sel, err := h.svc.DeleteFolder(r.Context(), id)
	if err != nil {
		writeServiceError(w, "delete folder", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// DeleteItem handles DELETE /api/items/{id}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteItem(r.Context(), id); err != nil {
		writeServiceError(w, "delete item", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSelection handles GET /api/selection.
func (h *Handler) GetSelection(w http.ResponseWriter, r *http.Request) {
	sel, err := h.svc.Selection(r.Context())
	if err != nil {
		writeServiceError(w, "get selection", err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// PutSelection handles PUT /api/selection.
func (h *Handler) PutSelection(w http.ResponseWriter, r *http.Request) {
	var req SelectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sel, err := h.svc.Select(r.Context(), req.Selection())
	if err != nil {
		writeServiceError(w, "select", err, slog.String("folder", req.Folder), slog.String("item", req.Item))
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// ClearSelection handles DELETE /api/selection.
func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.Select(r.Context(), models.Selection{}); err != nil {
		writeServiceError(w, "clear selection", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RenameSelected handles PATCH /api/selection.
func (h *Handler) RenameSelected(w http.ResponseWriter, r *http.Request) {
	var req RenameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	changed, err := h.svc.RenameSelected(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, "rename selected", err)
		return
	}
	writeJSON(w, http.StatusOK, ChangedResponse{Changed: changed})
}

// DeleteSelected handles POST /api/selection/delete.
func (h *Handler) DeleteSelected(w http.ResponseWriter, r *http.Request) {
	sel, changed, err := h.svc.DeleteSelected(r.Context())
	if err != nil {
		writeServiceError(w, "delete selected", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteSelectedResponse{Changed: changed, Selection: sel})
}

// Breadcrumb handles GET /api/breadcrumb/{id}.
//
//	@Summary		Folder chain from the root to a node
//	@Tags			tree
//	@Produce		json
//	@Param			id	path	string	true	"Folder or item id"
//	@Success		200	{array}	tree.Crumb
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/breadcrumb/{id} [get]
func (h *Handler) Breadcrumb(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	crumbs, err := h.svc.Breadcrumb(r.Context(), id)
	if err != nil {
		writeServiceError(w, "breadcrumb", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, crumbs)
}

// Search handles GET /api/search.
//
//	@Summary		Search folder and item names
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			kind	query		string	false	"Restrict to one kind"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	map[string][]storage.SearchHit
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	var kind models.Kind
	if raw := r.URL.Query().Get("kind"); raw != "" {
		k, err := treeservice.ParseKind(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return
		}
		kind = k
	}
	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	results, err := h.svc.Search(r.Context(), kind, q, limit)
	if err != nil {
		writeServiceError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Undo handles POST /api/undo.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	changed, err := h.svc.Undo(r.Context())
	if err != nil {
		writeServiceError(w, "undo", err)
		return
	}
	writeJSON(w, http.StatusOK, ChangedResponse{Changed: changed})
}

// Redo handles POST /api/redo.
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	changed, err := h.svc.Redo(r.Context())
	if err != nil {
		writeServiceError(w, "redo", err)
		return
	}
	writeJSON(w, http.StatusOK, ChangedResponse{Changed: changed})
}
