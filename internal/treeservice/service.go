// Package treeservice is the application layer shared by the REST API and
// the MCP server. It turns silent no-ops of the state reducers into apperr
// sentinels.
package treeservice

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/lattice/internal/apperr"
	"github.com/starford/lattice/internal/checksum"
	"github.com/starford/lattice/internal/models"
	"github.com/starford/lattice/internal/state"
	"github.com/starford/lattice/internal/storage"
	"github.com/starford/lattice/internal/tree"
)

// TreeView is one kind's projected tree.
type TreeView struct {
	Kind  models.Kind  `json:"kind"`
	Nodes []*tree.Node `json:"nodes"`
	// Expand lists the folders a client should open to show filter matches.
	Expand []string `json:"expand,omitempty"`
	ETag   string   `json:"etag"`
}

// Options configures a Service.
type Options struct {
	Policy       tree.Policy
	Placeholders bool
	// BeforeSearch runs before storage searches, typically a flush so the
	// index sees recent edits.
	BeforeSearch func(ctx context.Context) error
	// NewID generates entity ids; nil means random UUIDs.
	NewID func() string
}

// Service coordinates the store and the storage provider.
type Service struct {
	store *state.Store
	db    storage.Provider
	opts  Options
}

// NewService creates a new tree service.
func NewService(store *state.Store, db storage.Provider, opts Options) *Service {
	if opts.Policy == "" {
		opts.Policy = tree.Restrictive
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{store: store, db: db, opts: opts}
}

// Policy returns the move policy in effect.
func (s *Service) Policy() tree.Policy { return s.opts.Policy }

// ParseKind validates a kind coming from a client.
func ParseKind(raw string) (models.Kind, error) {
	k := models.Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown kind %q: %w", raw, apperr.ErrInvalid)
	}
	return k, nil
}

// Tree returns the tree of kind, filtered by query when it is not empty.
// placeholders overrides the configured default when non-nil.
func (s *Service) Tree(ctx context.Context, kind models.Kind, query string, placeholders *bool) (*TreeView, error) {
	if !kind.Valid() {
		return nil, apperr.ErrInvalid
	}
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	opts := tree.BuildOptions{Placeholders: s.opts.Placeholders}
	if placeholders != nil {
		opts.Placeholders = *placeholders
	}

	view := &TreeView{Kind: kind, Nodes: snap.Tree(kind, opts), ETag: ETag(snap, kind)}
	if q := strings.TrimSpace(query); q != "" {
		view.Nodes, view.Expand = tree.Filter(view.Nodes, q)
	}
	if view.Nodes == nil {
		view.Nodes = []*tree.Node{}
	}
	return view, nil
}

// ETag returns the SHA-256 of the sort state (id, parent, order) of every
// entity of kind. It changes whenever a reorder, move, add or delete touches
// the kind.
func ETag(st state.State, kind models.Kind) string {
	folders, items := st.Partition(kind)
	recs := struct {
		Folders []models.SortRecord `json:"f"`
		Items   []models.SortRecord `json:"i"`
	}{
		Folders: make([]models.SortRecord, len(folders)),
		Items:   make([]models.SortRecord, len(items)),
	}
	for i, f := range folders {
		recs.Folders[i] = models.SortRecord{ID: f.ID, ParentID: f.ParentID, Order: f.Order}
	}
	for i, it := range items {
		recs.Items[i] = models.SortRecord{ID: it.ID, ParentID: it.ParentID, Order: it.Order}
	}
	// SortRecord always marshals.
	etag, _ := checksum.JSON(recs)
	return etag
}

// CreateInput describes a new folder or item.
type CreateInput struct {
	Name   string
	Parent string
	Kind   models.Kind
	// Order places the entity among its siblings; zero appends it.
	Order int
}

func (s *Service) checkParent(snap state.State, parent string, kind models.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("kind %q: %w", kind, apperr.ErrInvalid)
	}
	if parent == "" {
		return nil
	}
	f, ok := snap.Folder(parent)
	if !ok {
		return fmt.Errorf("parent %s: %w", parent, apperr.ErrNotFound)
	}
	if f.Kind != kind {
		return fmt.Errorf("parent %s has kind %s: %w", parent, f.Kind, apperr.ErrInvalid)
	}
	return nil
}

// CreateFolder adds a folder and returns it with its final order.
func (s *Service) CreateFolder(ctx context.Context, in CreateInput) (models.Folder, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return models.Folder{}, err
	}
	if err := s.checkParent(snap, in.Parent, in.Kind); err != nil {
		return models.Folder{}, err
	}
	f := models.Folder{ID: s.opts.NewID(), Name: in.Name, Order: in.Order, ParentID: in.Parent, Kind: in.Kind}
	next, out, err := s.store.Dispatch(ctx, state.AddFolder{Folder: f})
	if err != nil {
		return models.Folder{}, err
	}
	if !out.Changed {
		return models.Folder{}, apperr.ErrAlreadyExists
	}
	created, _ := next.Folder(f.ID)
	return created, nil
}

// CreateItem adds an item and returns it with its final order.
func (s *Service) CreateItem(ctx context.Context, in CreateInput) (models.Item, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return models.Item{}, err
	}
	if err := s.checkParent(snap, in.Parent, in.Kind); err != nil {
		return models.Item{}, err
	}
	it := models.Item{ID: s.opts.NewID(), Name: in.Name, Order: in.Order, ParentID: in.Parent, Kind: in.Kind}
	next, out, err := s.store.Dispatch(ctx, state.AddItem{Item: it})
	if err != nil {
		return models.Item{}, err
	}
	if !out.Changed {
		return models.Item{}, apperr.ErrAlreadyExists
	}
	created, _ := next.Item(it.ID)
	return created, nil
}

// RenameFolder renames a folder.
func (s *Service) RenameFolder(ctx context.Context, id, name string) (models.Folder, error) {
	next, _, err := s.store.Dispatch(ctx, state.RenameFolder{ID: id, Name: name})
	if err != nil {
		return models.Folder{}, err
	}
	f, ok := next.Folder(id)
	if !ok {
		return models.Folder{}, apperr.ErrNotFound
	}
	return f, nil
}

// RenameItem renames an item.
func (s *Service) RenameItem(ctx context.Context, id, name string) (models.Item, error) {
	next, _, err := s.store.Dispatch(ctx, state.RenameItem{ID: id, Name: name})
	if err != nil {
		return models.Item{}, err
	}
	it, ok := next.Item(id)
	if !ok {
		return models.Item{}, apperr.ErrNotFound
	}
	return it, nil
}

// DeleteFolder cascade-deletes a folder and returns the new selection.
func (s *Service) DeleteFolder(ctx context.Context, id string) (models.Selection, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return models.Selection{}, err
	}
	f, ok := snap.Folder(id)
	if !ok {
		return models.Selection{}, apperr.ErrNotFound
	}
	next, out, err := s.store.Dispatch(ctx, state.DeleteFolder{ID: id, Kind: f.Kind})
	if err != nil {
		return models.Selection{}, err
	}
	if !out.Changed {
		// Removed concurrently.
		return models.Selection{}, apperr.ErrNotFound
	}
	return next.Selection, nil
}

// DeleteItem removes an item.
func (s *Service) DeleteItem(ctx context.Context, id string) error {
	_, out, err := s.store.Dispatch(ctx, state.DeleteItem{ID: id})
	if err != nil {
		return err
	}
	if !out.Changed {
		return apperr.ErrNotFound
	}
	return nil
}

// Move executes a drop in kind's tree and reports whether it changed
// anything. Rejected drops are not errors.
func (s *Service) Move(ctx context.Context, kind models.Kind, d tree.Drop) (bool, error) {
	if !kind.Valid() {
		return false, apperr.ErrInvalid
	}
	if _, ok := tree.ParsePosition(string(d.Position)); !ok {
		return false, fmt.Errorf("position %q: %w", d.Position, apperr.ErrInvalid)
	}
	_, out, err := s.store.Dispatch(ctx, state.Move{Kind: kind, Drop: d, Policy: s.opts.Policy})
	if err != nil {
		return false, err
	}
	return out.Changed, nil
}

// ApplySort writes sort records for kind. A non-empty ifMatch must equal the
// kind's current ETag or apperr.ErrConflict is returned. The comparison and
// the write happen atomically inside the store. It returns the new ETag.
func (s *Service) ApplySort(ctx context.Context, kind models.Kind, records []models.SortRecord, ifMatch string) (string, error) {
	if !kind.Valid() {
		return "", apperr.ErrInvalid
	}
	cmd := &guardedSort{kind: kind, records: records, ifMatch: ifMatch}
	next, _, err := s.store.Dispatch(ctx, cmd)
	if err != nil {
		return "", err
	}
	if cmd.mismatch {
		return "", apperr.ErrConflict
	}
	return ETag(next, kind), nil
}

// guardedSort applies records that belong to kind, provided the kind's ETag
// still matches ifMatch. It runs on the store loop, so the check and the
// write cannot interleave with other commands.
type guardedSort struct {
	kind    models.Kind
	records []models.SortRecord
	ifMatch string

	mismatch bool
}

func (*guardedSort) Op() string { return state.ApplySort{}.Op() }

func (c *guardedSort) Apply(s state.State) (state.State, state.Outcome) {
	if c.ifMatch != "" && c.ifMatch != ETag(s, c.kind) {
		c.mismatch = true
		return s, state.Outcome{}
	}
	var own []models.SortRecord
	for _, r := range c.records {
		if k, ok := s.Kind(r.ID); ok && k == c.kind {
			own = append(own, r)
		}
	}
	return state.ApplySort{Records: own}.Apply(s)
}

// Selection returns the current selection.
func (s *Service) Selection(ctx context.Context) (models.Selection, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return models.Selection{}, err
	}
	return snap.Selection, nil
}

// Select replaces the selection. An empty selection clears it; setting both
// a folder and an item is invalid.
func (s *Service) Select(ctx context.Context, sel models.Selection) (models.Selection, error) {
	var cmd state.Command
	switch {
	case sel.FolderID != "" && sel.ItemID != "":
		return models.Selection{}, fmt.Errorf("select a folder or an item: %w", apperr.ErrInvalid)
	case sel.FolderID != "":
		cmd = state.SelectFolder{ID: sel.FolderID}
	case sel.ItemID != "":
		cmd = state.SelectItem{ID: sel.ItemID}
	default:
		cmd = state.ClearSelection{}
	}
	next, _, err := s.store.Dispatch(ctx, cmd)
	if err != nil {
		return models.Selection{}, err
	}
	if next.Selection != sel {
		return models.Selection{}, apperr.ErrNotFound
	}
	return next.Selection, nil
}

// RenameSelected renames whatever is selected. It reports false when nothing
// is selected.
func (s *Service) RenameSelected(ctx context.Context, name string) (bool, error) {
	_, out, err := s.store.Dispatch(ctx, state.RenameSelected{Name: name})
	if err != nil {
		return false, err
	}
	return out.Changed, nil
}

// DeleteSelected deletes whatever is selected and returns the new selection.
func (s *Service) DeleteSelected(ctx context.Context) (models.Selection, bool, error) {
	next, out, err := s.store.Dispatch(ctx, state.DeleteSelected{})
	if err != nil {
		return models.Selection{}, false, err
	}
	return next.Selection, out.Changed, nil
}

// Breadcrumb returns the ancestor chain of id, root first.
func (s *Service) Breadcrumb(ctx context.Context, id string) ([]tree.Crumb, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	kind, ok := snap.Kind(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	folders, items := snap.Partition(kind)
	return tree.Breadcrumb(folders, items, id), nil
}

// Search matches entity names in storage. An empty kind searches every kind.
func (s *Service) Search(ctx context.Context, kind models.Kind, query string, limit int) ([]storage.SearchHit, error) {
	if kind != "" && !kind.Valid() {
		return nil, apperr.ErrInvalid
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query: %w", apperr.ErrInvalid)
	}
	if s.opts.BeforeSearch != nil {
		if err := s.opts.BeforeSearch(ctx); err != nil {
			return nil, fmt.Errorf("treeservice: search: %w", err)
		}
	}
	hits, err := s.db.Search(ctx, kind, query, limit)
	if err != nil {
		return nil, fmt.Errorf("treeservice: search: %w", err)
	}
	if hits == nil {
		hits = []storage.SearchHit{}
	}
	return hits, nil
}

// Undo reverts the last tree change. It reports false when there is nothing
// to undo.
func (s *Service) Undo(ctx context.Context) (bool, error) {
	_, ok, err := s.store.Undo(ctx)
	return ok, err
}

// Redo re-applies the last undone change.
func (s *Service) Redo(ctx context.Context) (bool, error) {
	_, ok, err := s.store.Redo(ctx)
	return ok, err
}
