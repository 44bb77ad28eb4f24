// Package state holds the workspace entity store. Every mutation is a pure
// transition Reduce(State, Command) -> State; Store serialises dispatches
// through a single goroutine and fans the resulting snapshots out to
// subscribers.
package state

import (
	"slices"

	"github.com/starford/lattice/internal/models"
	"github.com/starford/lattice/internal/tree"
)

// State is an immutable snapshot of the workspace. Reducers never modify the
// slices of a State they receive; they copy before writing.
type State struct {
	Folders   []models.Folder  `json:"folders"`
	Items     []models.Item    `json:"items"`
	Selection models.Selection `json:"selection"`
}

// Folder looks up a folder by id.
func (s State) Folder(id string) (models.Folder, bool) {
	for _, f := range s.Folders {
		if f.ID == id {
			return f, true
		}
	}
	return models.Folder{}, false
}

// Item looks up an item by id.
func (s State) Item(id string) (models.Item, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return models.Item{}, false
}

// Kind returns the kind of the folder or item with the given id.
func (s State) Kind(id string) (models.Kind, bool) {
	if f, ok := s.Folder(id); ok {
		return f.Kind, true
	}
	if it, ok := s.Item(id); ok {
		return it.Kind, true
	}
	return "", false
}

// Partition returns the folders and items of one kind, in store order.
func (s State) Partition(kind models.Kind) ([]models.Folder, []models.Item) {
	var folders []models.Folder
	for _, f := range s.Folders {
		if f.Kind == kind {
			folders = append(folders, f)
		}
	}
	var items []models.Item
	for _, it := range s.Items {
		if it.Kind == kind {
			items = append(items, it)
		}
	}
	return folders, items
}

// Tree projects one kind into a nested tree.
func (s State) Tree(kind models.Kind, opts tree.BuildOptions) []*tree.Node {
	folders, items := s.Partition(kind)
	return tree.Build(folders, items, opts)
}

func (s State) clone() State {
	return State{
		Folders:   slices.Clone(s.Folders),
		Items:     slices.Clone(s.Items),
		Selection: s.Selection,
	}
}

func (s State) hasID(id string) bool {
	_, ok := s.Kind(id)
	return ok
}

// isDescendant reports whether candidate lies in the folder subtree of root.
func (s State) isDescendant(candidate, root string) bool {
	parents := make(map[string]string, len(s.Folders))
	for _, f := range s.Folders {
		parents[f.ID] = f.ParentID
	}
	seen := map[string]bool{}
	for cur := candidate; cur != "" && !seen[cur]; cur = parents[cur] {
		if cur == root {
			return true
		}
		seen[cur] = true
	}
	return false
}

// validParent reports whether parent may hold an entity of the given kind.
func (s State) validParent(parent string, kind models.Kind) bool {
	if parent == "" {
		return true
	}
	f, ok := s.Folder(parent)
	return ok && f.Kind == kind
}

func (s State) nextOrder(parent string, kind models.Kind) int {
	max := 0
	for _, f := range s.Folders {
		if f.Kind == kind && f.ParentID == parent && f.Order > max {
			max = f.Order
		}
	}
	for _, it := range s.Items {
		if it.Kind == kind && it.ParentID == parent && it.Order > max {
			max = it.Order
		}
	}
	return max + 1
}

// sanitizeSelection drops a selection that points at a missing entity.
func (s State) sanitizeSelection() State {
	if s.Selection.FolderID != "" {
		if _, ok := s.Folder(s.Selection.FolderID); !ok {
			s.Selection = models.Selection{}
		}
	}
	if s.Selection.ItemID != "" {
		if _, ok := s.Item(s.Selection.ItemID); !ok {
			s.Selection = models.Selection{}
		}
	}
	return s
}

// renumber re-derives dense sibling orders for one kind from its tree. It
// writes into the slices of s, so callers pass a clone.
func (s State) renumber(kind models.Kind) State {
	records := tree.FlattenTree(s.Tree(kind, tree.BuildOptions{}))
	if len(records) == 0 {
		return s
	}
	byID := make(map[string]models.SortRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	for i, f := range s.Folders {
		if r, ok := byID[f.ID]; ok && f.Kind == kind {
			s.Folders[i].Order = r.Order
		}
	}
	for i, it := range s.Items {
		if r, ok := byID[it.ID]; ok && it.Kind == kind {
			s.Items[i].Order = r.Order
		}
	}
	return s
}
