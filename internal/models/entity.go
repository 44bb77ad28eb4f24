// Package models defines the domain types for Lattice.
package models

// Kind partitions folders and items into independent trees.
type Kind string

const (
	KindAPI       Kind = "api"
	KindScheduler Kind = "scheduler"
	KindDatabase  Kind = "database"
)

// Kinds lists every known kind in display order.
var Kinds = []Kind{KindAPI, KindScheduler, KindDatabase}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Folder is a grouping node. An empty ParentID marks a root folder.
type Folder struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Order    int    `json:"order"`
	ParentID string `json:"parent,omitempty"`
	Kind     Kind   `json:"kind"`
}

// Item is a leaf entity: an API endpoint, a scheduler job or a database table.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Order    int    `json:"order"`
	ParentID string `json:"parent,omitempty"`
	Kind     Kind   `json:"kind"`
}

// SortRecord is the minimal patch used to persist a reorder.
type SortRecord struct {
	ID       string `json:"id"`
	ParentID string `json:"parent,omitempty"`
	Order    int    `json:"order"`
}

// Selection holds at most one selected folder or item, never both.
type Selection struct {
	FolderID string `json:"folder,omitempty"`
	ItemID   string `json:"item,omitempty"`
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return s.FolderID == "" && s.ItemID == ""
}
