// Package wire decodes collection exports of the builder backend, which
// identifies entities by numeric ids, and remaps them onto the string ids the
// workspace store uses.
package wire

import (
	"encoding/json"
	"fmt"
	"io"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/lattice/internal/models"
	"github.com/starford/lattice/internal/tree"
)

// Folder is a folder as exported by the backend.
type Folder struct {
	ID     int64       `json:"id"`
	Name   string      `json:"name"`
	Order  int         `json:"order"`
	Parent *int64      `json:"parent"`
	Kind   models.Kind `json:"kind"`
}

// Validate validates a wire folder.
func (f Folder) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.ID, validation.Required, validation.Min(int64(1))),
		validation.Field(&f.Kind, validation.Required, validation.By(validKind)),
	)
}

// Item is an item as exported by the backend.
type Item struct {
	ID     int64       `json:"id"`
	Name   string      `json:"name"`
	Order  int         `json:"order"`
	Folder *int64      `json:"folder"`
	Kind   models.Kind `json:"kind"`
}

// Validate validates a wire item.
func (it Item) Validate() error {
	return validation.ValidateStruct(&it,
		validation.Field(&it.ID, validation.Required, validation.Min(int64(1))),
		validation.Field(&it.Kind, validation.Required, validation.By(validKind)),
	)
}

func validKind(v any) error {
	k, _ := v.(models.Kind)
	if !k.Valid() {
		return fmt.Errorf("unknown kind %q", k)
	}
	return nil
}

// Snapshot is one export document.
type Snapshot struct {
	Folders []Folder `json:"folders"`
	Items   []Item   `json:"items"`
}

// Validate checks every entity and rejects duplicate ids.
func (s *Snapshot) Validate() error {
	if err := validation.ValidateStruct(s,
		validation.Field(&s.Folders),
		validation.Field(&s.Items),
	); err != nil {
		return err
	}
	seen := make(map[int64]bool, len(s.Folders))
	for _, f := range s.Folders {
		if seen[f.ID] {
			return fmt.Errorf("duplicate folder id %d", f.ID)
		}
		seen[f.ID] = true
	}
	seen = make(map[int64]bool, len(s.Items))
	for _, it := range s.Items {
		if seen[it.ID] {
			return fmt.Errorf("duplicate item id %d", it.ID)
		}
		seen[it.ID] = true
	}
	return nil
}

// Decode parses and validates an export document.
func Decode(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("wire: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("wire: validate: %w", err)
	}
	return &s, nil
}

// Remapped is a snapshot expressed with store ids.
type Remapped struct {
	Folders []models.Folder
	Items   []models.Item
	// Kinds lists the kinds present in the snapshot.
	Kinds []models.Kind
	// FolderIDs and ItemIDs map backend ids to store ids.
	FolderIDs map[int64]string
	ItemIDs   map[int64]string
}

// Remap assigns a fresh store id to every entity and rewrites parent
// references. Folder and item ids are separate namespaces on the wire.
// Parents that do not resolve to a folder of the same kind are dropped, so
// the entity lands at the root, and folders on a parent cycle become roots.
// newID defaults to random UUIDs.
func Remap(s *Snapshot, newID func() string) Remapped {
	if newID == nil {
		newID = uuid.NewString
	}
	out := Remapped{
		FolderIDs: make(map[int64]string, len(s.Folders)),
		ItemIDs:   make(map[int64]string, len(s.Items)),
	}
	kinds := make(map[int64]models.Kind, len(s.Folders))
	present := map[models.Kind]bool{}

	for _, f := range s.Folders {
		out.FolderIDs[f.ID] = newID()
		kinds[f.ID] = f.Kind
	}
	resolve := func(ref *int64, kind models.Kind) string {
		if ref == nil || kinds[*ref] != kind {
			return ""
		}
		return out.FolderIDs[*ref]
	}

	for _, f := range s.Folders {
		parent := resolve(f.Parent, f.Kind)
		if parent == out.FolderIDs[f.ID] {
			parent = ""
		}
		out.Folders = append(out.Folders, models.Folder{
			ID:       out.FolderIDs[f.ID],
			Name:     f.Name,
			Order:    f.Order,
			ParentID: parent,
			Kind:     f.Kind,
		})
		present[f.Kind] = true
	}
	out.Folders = tree.BreakCycles(out.Folders)
	for _, it := range s.Items {
		id := newID()
		out.ItemIDs[it.ID] = id
		out.Items = append(out.Items, models.Item{
			ID:       id,
			Name:     it.Name,
			Order:    it.Order,
			ParentID: resolve(it.Folder, it.Kind),
			Kind:     it.Kind,
		})
		present[it.Kind] = true
	}
	for _, k := range models.Kinds {
		if present[k] {
			out.Kinds = append(out.Kinds, k)
		}
	}
	return out
}
