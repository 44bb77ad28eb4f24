package state

import (
	"github.com/starford/lattice/internal/models"
	"github.com/starford/lattice/internal/tree"
)

// Outcome reports what a command did.
type Outcome struct {
	Changed bool
	// Kinds lists the trees whose content changed. Selection-only changes
	// leave it empty.
	Kinds []models.Kind
}

func unchanged() Outcome { return Outcome{} }

func changed(kinds ...models.Kind) Outcome {
	return Outcome{Changed: true, Kinds: kinds}
}

// Command is a named state transition; Op identifies it in change events. Apply must not modify its input.
type Command interface {
	Op() string
	Apply(s State) (State, Outcome)
}

// Reduce applies cmd to s. Commands that reference unknown ids return s
// unchanged.
func Reduce(s State, cmd Command) (State, Outcome) {
	if cmd == nil {
		return s, unchanged()
	}
	return cmd.Apply(s)
}

// AddFolder appends a folder. A zero order places it after its last sibling.
type AddFolder struct{ Folder models.Folder }

func (AddFolder) Op() string { return "add_folder" }

func (c AddFolder) Apply(s State) (State, Outcome) {
	f := c.Folder
	if f.ID == "" || !f.Kind.Valid() || s.hasID(f.ID) || !s.validParent(f.ParentID, f.Kind) {
		return s, unchanged()
	}
	if f.Order == 0 {
		f.Order = s.nextOrder(f.ParentID, f.Kind)
	}
	next := s.clone()
	next.Folders = append(next.Folders, f)
	return next.renumber(f.Kind), changed(f.Kind)
}

// AddItem appends an item. A zero order places it after its last sibling.
type AddItem struct{ Item models.Item }

func (AddItem) Op() string { return "add_item" }

func (c AddItem) Apply(s State) (State, Outcome) {
	it := c.Item
	if it.ID == "" || !it.Kind.Valid() || s.hasID(it.ID) || !s.validParent(it.ParentID, it.Kind) {
		return s, unchanged()
	}
	if it.Order == 0 {
		it.Order = s.nextOrder(it.ParentID, it.Kind)
	}
	next := s.clone()
	next.Items = append(next.Items, it)
	return next.renumber(it.Kind), changed(it.Kind)
}

// RenameFolder changes a folder's display name.
type RenameFolder struct {
	ID   string
	Name string
}

func (RenameFolder) Op() string { return "rename_folder" }

func (c RenameFolder) Apply(s State) (State, Outcome) {
	for i, f := range s.Folders {
		if f.ID != c.ID {
			continue
		}
		if f.Name == c.Name {
			return s, unchanged()
		}
		next := s.clone()
		next.Folders[i].Name = c.Name
		return next, changed(f.Kind)
	}
	return s, unchanged()
}

// RenameItem changes an item's display name.
type RenameItem struct {
	ID   string
	Name string
}

func (RenameItem) Op() string { return "rename_item" }

func (c RenameItem) Apply(s State) (State, Outcome) {
	for i, it := range s.Items {
		if it.ID != c.ID {
			continue
		}
		if it.Name == c.Name {
			return s, unchanged()
		}
		next := s.clone()
		next.Items[i].Name = c.Name
		return next, changed(it.Kind)
	}
	return s, unchanged()
}

// DeleteItem removes one item and clears the selection if it pointed at it.
type DeleteItem struct{ ID string }

func (DeleteItem) Op() string { return "delete_item" }

func (c DeleteItem) Apply(s State) (State, Outcome) {
	it, ok := s.Item(c.ID)
	if !ok {
		return s, unchanged()
	}
	next := State{Folders: s.Folders, Selection: s.Selection}
	next.Items = make([]models.Item, 0, len(s.Items)-1)
	for _, other := range s.Items {
		if other.ID != c.ID {
			next.Items = append(next.Items, other)
		}
	}
	if next.Selection.ItemID == c.ID {
		next.Selection = models.Selection{}
	}
	next = next.clone()
	return next.renumber(it.Kind), changed(it.Kind)
}

// DeleteFolder removes a folder of the given kind together with every
// nested folder and item. The selection moves to the former parent.
type DeleteFolder struct {
	ID   string
	Kind models.Kind
}

func (DeleteFolder) Op() string { return "delete_folder" }

func (c DeleteFolder) Apply(s State) (State, Outcome) {
	res := tree.Cascade(s.Folders, s.Items, c.ID, c.Kind)
	if !res.Found {
		return s, unchanged()
	}
	next := State{Folders: res.Folders, Items: res.Items}
	if res.Fallback != "" {
		next.Selection = models.Selection{FolderID: res.Fallback}
	}
	next = next.clone()
	return next.renumber(c.Kind), changed(c.Kind)
}

// ApplySort writes (parent, order) pairs. Records naming unknown ids,
// invalid parents or parents that would form a cycle are skipped.
type ApplySort struct{ Records []models.SortRecord }

func (ApplySort) Op() string { return "apply_sort" }

func (c ApplySort) Apply(s State) (State, Outcome) {
	folderRecs, itemRecs := splitRecords(s, c.Records)
	next, kf := applyFolderSort(s, folderRecs)
	next, ki := applyItemSort(next, itemRecs)
	kinds := mergeKinds(kf, ki)
	if len(kinds) == 0 {
		return s, unchanged()
	}
	return next, changed(kinds...)
}

// splitRecords partitions records by entity type. When an id appears more
// than once, its last record wins.
func splitRecords(s State, records []models.SortRecord) (folders, items []models.SortRecord) {
	last := make(map[string]int, len(records))
	for i, r := range records {
		last[r.ID] = i
	}
	for i, r := range records {
		if last[r.ID] != i {
			continue
		}
		if _, ok := s.Folder(r.ID); ok {
			folders = append(folders, r)
		} else if _, ok := s.Item(r.ID); ok {
			items = append(items, r)
		}
	}
	return folders, items
}

// applyFolderSort repeats passes until one applies nothing. A record skipped
// as a cycle may become valid once a later record moves its parent, and the
// result must not depend on how many times the batch is applied.
func applyFolderSort(s State, records []models.SortRecord) (State, []models.Kind) {
	var kinds []models.Kind
	cloned := false
	for {
		var applied bool
		s, cloned, applied = folderSortPass(s, records, cloned, &kinds)
		if !applied {
			return s, kinds
		}
	}
}

func folderSortPass(s State, records []models.SortRecord, cloned bool, kinds *[]models.Kind) (State, bool, bool) {
	applied := false
	for _, r := range records {
		for i, f := range s.Folders {
			if f.ID != r.ID {
				continue
			}
			if f.ParentID == r.ParentID && f.Order == r.Order {
				break
			}
			if r.ParentID != f.ParentID && (!s.validParent(r.ParentID, f.Kind) || s.isDescendant(r.ParentID, f.ID)) {
				break
			}
			if !cloned {
				s = s.clone()
				cloned = true
			}
			s.Folders[i].ParentID = r.ParentID
			s.Folders[i].Order = r.Order
			*kinds = appendKind(*kinds, f.Kind)
			applied = true
			break
		}
	}
	return s, cloned, applied
}

func applyItemSort(s State, records []models.SortRecord) (State, []models.Kind) {
	var kinds []models.Kind
	cloned := false
	for _, r := range records {
		for i, it := range s.Items {
			if it.ID != r.ID {
				continue
			}
			if it.ParentID == r.ParentID && it.Order == r.Order {
				break
			}
			if r.ParentID != it.ParentID && !s.validParent(r.ParentID, it.Kind) {
				break
			}
			if !cloned {
				s = s.clone()
				cloned = true
			}
			s.Items[i].ParentID = r.ParentID
			s.Items[i].Order = r.Order
			kinds = appendKind(kinds, it.Kind)
			break
		}
	}
	return s, kinds
}

func appendKind(kinds []models.Kind, k models.Kind) []models.Kind {
	for _, existing := range kinds {
		if existing == k {
			return kinds
		}
	}
	return append(kinds, k)
}

func mergeKinds(a, b []models.Kind) []models.Kind {
	for _, k := range b {
		a = appendKind(a, k)
	}
	return a
}

// Move executes a drag-and-drop gesture inside one kind's tree. Drops the
// policy rejects leave the state untouched.
type Move struct {
	Kind   models.Kind
	Drop   tree.Drop
	Policy tree.Policy
}

func (Move) Op() string { return "move" }

func (c Move) Apply(s State) (State, Outcome) {
	_, records, ok := tree.Move(s.Tree(c.Kind, tree.BuildOptions{}), c.Drop, c.Policy)
	if !ok {
		return s, unchanged()
	}
	folderRecs, itemRecs := splitRecords(s, records)
	next, kf := applyFolderSort(s, folderRecs)
	next, ki := applyItemSort(next, itemRecs)
	if len(kf) == 0 && len(ki) == 0 {
		return s, unchanged()
	}
	return next, changed(c.Kind)
}

// SelectFolder selects a folder and clears any selected item.
type SelectFolder struct{ ID string }

func (SelectFolder) Op() string { return "select_folder" }

func (c SelectFolder) Apply(s State) (State, Outcome) {
	if _, ok := s.Folder(c.ID); !ok {
		return s, unchanged()
	}
	sel := models.Selection{FolderID: c.ID}
	if s.Selection == sel {
		return s, unchanged()
	}
	s.Selection = sel
	return s, changed()
}

// SelectItem selects an item and clears any selected folder.
type SelectItem struct{ ID string }

func (SelectItem) Op() string { return "select_item" }

func (c SelectItem) Apply(s State) (State, Outcome) {
	if _, ok := s.Item(c.ID); !ok {
		return s, unchanged()
	}
	sel := models.Selection{ItemID: c.ID}
	if s.Selection == sel {
		return s, unchanged()
	}
	s.Selection = sel
	return s, changed()
}

// ClearSelection deselects everything.
type ClearSelection struct{}

func (ClearSelection) Op() string { return "clear_selection" }

func (ClearSelection) Apply(s State) (State, Outcome) {
	if s.Selection.Empty() {
		return s, unchanged()
	}
	s.Selection = models.Selection{}
	return s, changed()
}

// RenameSelected renames whatever is selected. Without a selection it does
// nothing.
type RenameSelected struct{ Name string }

func (RenameSelected) Op() string { return "rename_selected" }

func (c RenameSelected) Apply(s State) (State, Outcome) {
	switch {
	case s.Selection.FolderID != "":
		return RenameFolder{ID: s.Selection.FolderID, Name: c.Name}.Apply(s)
	case s.Selection.ItemID != "":
		return RenameItem{ID: s.Selection.ItemID, Name: c.Name}.Apply(s)
	}
	return s, unchanged()
}

// DeleteSelected deletes whatever is selected. Without a selection it does
// nothing.
type DeleteSelected struct{}

func (DeleteSelected) Op() string { return "delete_selected" }

func (DeleteSelected) Apply(s State) (State, Outcome) {
	switch {
	case s.Selection.FolderID != "":
		f, ok := s.Folder(s.Selection.FolderID)
		if !ok {
			return s, unchanged()
		}
		return DeleteFolder{ID: f.ID, Kind: f.Kind}.Apply(s)
	case s.Selection.ItemID != "":
		return DeleteItem{ID: s.Selection.ItemID}.Apply(s)
	}
	return s, unchanged()
}

// Replace loads a collection. With Kinds set, only entities of those kinds
// are replaced and the rest are kept; otherwise everything is replaced.
// Folders caught in a parent cycle become roots.
type Replace struct {
	Folders []models.Folder
	Items   []models.Item
	Kinds   []models.Kind
}

func (Replace) Op() string { return "replace" }

func (c Replace) Apply(s State) (State, Outcome) {
	kinds := c.Kinds
	if len(kinds) == 0 {
		kinds = models.Kinds
	}
	replaced := make(map[models.Kind]bool, len(kinds))
	for _, k := range kinds {
		replaced[k] = true
	}

	next := State{Selection: s.Selection}
	for _, f := range s.Folders {
		if !replaced[f.Kind] {
			next.Folders = append(next.Folders, f)
		}
	}
	for _, it := range s.Items {
		if !replaced[it.Kind] {
			next.Items = append(next.Items, it)
		}
	}
	for _, f := range c.Folders {
		if replaced[f.Kind] {
			next.Folders = append(next.Folders, f)
		}
	}
	for _, it := range c.Items {
		if replaced[it.Kind] {
			next.Items = append(next.Items, it)
		}
	}
	next.Folders = tree.BreakCycles(next.Folders)
	return next.sanitizeSelection(), changed(kinds...)
}
