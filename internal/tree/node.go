// Package tree projects the flat folder/item collections into nested trees
// and implements the structural algorithms that operate on them: flattening
// back into sort records, drag-and-drop moves, cascade deletes and search.
//
// Nothing in this package returns an error. Unknown ids produce empty
// results and invalid drops are reported through a boolean.
package tree

import (
	"sort"

	"github.com/starford/lattice/internal/models"
)

// Node is a rendered tree node. It is derived from the store on every read
// and never persisted.
type Node struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	Folder      bool    `json:"folder,omitempty"`
	Placeholder bool    `json:"placeholder,omitempty"`
	Children    []*Node `json:"children,omitempty"`
}

// Container reports whether other nodes may be dropped onto n.
func (n *Node) Container() bool {
	if n.Folder {
		return true
	}
	for _, c := range n.Children {
		if !c.Placeholder {
			return true
		}
	}
	return false
}

// BuildOptions tunes Build.
type BuildOptions struct {
	// Placeholders adds one synthetic child to every empty folder, for tree
	// widgets that only draw an expand affordance on nodes with children.
	Placeholders bool
}

// PlaceholderID returns the id of the synthetic child of folderID.
func PlaceholderID(folderID string) string {
	return folderID + "::placeholder"
}

type entry struct {
	node   *Node
	parent string
	order  int
}

// Build nests folders and items under their parents. Siblings are sorted by
// order with a stable sort, so ties keep their input position (folders come
// before items). Parentless entities, and entities whose parent is not a
// known folder, become roots. Entities caught in a parent cycle are cut out
// of the cycle and appended as roots.
func Build(folders []models.Folder, items []models.Item, opts BuildOptions) []*Node {
	folderIDs := make(map[string]struct{}, len(folders))
	for _, f := range folders {
		folderIDs[f.ID] = struct{}{}
	}

	entries := make([]entry, 0, len(folders)+len(items))
	for _, f := range folders {
		entries = append(entries, entry{
			node:   &Node{ID: f.ID, Label: f.Name, Folder: true},
			parent: f.ParentID,
			order:  f.Order,
		})
	}
	for _, it := range items {
		entries = append(entries, entry{
			node:   &Node{ID: it.ID, Label: it.Name},
			parent: it.ParentID,
			order:  it.Order,
		})
	}

	children := make(map[string][]entry)
	var roots []entry
	for _, e := range entries {
		_, known := folderIDs[e.parent]
		if e.parent == "" || !known || e.parent == e.node.ID {
			roots = append(roots, e)
			continue
		}
		children[e.parent] = append(children[e.parent], e)
	}

	visited := make(map[string]bool, len(entries))
	var attach func(n *Node)
	attach = func(n *Node) {
		visited[n.ID] = true
		for _, c := range sortEntries(children[n.ID]) {
			if visited[c.node.ID] {
				continue
			}
			n.Children = append(n.Children, c.node)
			attach(c.node)
		}
		if opts.Placeholders && n.Folder && len(n.Children) == 0 {
			n.Children = []*Node{{ID: PlaceholderID(n.ID), Placeholder: true}}
		}
	}

	out := make([]*Node, 0, len(roots))
	for _, r := range sortEntries(roots) {
		if visited[r.node.ID] {
			continue
		}
		out = append(out, r.node)
		attach(r.node)
	}
	for _, e := range entries {
		if visited[e.node.ID] {
			continue
		}
		out = append(out, e.node)
		attach(e.node)
	}
	return out
}

func sortEntries(es []entry) []entry {
	sort.SliceStable(es, func(i, j int) bool { return es[i].order < es[j].order })
	return es
}

// Flatten walks nodes depth-first and emits one sort record per real node:
// order is the 1-based position among its real siblings and parent is the
// enclosing node, or parent for the top level. Placeholders are skipped.
func Flatten(nodes []*Node, parent string) []models.SortRecord {
	var out []models.SortRecord
	pos := 0
	for _, n := range nodes {
		if n.Placeholder {
			continue
		}
		pos++
		out = append(out, models.SortRecord{ID: n.ID, ParentID: parent, Order: pos})
		out = append(out, Flatten(n.Children, n.ID)...)
	}
	return out
}

// FlattenTree flattens the children of every root under that root. Root
// containers cannot be reordered, so they are not part of the result.
func FlattenTree(roots []*Node) []models.SortRecord {
	var out []models.SortRecord
	for _, r := range roots {
		if r.Placeholder {
			continue
		}
		out = append(out, Flatten(r.Children, r.ID)...)
	}
	return out
}

// Find returns the node with the given id and its parent (nil for roots).
func Find(roots []*Node, id string) (node, parent *Node, ok bool) {
	var walk func(nodes []*Node, p *Node) bool
	walk = func(nodes []*Node, p *Node) bool {
		for _, n := range nodes {
			if n.ID == id {
				node, parent = n, p
				return true
			}
			if walk(n.Children, n) {
				return true
			}
		}
		return false
	}
	ok = walk(roots, nil)
	return node, parent, ok
}

// Clone deep-copies a forest.
func Clone(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		cp := *n
		cp.Children = Clone(n.Children)
		out[i] = &cp
	}
	return out
}

// Contains reports whether id is n itself or one of its descendants.
func Contains(n *Node, id string) bool {
	if n.ID == id {
		return true
	}
	for _, c := range n.Children {
		if Contains(c, id) {
			return true
		}
	}
	return false
}
