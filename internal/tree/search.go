package tree

import (
	"strings"

	"github.com/starford/lattice/internal/models"
)

// Filter keeps the nodes whose label contains query (case-insensitive), the
// ancestors of those nodes and the whole subtree of every matching folder.
// It also returns the ids of kept ancestors, which a view should expand so
// the matches are visible. An empty query returns a copy of roots.
func Filter(roots []*Node, query string) (out []*Node, expand []string) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Clone(roots), nil
	}

	var filter func(n *Node) *Node
	filter = func(n *Node) *Node {
		if n.Placeholder {
			return nil
		}
		if strings.Contains(strings.ToLower(n.Label), q) {
			cp := Clone([]*Node{n})[0]
			return cp
		}
		var kept []*Node
		for _, c := range n.Children {
			if fc := filter(c); fc != nil {
				kept = append(kept, fc)
			}
		}
		if len(kept) == 0 {
			return nil
		}
		expand = append(expand, n.ID)
		cp := *n
		cp.Children = kept
		return &cp
	}

	for _, r := range roots {
		if fr := filter(r); fr != nil {
			out = append(out, fr)
		}
	}
	return out, expand
}

// Crumb is one step of a breadcrumb trail.
type Crumb struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Folder bool   `json:"folder"`
}

// Breadcrumb returns the chain of folders from the root down to the entity
// with the given id, the entity included. Unknown ids yield nil.
func Breadcrumb(folders []models.Folder, items []models.Item, id string) []Crumb {
	byID := make(map[string]models.Folder, len(folders))
	for _, f := range folders {
		byID[f.ID] = f
	}

	var trail []Crumb
	parent := ""
	if f, ok := byID[id]; ok {
		trail = append(trail, Crumb{ID: f.ID, Name: f.Name, Folder: true})
		parent = f.ParentID
	} else {
		found := false
		for _, it := range items {
			if it.ID == id {
				trail = append(trail, Crumb{ID: it.ID, Name: it.Name})
				parent = it.ParentID
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}

	seen := map[string]bool{id: true}
	for parent != "" && !seen[parent] {
		f, ok := byID[parent]
		if !ok {
			break
		}
		seen[parent] = true
		trail = append(trail, Crumb{ID: f.ID, Name: f.Name, Folder: true})
		parent = f.ParentID
	}

	for i, j := 0, len(trail)-1; i < j; i, j = i+1, j-1 {
		trail[i], trail[j] = trail[j], trail[i]
	}
	return trail
}
