package tree

import "github.com/starford/lattice/internal/models"

// Position says where a dragged node lands relative to the drop target.
type Position string

const (
	Before Position = "before"
	After  Position = "after"
	Onto   Position = "onto"
)

// ParsePosition validates a position coming from a client.
func ParsePosition(s string) (Position, bool) {
	switch p := Position(s); p {
	case Before, After, Onto:
		return p, true
	}
	return "", false
}

// Policy selects which drops AllowDrop accepts.
type Policy string

const (
	// Restrictive only reorders among siblings when dropping before or after
	// a node. Dropping onto a container may still reparent.
	Restrictive Policy = "restrictive"
	// Unrestricted allows reparenting anywhere a container can hold the node.
	Unrestricted Policy = "unrestricted"
)

// Drop describes one drag-and-drop gesture.
type Drop struct {
	DragID   string   `json:"drag"`
	TargetID string   `json:"target"`
	Position Position `json:"position"`
}

// AllowDrop reports whether d may be applied to roots under policy.
func AllowDrop(roots []*Node, d Drop, policy Policy) bool {
	if d.DragID == "" || d.DragID == d.TargetID {
		return false
	}
	drag, dragParent, ok := Find(roots, d.DragID)
	if !ok || drag.Placeholder {
		return false
	}
	target, targetParent, ok := Find(roots, d.TargetID)
	if !ok || target.Placeholder {
		return false
	}
	// Root containers stay where they are.
	if dragParent == nil {
		return false
	}
	if Contains(drag, target.ID) {
		return false
	}

	switch d.Position {
	case Before, After:
		if targetParent == nil {
			return false
		}
		if policy != Unrestricted && targetParent.ID != dragParent.ID {
			return false
		}
	case Onto:
		if !target.Container() {
			return false
		}
	default:
		return false
	}
	return true
}

// Move applies d to a copy of roots and returns the new forest together with
// the sort records that describe it. When the drop is not allowed the input
// is returned untouched with ok set to false.
func Move(roots []*Node, d Drop, policy Policy) (out []*Node, records []models.SortRecord, ok bool) {
	if !AllowDrop(roots, d, policy) {
		return roots, nil, false
	}

	out = Clone(roots)
	drag, parent, _ := Find(out, d.DragID)
	parent.Children = removeChild(parent.Children, drag.ID)

	target, targetParent, _ := Find(out, d.TargetID)
	switch d.Position {
	case Before, After:
		idx := indexOf(targetParent.Children, target.ID)
		if d.Position == After {
			idx++
		}
		targetParent.Children = insertAt(targetParent.Children, idx, drag)
	case Onto:
		target.Children = insertAt(realChildren(target.Children), 0, drag)
	}

	return out, FlattenTree(out), true
}

func removeChild(nodes []*Node, id string) []*Node {
	out := nodes[:0:0]
	for _, n := range nodes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}

func realChildren(nodes []*Node) []*Node {
	out := nodes[:0:0]
	for _, n := range nodes {
		if !n.Placeholder {
			out = append(out, n)
		}
	}
	return out
}

func indexOf(nodes []*Node, id string) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return len(nodes)
}

func insertAt(nodes []*Node, idx int, n *Node) []*Node {
	out := make([]*Node, 0, len(nodes)+1)
	out = append(out, nodes[:idx]...)
	out = append(out, n)
	return append(out, nodes[idx:]...)
}
