package tree

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/lattice/internal/models"
)

func sampleForest() []*Node {
	folders := []models.Folder{
		folder("A", "", 1),
		folder("B", "A", 1),
		folder("C", "A", 2),
	}
	items := []models.Item{
		item("x", "B", 1),
		item("y", "B", 2),
		item("z", "C", 1),
	}
	return Build(folders, items, BuildOptions{})
}

func TestMove_AfterSibling(t *testing.T) {
	roots := sampleForest()

	_, records, ok := Move(roots, Drop{DragID: "x", TargetID: "y", Position: After}, Restrictive)
	if !ok {
		t.Fatal("move rejected")
	}

	got := map[string]models.SortRecord{}
	for _, r := range records {
		got[r.ID] = r
	}
	if got["y"].Order != 1 || got["x"].Order != 2 {
		t.Errorf("orders = y:%d x:%d, want y:1 x:2", got["y"].Order, got["x"].Order)
	}
	if got["x"].ParentID != "B" || got["y"].ParentID != "B" {
		t.Error("parents should stay B")
	}
}

func TestMove_BeforeSibling(t *testing.T) {
	roots := sampleForest()

	out, _, ok := Move(roots, Drop{DragID: "C", TargetID: "B", Position: Before}, Restrictive)
	if !ok {
		t.Fatal("move rejected")
	}
	want := []any{map[string][]any{"A": {
		map[string][]any{"C": {"z"}},
		map[string][]any{"B": {"x", "y"}},
	}}}
	if diff := cmp.Diff(want, shape(out)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestMove_DoesNotMutateInput(t *testing.T) {
	roots := sampleForest()
	before := shape(roots)

	if _, _, ok := Move(roots, Drop{DragID: "x", TargetID: "C", Position: Onto}, Restrictive); !ok {
		t.Fatal("move rejected")
	}
	if diff := cmp.Diff(before, shape(roots)); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
}

func TestMove_OntoContainerUnshifts(t *testing.T) {
	roots := sampleForest()

	out, records, ok := Move(roots, Drop{DragID: "x", TargetID: "C", Position: Onto}, Restrictive)
	if !ok {
		t.Fatal("move rejected")
	}
	want := []any{map[string][]any{"A": {
		map[string][]any{"B": {"y"}},
		map[string][]any{"C": {"x", "z"}},
	}}}
	if diff := cmp.Diff(want, shape(out)); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
	for _, r := range records {
		if r.ID == "x" && (r.ParentID != "C" || r.Order != 1) {
			t.Errorf("x record = %+v", r)
		}
	}
}

func TestMove_OntoEmptyFolderDropsPlaceholder(t *testing.T) {
	folders := []models.Folder{folder("A", "", 1), folder("E", "A", 2)}
	items := []models.Item{item("x", "A", 1)}
	roots := Build(folders, items, BuildOptions{Placeholders: true})

	out, records, ok := Move(roots, Drop{DragID: "x", TargetID: "E", Position: Onto}, Restrictive)
	if !ok {
		t.Fatal("move rejected")
	}
	e, _, _ := Find(out, "E")
	if len(e.Children) != 1 || e.Children[0].ID != "x" {
		t.Errorf("E children = %+v", e.Children)
	}
	for _, r := range records {
		if r.ID == PlaceholderID("E") {
			t.Error("placeholder leaked into records")
		}
	}
}

func TestAllowDrop(t *testing.T) {
	roots := sampleForest()
	tests := []struct {
		name   string
		drop   Drop
		policy Policy
		want   bool
	}{
		{"sibling reorder", Drop{"x", "y", Before}, Restrictive, true},
		{"onto leaf item", Drop{"x", "z", Onto}, Unrestricted, false},
		{"onto folder", Drop{"x", "C", Onto}, Restrictive, true},
		{"cross parent restrictive", Drop{"x", "z", After}, Restrictive, false},
		{"cross parent unrestricted", Drop{"x", "z", After}, Unrestricted, true},
		{"drag root", Drop{"A", "B", Onto}, Unrestricted, false},
		{"beside root", Drop{"B", "A", Before}, Unrestricted, false},
		{"onto itself", Drop{"B", "B", Onto}, Unrestricted, false},
		{"into own subtree", Drop{"B", "x", Before}, Unrestricted, false},
		{"unknown drag", Drop{"nope", "x", Before}, Unrestricted, false},
		{"unknown target", Drop{"x", "nope", Before}, Unrestricted, false},
		{"bad position", Drop{"x", "y", "sideways"}, Unrestricted, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AllowDrop(roots, tt.drop, tt.policy); got != tt.want {
				t.Errorf("AllowDrop(%+v, %s) = %v, want %v", tt.drop, tt.policy, got, tt.want)
			}
		})
	}
}

func TestMove_RejectedReturnsInput(t *testing.T) {
	roots := sampleForest()

	out, records, ok := Move(roots, Drop{DragID: "x", TargetID: "z", Position: Onto}, Unrestricted)
	if ok {
		t.Fatal("drop onto a leaf should be rejected")
	}
	if records != nil {
		t.Errorf("records = %v, want nil", records)
	}
	if diff := cmp.Diff(shape(roots), shape(out)); diff != "" {
		t.Errorf("rejected move changed tree:\n%s", diff)
	}
}

func TestParsePosition(t *testing.T) {
	for _, s := range []string{"before", "after", "onto"} {
		if _, ok := ParsePosition(s); !ok {
			t.Errorf("ParsePosition(%q) rejected", s)
		}
	}
	if _, ok := ParsePosition("inside"); ok {
		t.Error("ParsePosition accepted unknown value")
	}
}
