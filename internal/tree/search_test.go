package tree

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/lattice/internal/models"
)

func TestFilter(t *testing.T) {
	folders := []models.Folder{
		{ID: "A", Name: "Accounts", Kind: models.KindAPI},
		{ID: "B", Name: "Users", ParentID: "A", Order: 1, Kind: models.KindAPI},
		{ID: "C", Name: "Billing", ParentID: "A", Order: 2, Kind: models.KindAPI},
	}
	items := []models.Item{
		{ID: "x", Name: "GET /users", ParentID: "B", Order: 1, Kind: models.KindAPI},
		{ID: "y", Name: "POST /users", ParentID: "B", Order: 2, Kind: models.KindAPI},
		{ID: "z", Name: "GET /invoices", ParentID: "C", Order: 1, Kind: models.KindAPI},
	}
	roots := Build(folders, items, BuildOptions{})

	tests := []struct {
		query      string
		wantShape  []any
		wantExpand []string
	}{
		{"post", []any{map[string][]any{"A": {map[string][]any{"B": {"y"}}}}}, []string{"B", "A"}},
		{"BILLING", []any{map[string][]any{"A": {map[string][]any{"C": {"z"}}}}}, []string{"A"}},
		{"nothing", []any{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			out, expand := Filter(roots, tt.query)
			if diff := cmp.Diff(tt.wantShape, shape(out)); diff != "" {
				t.Errorf("shape (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantExpand, expand); diff != "" {
				t.Errorf("expand (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilter_EmptyQueryCopies(t *testing.T) {
	roots := Build([]models.Folder{folder("A", "", 1)}, nil, BuildOptions{})
	out, expand := Filter(roots, "  ")
	if len(out) != 1 || out[0] == roots[0] || expand != nil {
		t.Errorf("empty query should return a copy: %+v %v", out, expand)
	}
}

func TestBreadcrumb(t *testing.T) {
	folders := []models.Folder{folder("A", "", 1), folder("B", "A", 1)}
	items := []models.Item{item("x", "B", 1)}

	got := Breadcrumb(folders, items, "x")
	want := []Crumb{
		{ID: "A", Name: "A", Folder: true},
		{ID: "B", Name: "B", Folder: true},
		{ID: "x", Name: "x"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("breadcrumb (-want +got):\n%s", diff)
	}

	if got := Breadcrumb(folders, items, "A"); len(got) != 1 {
		t.Errorf("root breadcrumb = %+v", got)
	}
	if got := Breadcrumb(folders, items, "missing"); got != nil {
		t.Errorf("missing breadcrumb = %+v", got)
	}
}
