package treeservice

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/lattice/internal/apperr"
	"github.com/starford/lattice/internal/models"
	"github.com/starford/lattice/internal/testutil"
	"github.com/starford/lattice/internal/tree"
)

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	n := 0
	opts.NewID = func() string {
		n++
		return fmt.Sprintf("new-%d", n)
	}
	return NewService(testutil.TestStore(t, testutil.Workspace()), testutil.TestDB(t), opts)
}

func labels(nodes []*tree.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Label
	}
	return out
}

func TestTree_Filtered(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	view, err := svc.Tree(ctx, models.KindAPI, "invoices", nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Accounts"}, labels(view.Nodes)); diff != "" {
		t.Errorf("roots (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Billing"}, labels(view.Nodes[0].Children)); diff != "" {
		t.Errorf("children (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"billing", "accounts"}, view.Expand); diff != "" {
		t.Errorf("expand (-want +got):\n%s", diff)
	}
	if view.ETag == "" {
		t.Error("missing etag")
	}
}

func TestTree_InvalidKind(t *testing.T) {
	svc := newTestService(t, Options{})
	if _, err := svc.Tree(context.Background(), "ftp", "", nil); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestTree_Placeholders(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()
	if _, err := svc.CreateFolder(ctx, CreateInput{Name: "Empty", Parent: "accounts", Kind: models.KindAPI}); err != nil {
		t.Fatal(err)
	}

	on := true
	view, err := svc.Tree(ctx, models.KindAPI, "", &on)
	if err != nil {
		t.Fatal(err)
	}
	empty, _, ok := tree.Find(view.Nodes, "new-1")
	if !ok {
		t.Fatal("created folder missing from tree")
	}
	if len(empty.Children) != 1 || !empty.Children[0].Placeholder {
		t.Errorf("empty folder children = %+v, want one placeholder", empty.Children)
	}
}

func TestCreate(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	f, err := svc.CreateFolder(ctx, CreateInput{Name: "Orders", Parent: "accounts", Kind: models.KindAPI})
	if err != nil {
		t.Fatal(err)
	}
	if f.ID != "new-1" || f.Order != 3 {
		t.Errorf("folder = %+v, want id new-1 order 3", f)
	}

	it, err := svc.CreateItem(ctx, CreateInput{Name: "GET /orders", Parent: f.ID, Kind: models.KindAPI})
	if err != nil {
		t.Fatal(err)
	}
	if it.ParentID != f.ID || it.Order != 1 {
		t.Errorf("item = %+v", it)
	}
}

func TestCreate_Errors(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"unknown parent", CreateInput{Name: "x", Parent: "nope", Kind: models.KindAPI}, apperr.ErrNotFound},
		{"cross-kind parent", CreateInput{Name: "x", Parent: "jobs", Kind: models.KindAPI}, apperr.ErrInvalid},
		{"bad kind", CreateInput{Name: "x", Kind: "ftp"}, apperr.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateItem(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("CreateItem err = %v, want %v", err, tt.want)
			}
			if _, err := svc.CreateFolder(ctx, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("CreateFolder err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCreate_DuplicateID(t *testing.T) {
	svc := newTestService(t, Options{})
	svc.opts.NewID = func() string { return "users" }
	_, err := svc.CreateFolder(context.Background(), CreateInput{Name: "Dup", Kind: models.KindAPI})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestRenameAndDelete_NotFound(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	if _, err := svc.RenameFolder(ctx, "nope", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("RenameFolder err = %v", err)
	}
	if _, err := svc.RenameItem(ctx, "nope", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("RenameItem err = %v", err)
	}
	if _, err := svc.DeleteFolder(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("DeleteFolder err = %v", err)
	}
	if err := svc.DeleteItem(ctx, "nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("DeleteItem err = %v", err)
	}
}

func TestDeleteFolder_SelectsParent(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	sel, err := svc.DeleteFolder(ctx, "users")
	if err != nil {
		t.Fatal(err)
	}
	if sel != (models.Selection{FolderID: "accounts"}) {
		t.Errorf("selection = %+v, want accounts", sel)
	}
	if _, err := svc.Breadcrumb(ctx, "list-users"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("nested item survived cascade: %v", err)
	}
}

func TestMove(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	applied, err := svc.Move(ctx, models.KindAPI, tree.Drop{DragID: "create-user", TargetID: "list-users", Position: tree.Before})
	if err != nil || !applied {
		t.Fatalf("applied=%v err=%v", applied, err)
	}
	view, _ := svc.Tree(ctx, models.KindAPI, "", nil)
	users, _, _ := tree.Find(view.Nodes, "users")
	if diff := cmp.Diff([]string{"POST /users", "GET /users"}, labels(users.Children)); diff != "" {
		t.Errorf("users children (-want +got):\n%s", diff)
	}

	// Restrictive policy rejects a cross-parent before/after drop.
	applied, err = svc.Move(ctx, models.KindAPI, tree.Drop{DragID: "invoices", TargetID: "list-users", Position: tree.After})
	if err != nil || applied {
		t.Errorf("cross-parent drop: applied=%v err=%v", applied, err)
	}

	if _, err := svc.Move(ctx, models.KindAPI, tree.Drop{DragID: "a", TargetID: "b", Position: "inside"}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("bad position err = %v", err)
	}
}

func TestMove_Unrestricted(t *testing.T) {
	svc := newTestService(t, Options{Policy: tree.Unrestricted})
	applied, err := svc.Move(context.Background(), models.KindAPI,
		tree.Drop{DragID: "invoices", TargetID: "list-users", Position: tree.After})
	if err != nil || !applied {
		t.Fatalf("applied=%v err=%v", applied, err)
	}
	crumbs, _ := svc.Breadcrumb(context.Background(), "invoices")
	if len(crumbs) != 3 || crumbs[1].ID != "users" {
		t.Errorf("breadcrumb = %+v", crumbs)
	}
}

func TestApplySort_IfMatch(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	view, _ := svc.Tree(ctx, models.KindAPI, "", nil)
	records := []models.SortRecord{
		{ID: "billing", ParentID: "accounts", Order: 1},
		{ID: "users", ParentID: "accounts", Order: 2},
	}

	if _, err := svc.ApplySort(ctx, models.KindAPI, records, "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("stale etag err = %v, want ErrConflict", err)
	}

	etag, err := svc.ApplySort(ctx, models.KindAPI, records, view.ETag)
	if err != nil {
		t.Fatal(err)
	}
	if etag == view.ETag {
		t.Error("etag unchanged after sort")
	}

	// Replaying with the old etag now conflicts.
	if _, err := svc.ApplySort(ctx, models.KindAPI, records, view.ETag); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("replay err = %v, want ErrConflict", err)
	}

	view, _ = svc.Tree(ctx, models.KindAPI, "", nil)
	if diff := cmp.Diff([]string{"Billing", "Users"}, labels(view.Nodes[0].Children)); diff != "" {
		t.Errorf("children (-want +got):\n%s", diff)
	}
}

func TestApplySort_IgnoresOtherKinds(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	before, _ := svc.Tree(ctx, models.KindScheduler, "", nil)
	if _, err := svc.ApplySort(ctx, models.KindAPI, []models.SortRecord{{ID: "nightly", ParentID: "jobs", Order: 9}}, ""); err != nil {
		t.Fatal(err)
	}
	after, _ := svc.Tree(ctx, models.KindScheduler, "", nil)
	if before.ETag != after.ETag {
		t.Error("scheduler sort state changed by api sort")
	}
}

func TestSelection(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	sel, err := svc.Select(ctx, models.Selection{ItemID: "invoices"})
	if err != nil || sel.ItemID != "invoices" {
		t.Fatalf("sel=%+v err=%v", sel, err)
	}
	if _, err := svc.Select(ctx, models.Selection{FolderID: "users", ItemID: "invoices"}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("both set err = %v", err)
	}
	if _, err := svc.Select(ctx, models.Selection{FolderID: "nope"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown folder err = %v", err)
	}

	ok, err := svc.RenameSelected(ctx, "GET /invoices/{id}")
	if err != nil || !ok {
		t.Fatalf("RenameSelected ok=%v err=%v", ok, err)
	}
	sel, ok, err = svc.DeleteSelected(ctx)
	if err != nil || !ok {
		t.Fatalf("DeleteSelected ok=%v err=%v", ok, err)
	}
	if !sel.Empty() {
		t.Errorf("selection after delete = %+v", sel)
	}
	if ok, _ := svc.RenameSelected(ctx, "x"); ok {
		t.Error("rename with empty selection reported a change")
	}
}

func TestBreadcrumb(t *testing.T) {
	svc := newTestService(t, Options{})
	crumbs, err := svc.Breadcrumb(context.Background(), "create-user")
	if err != nil {
		t.Fatal(err)
	}
	want := []tree.Crumb{
		{ID: "accounts", Name: "Accounts", Folder: true},
		{ID: "users", Name: "Users", Folder: true},
		{ID: "create-user", Name: "POST /users"},
	}
	if diff := cmp.Diff(want, crumbs); diff != "" {
		t.Errorf("breadcrumb (-want +got):\n%s", diff)
	}
}

func TestSearch_FlushesFirst(t *testing.T) {
	st := testutil.TestStore(t, testutil.Workspace())
	db := testutil.TestDB(t)
	flushed := false
	svc := NewService(st, db, Options{BeforeSearch: func(ctx context.Context) error {
		snap, err := st.Snapshot(ctx)
		if err != nil {
			return err
		}
		flushed = true
		return db.Save(ctx, snap.Folders, snap.Items)
	}})

	hits, err := svc.Search(context.Background(), models.KindAPI, "users", 10)
	if err != nil {
		t.Fatal(err)
	}
	if !flushed {
		t.Error("BeforeSearch not called")
	}
	if len(hits) == 0 {
		t.Fatal("no hits")
	}
	for _, h := range hits {
		if h.Kind != models.KindAPI {
			t.Errorf("hit of kind %s", h.Kind)
		}
	}

	if _, err := svc.Search(context.Background(), "", "  ", 10); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("empty query err = %v", err)
	}
}

func TestUndoRedo(t *testing.T) {
	svc := newTestService(t, Options{})
	ctx := context.Background()

	if ok, _ := svc.Undo(ctx); ok {
		t.Error("undo with empty history reported a change")
	}
	if err := svc.DeleteItem(ctx, "invoices"); err != nil {
		t.Fatal(err)
	}
	if ok, err := svc.Undo(ctx); err != nil || !ok {
		t.Fatalf("undo ok=%v err=%v", ok, err)
	}
	if _, err := svc.Breadcrumb(ctx, "invoices"); err != nil {
		t.Errorf("item not restored: %v", err)
	}
	if ok, err := svc.Redo(ctx); err != nil || !ok {
		t.Fatalf("redo ok=%v err=%v", ok, err)
	}
	if _, err := svc.Breadcrumb(ctx, "invoices"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("item back after redo: %v", err)
	}
}
