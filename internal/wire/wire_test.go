package wire

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/lattice/internal/models"
)

const export = `{
  "folders": [
    {"id": 1, "name": "Accounts", "order": 1, "parent": null, "kind": "api"},
    {"id": 2, "name": "Users", "order": 1, "parent": 1, "kind": "api"},
    {"id": 3, "name": "Jobs", "order": 1, "kind": "scheduler"}
  ],
  "items": [
    {"id": 1, "name": "GET /users", "order": 1, "folder": 2, "kind": "api"},
    {"id": 2, "name": "nightly", "order": 1, "folder": 1, "kind": "scheduler"}
  ]
}`

func sequence() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestDecodeAndRemap(t *testing.T) {
	snap, err := Decode(strings.NewReader(export))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	got := Remap(snap, sequence())

	wantFolders := []models.Folder{
		{ID: "id-1", Name: "Accounts", Order: 1, Kind: models.KindAPI},
		{ID: "id-2", Name: "Users", Order: 1, ParentID: "id-1", Kind: models.KindAPI},
		{ID: "id-3", Name: "Jobs", Order: 1, Kind: models.KindScheduler},
	}
	wantItems := []models.Item{
		{ID: "id-4", Name: "GET /users", Order: 1, ParentID: "id-2", Kind: models.KindAPI},
		// Folder 1 is an api folder, so the scheduler item falls back to the root.
		{ID: "id-5", Name: "nightly", Order: 1, Kind: models.KindScheduler},
	}
	if diff := cmp.Diff(wantFolders, got.Folders); diff != "" {
		t.Errorf("folders (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantItems, got.Items); diff != "" {
		t.Errorf("items (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]models.Kind{models.KindAPI, models.KindScheduler}, got.Kinds); diff != "" {
		t.Errorf("kinds (-want +got):\n%s", diff)
	}
	if got.FolderIDs[2] != "id-2" || got.ItemIDs[1] != "id-4" {
		t.Errorf("id maps = %v %v", got.FolderIDs, got.ItemIDs)
	}
}

func TestRemap_BreaksFolderCycles(t *testing.T) {
	doc := `{
  "folders": [
    {"id": 1, "name": "Ping", "order": 1, "parent": 2, "kind": "api"},
    {"id": 2, "name": "Pong", "order": 2, "parent": 1, "kind": "api"},
    {"id": 3, "name": "Child", "order": 1, "parent": 1, "kind": "api"}
  ]
}`
	snap, err := Decode(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	got := Remap(snap, sequence())

	want := []models.Folder{
		{ID: "id-1", Name: "Ping", Order: 1, Kind: models.KindAPI},
		{ID: "id-2", Name: "Pong", Order: 2, Kind: models.KindAPI},
		{ID: "id-3", Name: "Child", Order: 1, ParentID: "id-1", Kind: models.KindAPI},
	}
	if diff := cmp.Diff(want, got.Folders); diff != "" {
		t.Errorf("folders (-want +got):\n%s", diff)
	}
}

func TestRemap_DefaultIDsAreUnique(t *testing.T) {
	snap, err := Decode(strings.NewReader(export))
	if err != nil {
		t.Fatal(err)
	}
	got := Remap(snap, nil)
	seen := map[string]bool{}
	for _, f := range got.Folders {
		seen[f.ID] = true
	}
	for _, it := range got.Items {
		seen[it.ID] = true
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 distinct ids, got %d", len(seen))
	}
}

func TestDecode_Rejects(t *testing.T) {
	tests := map[string]string{
		"malformed":     `{"folders": [`,
		"unknown kind":  `{"folders": [{"id": 1, "kind": "widget"}]}`,
		"missing id":    `{"items": [{"name": "x", "kind": "api"}]}`,
		"duplicate ids": `{"folders": [{"id": 1, "kind": "api"}, {"id": 1, "kind": "api"}]}`,
		"negative id":   `{"items": [{"id": -4, "kind": "api"}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(strings.NewReader(doc)); err == nil {
				t.Errorf("Decode accepted %s", doc)
			}
		})
	}
}
