package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/lattice/internal/models"
)

func testDB(t *testing.T) *SQLite {
	t.Helper()
	f, err := os.CreateTemp("", "lattice-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := OpenSQLite(f.Name())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleSnapshot() ([]models.Folder, []models.Item) {
	folders := []models.Folder{
		{ID: "f2", Name: "Users", Order: 1, ParentID: "f1", Kind: models.KindAPI},
		{ID: "f1", Name: "Accounts", Order: 1, Kind: models.KindAPI},
		{ID: "s1", Name: "Nightly jobs", Order: 1, Kind: models.KindScheduler},
	}
	items := []models.Item{
		{ID: "i1", Name: "GET /users", Order: 1, ParentID: "f2", Kind: models.KindAPI},
		{ID: "i2", Name: "cleanup", Order: 1, ParentID: "s1", Kind: models.KindScheduler},
	}
	return folders, items
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	for _, table := range []string{"folders", "items", "imports"} {
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestSaveLoadPreservesOrder(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	folders, items := sampleSnapshot()

	if err := db.Save(ctx, folders, items); err != nil {
		t.Fatalf("Save: %v", err)
	}
	gotFolders, gotItems, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(folders, gotFolders); diff != "" {
		t.Errorf("folders (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(items, gotItems); diff != "" {
		t.Errorf("items (-want +got):\n%s", diff)
	}
}

func TestSaveReplacesSnapshot(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	folders, items := sampleSnapshot()
	_ = db.Save(ctx, folders, items)

	if err := db.Save(ctx, folders[:1], nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	gotFolders, gotItems, _ := db.Load(ctx)
	if len(gotFolders) != 1 || len(gotItems) != 0 {
		t.Errorf("got %d folders, %d items; want 1, 0", len(gotFolders), len(gotItems))
	}
}

func TestSearch_Basic(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	folders, items := sampleSnapshot()
	_ = db.Save(ctx, folders, items)

	hits, err := db.Search(ctx, models.KindAPI, "users", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %+v, want folder f2 and item i1", hits)
	}
	folderHits := 0
	for _, h := range hits {
		if h.Kind != models.KindAPI {
			t.Errorf("hit of wrong kind: %+v", h)
		}
		if h.Folder {
			folderHits++
		}
	}
	if folderHits != 1 {
		t.Errorf("folder hits = %d, want 1", folderHits)
	}

	hits, _ = db.Search(ctx, "", "cleanup", 10)
	if len(hits) != 1 || hits[0].ID != "i2" {
		t.Errorf("any-kind search = %+v", hits)
	}
}

func TestImportChecksums(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	if err := db.RecordImport(ctx, "seed.json", "abc"); err != nil {
		t.Fatalf("RecordImport: %v", err)
	}
	if err := db.RecordImport(ctx, "seed.json", "def"); err != nil {
		t.Fatalf("RecordImport: %v", err)
	}
	got, err := db.ImportChecksums(ctx)
	if err != nil {
		t.Fatalf("ImportChecksums: %v", err)
	}
	if diff := cmp.Diff(map[string]string{"seed.json": "def"}, got); diff != "" {
		t.Errorf("checksums (-want +got):\n%s", diff)
	}
}
