// Package testutil provides shared test helpers for databases and stores.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/lattice/internal/models"
	"github.com/starford/lattice/internal/state"
	"github.com/starford/lattice/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *storage.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "lattice-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := storage.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore starts a store seeded with initial and closes it on cleanup.
func TestStore(t *testing.T, initial state.State) *state.Store {
	t.Helper()
	st := state.NewStore(initial, 50)
	t.Cleanup(st.Close)
	return st
}

// Workspace returns a small API tree:
//
//	Accounts
//	├── Users
//	│   ├── GET /users
//	│   └── POST /users
//	└── Billing
//	    └── GET /invoices
//
// plus one scheduler folder holding a nightly job.
func Workspace() state.State {
	return state.State{
		Folders: []models.Folder{
			{ID: "accounts", Name: "Accounts", Order: 1, Kind: models.KindAPI},
			{ID: "users", Name: "Users", Order: 1, ParentID: "accounts", Kind: models.KindAPI},
			{ID: "billing", Name: "Billing", Order: 2, ParentID: "accounts", Kind: models.KindAPI},
			{ID: "jobs", Name: "Jobs", Order: 1, Kind: models.KindScheduler},
		},
		Items: []models.Item{
			{ID: "list-users", Name: "GET /users", Order: 1, ParentID: "users", Kind: models.KindAPI},
			{ID: "create-user", Name: "POST /users", Order: 2, ParentID: "users", Kind: models.KindAPI},
			{ID: "invoices", Name: "GET /invoices", Order: 1, ParentID: "billing", Kind: models.KindAPI},
			{ID: "nightly", Name: "nightly", Order: 1, ParentID: "jobs", Kind: models.KindScheduler},
		},
	}
}
