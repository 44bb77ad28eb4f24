// Package storage persists workspace snapshots.
package storage

import (
	"context"

	"github.com/starford/lattice/internal/models"
)

// Provider is the interface for snapshot persistence.
type Provider interface {
	// Load returns every folder and item in store order.
	Load(ctx context.Context) ([]models.Folder, []models.Item, error)
	// Save atomically replaces the stored snapshot.
	Save(ctx context.Context, folders []models.Folder, items []models.Item) error
	// Search matches entity names. An empty kind searches every kind.
	Search(ctx context.Context, kind models.Kind, query string, limit int) ([]SearchHit, error)
	// ImportChecksums returns the checksum recorded for every imported file.
	ImportChecksums(ctx context.Context) (map[string]string, error)
	// RecordImport remembers that path was imported with the given checksum.
	RecordImport(ctx context.Context, path, checksum string) error
	Close() error
}

// SearchHit is one search match.
type SearchHit struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Kind   models.Kind `json:"kind"`
	Folder bool        `json:"folder"`
}

const defaultSearchLimit = 20

// Open opens the provider selected by driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Provider, error) {
	switch driver {
	case DriverPostgres:
		return OpenPostgres(ctx, dsn)
	default:
		return OpenSQLite(dsn)
	}
}

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)
