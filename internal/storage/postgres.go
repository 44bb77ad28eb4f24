package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/starford/lattice/internal/models"
)

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS folders (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0,
	parent_id  TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL,
	position   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS items (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0,
	parent_id  TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL,
	position   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS imports (
	path        TEXT PRIMARY KEY,
	checksum    TEXT NOT NULL DEFAULT '',
	imported_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_folders_kind ON folders(kind);
CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind);
`

// Postgres implements Provider on a PostgreSQL connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Provider = (*Postgres)(nil)

// OpenPostgres connects to dsn and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse postgres dsn: %w", err)
	}
	// Simple protocol avoids prepared statement cache clashes behind poolers.
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: apply core schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the pool.
func (db *Postgres) Close() error {
	db.pool.Close()
	return nil
}

// Load reads the snapshot in store order.
func (db *Postgres) Load(ctx context.Context) ([]models.Folder, []models.Item, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, name, sort_order, parent_id, kind FROM folders ORDER BY position`)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: load folders: %w", err)
	}
	folders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Folder, error) {
		var f models.Folder
		var kind string
		err := row.Scan(&f.ID, &f.Name, &f.Order, &f.ParentID, &kind)
		f.Kind = models.Kind(kind)
		return f, err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("storage: scan folders: %w", err)
	}

	rows, err = db.pool.Query(ctx, `SELECT id, name, sort_order, parent_id, kind FROM items ORDER BY position`)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: load items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Item, error) {
		var it models.Item
		var kind string
		err := row.Scan(&it.ID, &it.Name, &it.Order, &it.ParentID, &kind)
		it.Kind = models.Kind(kind)
		return it, err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("storage: scan items: %w", err)
	}
	return folders, items, nil
}

// Save replaces the stored snapshot within a transaction.
func (db *Postgres) Save(ctx context.Context, folders []models.Folder, items []models.Item) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort on failure path

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM folders`)
	batch.Queue(`DELETE FROM items`)
	for i, f := range folders {
		batch.Queue(`INSERT INTO folders (id, name, sort_order, parent_id, kind, position) VALUES ($1, $2, $3, $4, $5, $6)`,
			f.ID, f.Name, f.Order, f.ParentID, string(f.Kind), i)
	}
	for i, it := range items {
		batch.Queue(`INSERT INTO items (id, name, sort_order, parent_id, kind, position) VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ID, it.Name, it.Order, it.ParentID, string(it.Kind), i)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("storage: write snapshot: %w", err)
	}
	return tx.Commit(ctx)
}

// Search matches names case-insensitively.
func (db *Postgres) Search(ctx context.Context, kind models.Kind, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	like := "%" + query + "%"
	rows, err := db.pool.Query(ctx, `
		(SELECT id, name, kind, TRUE FROM folders WHERE name ILIKE $1 AND ($2 = '' OR kind = $2))
		UNION ALL
		(SELECT id, name, kind, FALSE FROM items WHERE name ILIKE $1 AND ($2 = '' OR kind = $2))
		LIMIT $3
	`, like, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: search: %w", err)
	}
	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SearchHit, error) {
		var h SearchHit
		var k string
		err := row.Scan(&h.ID, &h.Name, &k, &h.Folder)
		h.Kind = models.Kind(k)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: scan search: %w", err)
	}
	return hits, nil
}

// ImportChecksums returns the checksum of every imported file.
func (db *Postgres) ImportChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.pool.Query(ctx, `SELECT path, checksum FROM imports`)
	if err != nil {
		return nil, fmt.Errorf("storage: import checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// RecordImport upserts the checksum of an imported file.
func (db *Postgres) RecordImport(ctx context.Context, path, checksum string) error {
	_, err := db.pool.Exec(ctx, `
		INSERT INTO imports (path, checksum, imported_at) VALUES ($1, $2, NOW())
		ON CONFLICT (path) DO UPDATE SET
			checksum    = EXCLUDED.checksum,
			imported_at = EXCLUDED.imported_at
	`, path, checksum)
	if err != nil {
		return fmt.Errorf("storage: record import: %w", err)
	}
	return nil
}
