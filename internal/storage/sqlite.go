package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/lattice/internal/models"
)

const sqliteSchemaSQL = `
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
	imported_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_folders_kind ON folders(kind);
CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind);
`

// SQLite implements Provider on a local SQLite file.
type SQLite struct {
	conn *sql.DB
}

var _ Provider = (*SQLite)(nil)

// OpenSQLite opens (or creates) the SQLite database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply fts schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *SQLite) Close() error {
	return db.conn.Close()
}

// Load reads the snapshot in store order.
func (db *SQLite) Load(ctx context.Context) ([]models.Folder, []models.Item, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, sort_order, parent_id, kind FROM folders ORDER BY position
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: load folders: %w", err)
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		var f models.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.Order, &f.ParentID, &f.Kind); err != nil {
			return nil, nil, err
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	itemRows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, sort_order, parent_id, kind FROM items ORDER BY position
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: load items: %w", err)
	}
	defer itemRows.Close()

	var items []models.Item
	for itemRows.Next() {
		var it models.Item
		if err := itemRows.Scan(&it.ID, &it.Name, &it.Order, &it.ParentID, &it.Kind); err != nil {
			return nil, nil, err
		}
		items = append(items, it)
	}
	return folders, items, itemRows.Err()
}

// Save replaces the stored snapshot within a transaction.
func (db *SQLite) Save(ctx context.Context, folders []models.Folder, items []models.Item) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.ExecContext(ctx, `DELETE FROM folders`); err != nil {
		return fmt.Errorf("storage: clear folders: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items`); err != nil {
		return fmt.Errorf("storage: clear items: %w", err)
	}

	folderStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO folders (id, name, sort_order, parent_id, kind, position) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage: prepare folder insert: %w", err)
	}
	defer folderStmt.Close()
	for i, f := range folders {
		if _, err := folderStmt.ExecContext(ctx, f.ID, f.Name, f.Order, f.ParentID, string(f.Kind), i); err != nil {
			return fmt.Errorf("storage: insert folder %s: %w", f.ID, err)
		}
	}

	itemStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (id, name, sort_order, parent_id, kind, position) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage: prepare item insert: %w", err)
	}
	defer itemStmt.Close()
	for i, it := range items {
		if _, err := itemStmt.ExecContext(ctx, it.ID, it.Name, it.Order, it.ParentID, string(it.Kind), i); err != nil {
			return fmt.Errorf("storage: insert item %s: %w", it.ID, err)
		}
	}

	// FTS rebuild (no-op when the FTS5 tag is absent).
	if err := ftsRebuild(ctx, tx, folders, items); err != nil {
		return err
	}

	return tx.Commit()
}

// ImportChecksums returns the checksum of every imported file.
func (db *SQLite) ImportChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT path, checksum FROM imports`)
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
func (db *SQLite) RecordImport(ctx context.Context, path, checksum string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO imports (path, checksum, imported_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(path) DO UPDATE SET
			checksum    = excluded.checksum,
			imported_at = excluded.imported_at
	`, path, checksum)
	if err != nil {
		return fmt.Errorf("storage: record import: %w", err)
	}
	return nil
}
