//go:build sqlite_fts5

package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/lattice/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
			id UNINDEXED,
			kind UNINDEXED,
			folder UNINDEXED,
			name,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsRebuild(ctx context.Context, tx *sql.Tx, folders []models.Folder, items []models.Item) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM entities_fts`); err != nil {
		return fmt.Errorf("storage: clear fts: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entities_fts (id, kind, folder, name) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("storage: prepare fts insert: %w", err)
	}
	defer stmt.Close()
	for _, f := range folders {
		if _, err := stmt.ExecContext(ctx, f.ID, string(f.Kind), 1, f.Name); err != nil {
			return fmt.Errorf("storage: insert fts: %w", err)
		}
	}
	for _, it := range items {
		if _, err := stmt.ExecContext(ctx, it.ID, string(it.Kind), 0, it.Name); err != nil {
			return fmt.Errorf("storage: insert fts: %w", err)
		}
	}
	return nil
}

// Search performs an FTS5 prefix search on entity names.
func (db *SQLite) Search(ctx context.Context, kind models.Kind, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, kind, folder
		FROM entities_fts
		WHERE entities_fts MATCH ? AND (? = '' OR kind = ?)
		ORDER BY rank
		LIMIT ?
	`, ftsQuery(query), string(kind), string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("storage: search: %w", err)
	}
	defer rows.Close()

	var out []SearchHit
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.ID, &h.Name, &h.Kind, &h.Folder); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ftsQuery quotes the user input as a single prefix phrase.
func ftsQuery(q string) string {
	escaped := ""
	for _, r := range q {
		if r == '"' {
			escaped += `""`
			continue
		}
		escaped += string(r)
	}
	return `"` + escaped + `"*`
}
