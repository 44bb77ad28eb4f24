//go:build !sqlite_fts5

package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/starford/lattice/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; name search uses LIKE on the entity tables.
	return nil
}

func ftsRebuild(_ context.Context, _ *sql.Tx, _ []models.Folder, _ []models.Item) error {
	return nil
}

// Search performs a LIKE-based name search (fallback when FTS5 is not compiled in).
func (db *SQLite) Search(ctx context.Context, kind models.Kind, query string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, kind, 1 FROM folders WHERE name LIKE ? AND (? = '' OR kind = ?)
		UNION ALL
		SELECT id, name, kind, 0 FROM items WHERE name LIKE ? AND (? = '' OR kind = ?)
		LIMIT ?
	`, like, string(kind), string(kind), like, string(kind), string(kind), limit)
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
