//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			key UNINDEXED,
			title,
			body,
			labels,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsClear(tx *sql.Tx) {
	_, _ = tx.Exec(`DELETE FROM entries_fts`)
}

func ftsInsert(tx *sql.Tx, key, title, body string, labels []string) error {
	_, err := tx.Exec(`INSERT INTO entries_fts (key, title, body, labels) VALUES (?, ?, ?, ?)`,
		key, title, body, strings.Join(labels, " "))
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search and returns matches with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT key,
		       title,
		       snippet(entries_fts, 2, '<b>', '</b>', '...', 64)
		FROM entries_fts
		WHERE entries_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Key, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
