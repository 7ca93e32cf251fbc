package index

import (
	"encoding/json"
	"fmt"
)

// EntryRow is the indexed projection of one entry.
type EntryRow struct {
	Key      string
	Kind     string
	Title    string
	Repo     string
	Location string
	Labels   []string
	Position int
}

// SearchResult represents one search hit.
type SearchResult struct {
	Key     string
	Title   string
	Snippet string
}

// entryRecord carries a row plus its searchable body and outgoing links.
type entryRecord struct {
	row   EntryRow
	body  string
	links []string
}

// replaceAll swaps the entire projection inside one transaction. The entry
// set is rebuilt on every reconciliation pass, so the index mirrors that:
// no incremental upserts, just the new truth.
func (db *DB) replaceAll(records []entryRecord) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, stmt := range []string{`DELETE FROM entries`, `DELETE FROM links`} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("index: clear: %w", err)
		}
	}
	ftsClear(tx)

	insEntry, err := tx.Prepare(`
		INSERT INTO entries (key, kind, title, repo, location, labels, body, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare entry insert: %w", err)
	}
	defer insEntry.Close()

	insLink, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare link insert: %w", err)
	}
	defer insLink.Close()

	for _, rec := range records {
		labelsJSON, _ := json.Marshal(rec.row.Labels)
		if _, err := insEntry.Exec(rec.row.Key, rec.row.Kind, rec.row.Title, rec.row.Repo,
			rec.row.Location, string(labelsJSON), rec.body, rec.row.Position); err != nil {
			return fmt.Errorf("index: insert entry: %w", err)
		}
		if err := ftsInsert(tx, rec.row.Key, rec.row.Title, rec.body, rec.row.Labels); err != nil {
			return err
		}
		for _, target := range rec.links {
			if _, err := insLink.Exec(rec.row.Key, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// ListEntries returns entries in canonical position order, optionally
// filtered by kind, with the unfiltered-by-pagination total.
func (db *DB) ListEntries(limit, offset int, kind string) ([]EntryRow, int, error) {
	if limit <= 0 {
		limit = 100
	}

	where := ""
	args := []any{}
	if kind != "" {
		where = `WHERE kind = ?`
		args = append(args, kind)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entries `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count entries: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := db.conn.Query(`
		SELECT key, kind, title, repo, location, labels, position
		FROM entries `+where+`
		ORDER BY position
		LIMIT ? OFFSET ?
	`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list entries: %w", err)
	}
	defer rows.Close()

	var out []EntryRow
	for rows.Next() {
		var (
			r          EntryRow
			labelsJSON string
		)
		if err := rows.Scan(&r.Key, &r.Kind, &r.Title, &r.Repo, &r.Location, &labelsJSON, &r.Position); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(labelsJSON), &r.Labels)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// GetEntry returns one indexed entry by key.
func (db *DB) GetEntry(key string) (*EntryRow, error) {
	var (
		r          EntryRow
		labelsJSON string
	)
	err := db.conn.QueryRow(`
		SELECT key, kind, title, repo, location, labels, position
		FROM entries WHERE key = ?
	`, key).Scan(&r.Key, &r.Kind, &r.Title, &r.Repo, &r.Location, &labelsJSON, &r.Position)
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(labelsJSON), &r.Labels)
	return &r, nil
}

// Backlinks returns the keys of entries that reference target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ? ORDER BY source`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetBlob returns cached content for (repo, path) when its sha still
// matches, plus whether the cache hit.
func (db *DB) GetBlob(repo, path, sha string) (string, bool) {
	var (
		gotSHA  string
		content string
	)
	err := db.conn.QueryRow(`SELECT sha, content FROM blobs WHERE repo = ? AND path = ?`, repo, path).
		Scan(&gotSHA, &content)
	if err != nil || gotSHA != sha {
		return "", false
	}
	return content, true
}

// PutBlob stores fetched content for reuse on the next load.
func (db *DB) PutBlob(repo, path, sha, content string) error {
	_, err := db.conn.Exec(`
		INSERT INTO blobs (repo, path, sha, content) VALUES (?, ?, ?, ?)
		ON CONFLICT(repo, path) DO UPDATE SET sha = excluded.sha, content = excluded.content
	`, repo, path, sha, content)
	if err != nil {
		return fmt.Errorf("index: put blob: %w", err)
	}
	return nil
}
