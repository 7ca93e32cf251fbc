package index

import (
	"log/slog"

	"github.com/halvard/munin/internal/models"
)

// Sync replaces the indexed projection with the freshly reconciled entry
// list. Notes contribute their raw text to full-text search and their
// outgoing targets to the links table.
func Sync(db *DB, entries []*models.Entry, logger *slog.Logger) error {
	records := make([]entryRecord, 0, len(entries))
	for _, e := range entries {
		rec := entryRecord{
			row: EntryRow{
				Key:      e.Key,
				Kind:     e.Content.Kind().String(),
				Title:    e.Title,
				Labels:   e.Labels,
				Position: e.Idx,
			},
		}
		switch c := e.Content.(type) {
		case *models.NoteContent:
			rec.row.Repo = string(c.Repo.Key())
			rec.row.Location = c.Location
			rec.body = c.Text
			rec.links = c.LinkTargets
		case *models.DocumentContent:
			rec.row.Repo = string(c.Repo.Key())
			rec.row.Location = c.Location
		case *models.LinkContent:
			rec.body = c.Target
		}
		records = append(records, rec)
	}

	if err := db.replaceAll(records); err != nil {
		return err
	}
	logger.Debug("index: synced", slog.Int("entries", len(records)))
	return nil
}
