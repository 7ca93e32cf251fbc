package index

import (
	"log/slog"
	"os"
	"testing"

	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/reconcile"
)

func testSlog() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "munin-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleEntries() []*models.Entry {
	repo := models.Repo{Owner: "alice", Name: "notes", Branch: "main"}
	note := &models.Entry{
		Title:  "Hello",
		Labels: []string{"greeting"},
		Key:    models.FileEntryKey(repo.Key(), "work/Hello.md"),
		Content: &models.NoteContent{
			Repo:        repo,
			Location:    "work",
			Extension:   "md",
			Text:        "# Hello\nwelcome text\n",
			LinkTargets: []string{"https://example.com"},
		},
	}
	doc := &models.Entry{
		Title:   "photo",
		Key:     models.FileEntryKey(repo.Key(), "img/photo.png"),
		Content: &models.DocumentContent{Repo: repo, Location: "img", Extension: "png"},
	}
	link := &models.Entry{
		Title:   "https://example.com",
		Key:     "https://example.com",
		Content: &models.LinkContent{Target: "https://example.com"},
	}
	return reconcile.Sort([]*models.Entry{note, doc}, []*models.Entry{link})
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM entries`).Scan(&count); err != nil {
		t.Fatalf("entries table missing: %v", err)
	}
	if err := db.conn.QueryRow(`SELECT count(*) FROM blobs`).Scan(&count); err != nil {
		t.Fatalf("blobs table missing: %v", err)
	}
}

func TestSyncAndList(t *testing.T) {
	db := testDB(t)
	if err := Sync(db, sampleEntries(), testSlog()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	rows, total, err := db.ListEntries(10, 0, "")
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if total != 3 || len(rows) != 3 {
		t.Fatalf("total = %d rows = %d, want 3", total, len(rows))
	}
	// Canonical order: note, document, link.
	if rows[0].Kind != "note" || rows[1].Kind != "document" || rows[2].Kind != "link" {
		t.Errorf("kinds = %s/%s/%s", rows[0].Kind, rows[1].Kind, rows[2].Kind)
	}

	notes, total, err := db.ListEntries(10, 0, "note")
	if err != nil {
		t.Fatalf("ListEntries(note): %v", err)
	}
	if total != 1 || notes[0].Title != "Hello" {
		t.Errorf("notes = %+v total = %d", notes, total)
	}
}

func TestSyncReplacesPriorState(t *testing.T) {
	db := testDB(t)
	if err := Sync(db, sampleEntries(), testSlog()); err != nil {
		t.Fatal(err)
	}
	// Second pass with an empty set clears everything.
	if err := Sync(db, nil, testSlog()); err != nil {
		t.Fatal(err)
	}
	_, total, err := db.ListEntries(10, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if total != 0 {
		t.Errorf("total = %d after empty sync", total)
	}
}

func TestBacklinks(t *testing.T) {
	db := testDB(t)
	if err := Sync(db, sampleEntries(), testSlog()); err != nil {
		t.Fatal(err)
	}
	sources, err := db.Backlinks("https://example.com")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(sources) != 1 || sources[0] != "alice/notes:work/Hello.md" {
		t.Errorf("sources = %v", sources)
	}
}

func TestSearchFallback(t *testing.T) {
	db := testDB(t)
	if err := Sync(db, sampleEntries(), testSlog()); err != nil {
		t.Fatal(err)
	}
	hits, err := db.Search("welcome", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "Hello" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestBlobCache(t *testing.T) {
	db := testDB(t)
	if err := db.PutBlob("alice/notes", "a.md", "sha-1", "content"); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	if got, ok := db.GetBlob("alice/notes", "a.md", "sha-1"); !ok || got != "content" {
		t.Errorf("GetBlob = %q/%v", got, ok)
	}
	// Stale sha misses.
	if _, ok := db.GetBlob("alice/notes", "a.md", "sha-2"); ok {
		t.Error("stale sha must miss")
	}
	// Overwrite updates in place.
	if err := db.PutBlob("alice/notes", "a.md", "sha-2", "newer"); err != nil {
		t.Fatal(err)
	}
	if got, ok := db.GetBlob("alice/notes", "a.md", "sha-2"); !ok || got != "newer" {
		t.Errorf("GetBlob after overwrite = %q/%v", got, ok)
	}
}
