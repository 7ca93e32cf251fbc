package scratch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/halvard/munin/internal/models"
)

func testDir(t *testing.T) *Dir {
	t.Helper()
	d, err := New(t.TempDir(), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func noteEntry(repo models.Repo, path, text string) *models.Entry {
	return &models.Entry{
		Title: path,
		Key:   models.FileEntryKey(repo.Key(), path),
		Content: &models.NoteContent{
			Repo: repo,
			Text: text,
		},
	}
}

type fakeSession struct {
	mu     sync.Mutex
	staged map[string][]string // repoKey + ":" + path -> every staged text, in order
}

func (s *fakeSession) Entries() []*models.Entry { return nil }

func (s *fakeSession) StageExternalEdit(repoKey models.RepoKey, path, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		s.staged = make(map[string][]string)
	}
	key := string(repoKey) + ":" + path
	s.staged[key] = append(s.staged[key], text)
	return nil
}

func (s *fakeSession) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	texts := s.staged[key]
	if len(texts) == 0 {
		return "", false
	}
	return texts[len(texts)-1], true
}

func (s *fakeSession) calls(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.staged[key]...)
}

func TestExportWritesNotes(t *testing.T) {
	d := testDir(t)
	repo := models.Repo{Owner: "alice", Name: "notes", Branch: "main"}
	err := d.Export([]*models.Entry{
		noteEntry(repo, "work/Hello.md", "hi\n"),
		{Title: "x", Key: "https://example.com", Content: &models.LinkContent{Target: "https://example.com"}},
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(d.Root(), "alice", "notes", "work", "Hello.md"))
	if err != nil {
		t.Fatalf("exported note missing: %v", err)
	}
	if string(data) != "hi\n" {
		t.Errorf("content = %q", data)
	}
	// Links produce no files.
	entries, _ := os.ReadDir(d.Root())
	if len(entries) != 1 {
		t.Errorf("unexpected extra files: %v", entries)
	}
}

func TestExportPrunesOnlyOwnFiles(t *testing.T) {
	d := testDir(t)
	repo := models.Repo{Owner: "alice", Name: "notes", Branch: "main"}
	if err := d.Export([]*models.Entry{noteEntry(repo, "a.md", "a\n")}); err != nil {
		t.Fatal(err)
	}

	foreign := filepath.Join(d.Root(), "alice", "notes", "user-owned.md")
	if err := os.WriteFile(foreign, []byte("mine\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The note disappeared from the session; its export is pruned.
	if err := d.Export(nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(d.Root(), "alice", "notes", "a.md")); !os.IsNotExist(err) {
		t.Errorf("exported file not pruned: %v", err)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Errorf("foreign file was pruned: %v", err)
	}
}

func TestWatchStagesExternalEdit(t *testing.T) {
	d := testDir(t)
	repo := models.Repo{Owner: "alice", Name: "notes", Branch: "main"}
	if err := d.Export([]*models.Entry{noteEntry(repo, "work/Hello.md", "hi\n")}); err != nil {
		t.Fatal(err)
	}

	session := &fakeSession{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Watch(ctx, session) }()

	// Give the watcher a moment to register the tree.
	time.Sleep(100 * time.Millisecond)

	target := filepath.Join(d.Root(), "alice", "notes", "work", "Hello.md")
	if err := os.WriteFile(target, []byte("edited outside\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		if text, ok := session.get("alice/notes:work/Hello.md"); ok {
			if text != "edited outside\n" {
				t.Errorf("staged text = %q", text)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("external edit never staged")
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}

func TestWatchWaitsForWritesToSettle(t *testing.T) {
	d := testDir(t)
	repo := models.Repo{Owner: "alice", Name: "notes", Branch: "main"}
	if err := d.Export([]*models.Entry{noteEntry(repo, "work/Hello.md", "hi\n")}); err != nil {
		t.Fatal(err)
	}

	session := &fakeSession{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Watch(ctx, session) }()

	time.Sleep(100 * time.Millisecond)

	// Truncate first, write the bytes later, the way editors and
	// os.WriteFile do. Only the settled content may reach the session.
	target := filepath.Join(d.Root(), "alice", "notes", "work", "Hello.md")
	f, err := os.Create(target)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if _, err := f.WriteString("settled\n"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		if _, ok := session.get("alice/notes:work/Hello.md"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("external edit never staged")
		case <-time.After(20 * time.Millisecond):
		}
	}
	for _, text := range session.calls("alice/notes:work/Hello.md") {
		if text != "settled\n" {
			t.Errorf("staged intermediate content %q", text)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}
}
