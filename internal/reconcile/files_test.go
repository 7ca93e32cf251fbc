package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/metadata"
	"github.com/halvard/munin/internal/models"
)

var testRepo = models.Repo{Owner: "alice", Name: "notes", Branch: "main"}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
}

func validSidecar(t *testing.T, created time.Time, labels []string) string {
	t.Helper()
	text, err := metadata.MarshalMetaData(models.MetaData{
		Labels:      labels,
		TimeCreated: created,
		TimeUpdated: created,
	})
	if err != nil {
		t.Fatal(err)
	}
	return text
}

func TestFileEntries_SidecarPresent(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	files := models.NewFileMap()
	files.SetContent("work/Hello.md", "# Hello\n\n[ref](https://example.com)\n")
	files.SetContent(metadata.SidecarPath("work/Hello.md"), validSidecar(t, created, []string{"tagged"}))
	edit := files.Clone()

	entries, errs := FileEntries(testRepo, files, edit, fixedNow, testLogger())

	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Title != "Hello" || e.Key != "alice/notes:work/Hello.md" {
		t.Errorf("entry = %q / %q", e.Title, e.Key)
	}
	nc, ok := e.Content.(*models.NoteContent)
	if !ok {
		t.Fatalf("content = %T, want note", e.Content)
	}
	if !nc.TimeCreated.Equal(created) {
		t.Errorf("timeCreated = %v, want %v", nc.TimeCreated, created)
	}
	if len(nc.LinkTargets) != 1 || nc.LinkTargets[0] != "https://example.com" {
		t.Errorf("linkTargets = %v", nc.LinkTargets)
	}
	if len(e.Labels) != 1 || e.Labels[0] != "tagged" {
		t.Errorf("labels = %v", e.Labels)
	}
}

func TestFileEntries_SidecarFetchErrorExcludes(t *testing.T) {
	files := models.NewFileMap()
	files.SetContent("a.md", "# A\n")
	sc := models.NewFile(metadata.SidecarPath("a.md"), "sha", "")
	sc.SetFetchError(errors.New("boom"))
	files.Put(sc)
	edit := files.Clone()

	entries, errs := FileEntries(testRepo, files, edit, fixedNow, testLogger())

	if len(entries) != 0 {
		t.Fatalf("entries = %v, want none: unfetchable sidecar must exclude the path", entries)
	}
	if len(errs) != 1 {
		t.Fatalf("errs = %v, want 1", errs)
	}
	var fe *apperr.FetchError
	if !errors.As(errs[0], &fe) {
		t.Errorf("errs[0] = %T, want *apperr.FetchError", errs[0])
	}
	// The unreadable sidecar must not be overwritten by a synthesized one.
	if sf, ok := edit.Get(metadata.SidecarPath("a.md")); ok {
		if _, has := sf.Content(); has {
			t.Error("synthesized sidecar staged over an unfetchable one")
		}
	}
}

func TestFileEntries_SidecarAbsentSynthesizesAndStages(t *testing.T) {
	files := models.NewFileMap()
	files.SetContent("a.md", "# A\n")
	edit := files.Clone()

	entries, errs := FileEntries(testRepo, files, edit, fixedNow, testLogger())

	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	nc := entries[0].Content.(*models.NoteContent)
	if !nc.TimeCreated.Equal(fixedNow()) {
		t.Errorf("timeCreated = %v, want now", nc.TimeCreated)
	}
	sf, ok := edit.Get(metadata.SidecarPath("a.md"))
	if !ok {
		t.Fatal("synthesized sidecar not staged into edit map")
	}
	text, has := sf.Content()
	if !has {
		t.Fatal("staged sidecar has no content")
	}
	parsed, err := metadata.ParseMetaData(text)
	if err != nil {
		t.Fatalf("staged sidecar unparseable: %v", err)
	}
	if !parsed.TimeCreated.Equal(fixedNow()) {
		t.Errorf("staged timeCreated = %v", parsed.TimeCreated)
	}
}

func TestFileEntries_SidecarMalformedSynthesizes(t *testing.T) {
	files := models.NewFileMap()
	files.SetContent("a.md", "# A\n")
	files.SetContent(metadata.SidecarPath("a.md"), "{{{ not yaml")
	edit := files.Clone()

	entries, errs := FileEntries(testRepo, files, edit, fixedNow, testLogger())

	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1: malformed sidecar still derives an entry", len(entries))
	}
	if len(errs) != 1 {
		t.Fatalf("errs = %v, want the parse error reported", errs)
	}
	var pe *apperr.ParseError
	if !errors.As(errs[0], &pe) {
		t.Errorf("errs[0] = %T, want *apperr.ParseError", errs[0])
	}
}

func TestFileEntries_ContentFetchErrorExcludes(t *testing.T) {
	files := models.NewFileMap()
	f := models.NewFile("broken.md", "sha", "")
	f.SetFetchError(errors.New("451"))
	files.Put(f)
	edit := files.Clone()

	entries, errs := FileEntries(testRepo, files, edit, fixedNow, testLogger())

	if len(entries) != 0 || len(errs) != 1 {
		t.Fatalf("entries = %v errs = %v, want excluded + reported", entries, errs)
	}
}

func TestFileEntries_DocumentWithoutContent(t *testing.T) {
	files := models.NewFileMap()
	files.Put(models.NewFile("img/pic.png", "sha", "https://raw.test/pic.png"))
	edit := files.Clone()

	entries, errs := FileEntries(testRepo, files, edit, fixedNow, testLogger())

	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	dc, ok := entries[0].Content.(*models.DocumentContent)
	if !ok {
		t.Fatalf("content = %T, want document", entries[0].Content)
	}
	if dc.RawURL != "https://raw.test/pic.png" || dc.Location != "img" {
		t.Errorf("doc = %+v", dc)
	}
}

func TestFileEntries_SkipsReservedAndPlaceholders(t *testing.T) {
	files := models.NewFileMap()
	files.SetContent(metadata.RegistryPath, "[]")
	files.SetContent("pin.link", "")
	edit := files.Clone()

	entries, errs := FileEntries(testRepo, files, edit, fixedNow, testLogger())

	if len(entries) != 0 || len(errs) != 0 {
		t.Errorf("entries = %v errs = %v, want none", entries, errs)
	}
}

func TestRegistryLinks(t *testing.T) {
	files := models.NewFileMap()
	files.SetContent(metadata.RegistryPath, `
- title: Example
  target: https://example.com
  ownLabels: [pin]
  standalone: true
`)

	links, errs := RegistryLinks(testRepo, files, testLogger())

	if len(errs) != 0 {
		t.Fatalf("errs = %v", errs)
	}
	if len(links) != 1 {
		t.Fatalf("links = %d, want 1", len(links))
	}
	lc := links[0].Content.(*models.LinkContent)
	if !lc.Standalone || lc.OwnerRepo.Key() != testRepo.Key() {
		t.Errorf("link = %+v", lc)
	}
}

func TestRegistryLinks_FetchErrorReported(t *testing.T) {
	files := models.NewFileMap()
	f := models.NewFile(metadata.RegistryPath, "sha", "")
	f.SetFetchError(errors.New("timeout"))
	files.Put(f)

	links, errs := RegistryLinks(testRepo, files, testLogger())

	if links != nil || len(errs) != 1 {
		t.Fatalf("links = %v errs = %v", links, errs)
	}
}

func TestRegistryRecords_Ownership(t *testing.T) {
	other := models.Repo{Owner: "bob", Name: "wiki", Branch: "main"}

	mine := linkEntry("https://mine.example", false, nil)
	mine.Content.(*models.LinkContent).RefRepos = []models.Repo{testRepo}

	shared := linkEntry("https://shared.example", false, nil)
	shared.Content.(*models.LinkContent).RefRepos = []models.Repo{testRepo, other}

	pinned := linkEntry("https://pinned.example", true, []string{"pin"})
	pinned.Content.(*models.LinkContent).OwnerRepo = testRepo

	foreign := linkEntry("https://foreign.example", true, nil)
	foreign.Content.(*models.LinkContent).OwnerRepo = other

	records := RegistryRecords(testRepo, []*models.Entry{shared, pinned, mine, foreign})

	if len(records) != 2 {
		t.Fatalf("records = %+v, want 2", records)
	}
	// Sorted by target for stable serialization.
	if records[0].Target != "https://mine.example" || records[1].Target != "https://pinned.example" {
		t.Errorf("records = %+v", records)
	}
	if !records[1].Standalone {
		t.Errorf("pinned record lost standalone flag: %+v", records[1])
	}
}
