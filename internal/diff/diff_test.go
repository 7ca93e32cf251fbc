package diff

import (
	"strings"
	"testing"

	"github.com/halvard/munin/internal/models"
)

func mapOf(entries map[string]string) *models.FileMap {
	m := models.NewFileMap()
	for p, c := range entries {
		m.SetContent(p, c)
	}
	return m
}

func TestFileMaps_NoChanges(t *testing.T) {
	orig := mapOf(map[string]string{"a.md": "x"})
	if ops := FileMaps(orig, orig.Clone()); len(ops) != 0 {
		t.Errorf("ops = %v, want none", ops)
	}
}

func TestFileMaps_WriteDelete(t *testing.T) {
	orig := mapOf(map[string]string{"a.md": "x", "b.md": "y"})
	edit := mapOf(map[string]string{"a.md": "x2", "c.md": "new"})

	ops := FileMaps(orig, edit)

	if len(ops) != 3 {
		t.Fatalf("ops = %v, want 3", ops)
	}
	if w, ok := ops[0].(models.WriteOp); !ok || w.Path != "a.md" || w.Content != "x2" {
		t.Errorf("ops[0] = %v", ops[0])
	}
	if w, ok := ops[1].(models.WriteOp); !ok || w.Path != "c.md" {
		t.Errorf("ops[1] = %v", ops[1])
	}
	if d, ok := ops[2].(models.DeleteOp); !ok || d.Path != "b.md" {
		t.Errorf("ops[2] = %v", ops[2])
	}
}

func TestFileMaps_RenameCollapsesToMove(t *testing.T) {
	orig := mapOf(map[string]string{"a.md": "x", "b.md": "y"})
	edit := mapOf(map[string]string{"a.md": "x", "c.md": "y"})

	ops := FileMaps(orig, edit)

	if len(ops) != 1 {
		t.Fatalf("ops = %v, want single move", ops)
	}
	m, ok := ops[0].(models.MoveOp)
	if !ok || m.From != "b.md" || m.To != "c.md" {
		t.Errorf("ops[0] = %v, want move(b.md, c.md)", ops[0])
	}
}

func TestFileMaps_ModifiedFileIsNotARenameTarget(t *testing.T) {
	// An existing path rewritten to match deleted content stays a write;
	// only additions participate in rename detection.
	orig := mapOf(map[string]string{"a.md": "x", "b.md": "y"})
	edit := mapOf(map[string]string{"a.md": "y"})

	ops := FileMaps(orig, edit)

	if len(ops) != 2 {
		t.Fatalf("ops = %v, want write + delete", ops)
	}
	if _, ok := ops[0].(models.WriteOp); !ok {
		t.Errorf("ops[0] = %v", ops[0])
	}
	if _, ok := ops[1].(models.DeleteOp); !ok {
		t.Errorf("ops[1] = %v", ops[1])
	}
}

func TestFileMaps_UnfetchedFilesUnchanged(t *testing.T) {
	orig := models.NewFileMap()
	orig.Put(models.NewFile("big.bin", "sha1", "https://raw.test/big.bin"))
	edit := orig.Clone()

	if ops := FileMaps(orig, edit); len(ops) != 0 {
		t.Errorf("ops = %v, unfetched files must not churn", ops)
	}
}

func TestAll_PerRepoBatches(t *testing.T) {
	alice := models.Repo{Owner: "alice", Name: "notes", Branch: "main"}
	bob := models.Repo{Owner: "bob", Name: "wiki", Branch: "main"}

	orig := models.NewMultiRepoFileMap()
	orig.For(alice).SetContent("a.md", "x")
	orig.For(bob).SetContent("b.md", "y")
	edit := orig.Clone()
	em, _ := edit.Get(alice.Key())
	em.SetContent("a.md", "changed")

	batches := All(orig, edit)

	if len(batches) != 1 {
		t.Fatalf("batches = %v, want only alice's", batches)
	}
	if _, ok := batches[alice.Key()]; !ok {
		t.Errorf("missing batch for %s", alice.Key())
	}
}

func TestPreview(t *testing.T) {
	orig := mapOf(map[string]string{"a.md": "one\ntwo\n", "b.md": "y"})
	edit := mapOf(map[string]string{"a.md": "one\nthree\n", "c.md": "y"})

	out := Preview(orig, edit)

	if !strings.Contains(out, "-two") || !strings.Contains(out, "+three") {
		t.Errorf("preview missing hunk lines:\n%s", out)
	}
	if !strings.Contains(out, "rename b.md -> c.md") {
		t.Errorf("preview missing rename line:\n%s", out)
	}
}
