// Package diff computes the minimal ordered mutation batch between an
// original file map and its edited fork.
package diff

import (
	"sort"

	"github.com/halvard/munin/internal/models"
)

// FileMaps compares original against edited and returns the op batch that
// replays the edit onto the remote tree.
//
// A path deleted from the original whose exact content reappears at a new
// path collapses into a single move, so unchanged blob bytes are never
// re-uploaded. Byte-identical content is the only rename signal; a freshly
// staged local file has no remote hash to match against.
func FileMaps(original, edited *models.FileMap) []models.GitOp {
	type write struct {
		path    string
		content string
		added   bool // path not present in original
	}

	var (
		writes  []write
		deletes []string
	)

	for _, path := range edited.Paths() {
		ef, _ := edited.Get(path)
		etext, ehas := ef.Content()

		of, ok := original.Get(path)
		if !ok {
			if ehas {
				writes = append(writes, write{path: path, content: etext, added: true})
			}
			continue
		}
		otext, ohas := of.Content()
		if ohas == ehas && otext == etext {
			continue
		}
		if ehas {
			writes = append(writes, write{path: path, content: etext})
		}
	}

	for _, path := range original.Paths() {
		if _, ok := edited.Get(path); !ok {
			deletes = append(deletes, path)
		}
	}

	// Collapse delete + identical-content addition into a move. Deleted
	// paths are matched in sorted order so the result is deterministic.
	deletedByContent := make(map[string][]string)
	for _, path := range deletes {
		of, _ := original.Get(path)
		if text, ok := of.Content(); ok {
			deletedByContent[text] = append(deletedByContent[text], path)
		}
	}

	var ops []models.GitOp
	moved := make(map[string]bool)
	for _, w := range writes {
		if w.added {
			if sources := deletedByContent[w.content]; len(sources) > 0 {
				from := sources[0]
				deletedByContent[w.content] = sources[1:]
				moved[from] = true
				ops = append(ops, models.MoveOp{From: from, To: w.path})
				continue
			}
		}
		ops = append(ops, models.WriteOp{Path: w.path, Content: w.content})
	}
	for _, path := range deletes {
		if !moved[path] {
			ops = append(ops, models.DeleteOp{Path: path})
		}
	}

	return ops
}

// All diffs every repo present in either multi-map and returns the non-empty
// per-repo batches.
func All(original, edited *models.MultiRepoFileMap) map[models.RepoKey][]models.GitOp {
	out := make(map[models.RepoKey][]models.GitOp)

	seen := make(map[models.RepoKey]bool)
	repos := append([]models.Repo{}, original.Repos()...)
	repos = append(repos, edited.Repos()...)
	sort.Slice(repos, func(i, j int) bool { return repos[i].Key() < repos[j].Key() })

	for _, repo := range repos {
		key := repo.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		orig, ok := original.Get(key)
		if !ok {
			orig = models.NewFileMap()
		}
		edit, ok := edited.Get(key)
		if !ok {
			edit = models.NewFileMap()
		}
		if ops := FileMaps(orig, edit); len(ops) > 0 {
			out[key] = ops
		}
	}
	return out
}
