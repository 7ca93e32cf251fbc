package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/halvard/munin/internal/commit"
	"github.com/halvard/munin/internal/diff"
	"github.com/halvard/munin/internal/models"
)

// ChangeSet describes the pending edits of one repo.
type ChangeSet struct {
	Repo    models.RepoKey
	Ops     []models.GitOp
	Preview string
}

// PendingChanges computes the minimal git operations between the loaded
// originals and the staged edits, with a unified-diff preview per repo.
func (e *Engine) PendingChanges() []ChangeSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.edit == nil {
		return nil
	}

	ops := diff.All(e.original, e.edit)
	keys := make([]models.RepoKey, 0, len(ops))
	for k := range ops {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]ChangeSet, 0, len(keys))
	for _, k := range keys {
		orig, _ := e.original.Get(k)
		if orig == nil {
			orig = models.NewFileMap()
		}
		edited, _ := e.edit.Get(k)
		out = append(out, ChangeSet{
			Repo:    k,
			Ops:     ops[k],
			Preview: diff.Preview(orig, edited),
		})
	}
	return out
}

// Commit writes each repo's pending operations as one atomic commit and, on
// success, promotes that repo's edit state to the new original. Repos with
// no pending operations are skipped. The first failure stops the sequence;
// repos already committed keep their new state.
func (e *Engine) Commit(ctx context.Context, message string) (map[models.RepoKey]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.loadedLocked(); err != nil {
		return nil, err
	}

	shas := make(map[models.RepoKey]string)
	for _, repo := range e.edit.Repos() {
		edited, _ := e.edit.Get(repo.Key())
		orig, _ := e.original.Get(repo.Key())
		if orig == nil {
			orig = models.NewFileMap()
		}
		ops := diff.FileMaps(orig, edited)
		if len(ops) == 0 {
			continue
		}

		sha, err := commit.Apply(ctx, e.client, repo, ops, message, e.logger)
		if err != nil {
			return shas, fmt.Errorf("commit %s: %w", repo.Key(), err)
		}
		shas[repo.Key()] = sha
		e.original.Set(repo, edited.Clone())
		e.logger.Info("engine: committed",
			slog.String("repo", string(repo.Key())),
			slog.String("sha", sha),
			slog.Int("ops", len(ops)))
		if e.onCommit != nil {
			e.onCommit(repo.Key(), sha)
		}
	}
	return shas, nil
}

// Reload discards all staged edits and re-fetches every repo.
func (e *Engine) Reload(ctx context.Context) ([]error, error) {
	return e.Load(ctx)
}
