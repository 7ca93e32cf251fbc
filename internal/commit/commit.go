// Package commit merges a mutation batch into a remote tree snapshot and
// drives the multi-step commit protocol.
package commit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/remote"
)

const blobMode = "100644"

// Merge applies ops to the old tree's entries and returns the tree to
// submit.
//
// Every old entry defaults to "keep". Entries targeted by a write or delete
// are dropped (a write re-supplies content, a delete just omits it); a move
// keeps the entry under its new path with the blob identity unchanged, so
// unmodified bytes are never re-uploaded. Subtree nodes are dropped
// unconditionally: the tree-creation API rebuilds directories from blob
// paths, and resubmitting directory entries verbatim is accepted by the
// remote yet silently resurrects deleted files beneath them.
func Merge(old []remote.TreeEntry, ops []models.GitOp) []remote.NewTreeEntry {
	dropped := make(map[string]bool)
	movedTo := make(map[string]string)
	var writes []models.WriteOp

	for _, op := range ops {
		switch o := op.(type) {
		case models.WriteOp:
			dropped[o.Path] = true
			writes = append(writes, o)
		case models.DeleteOp:
			dropped[o.Path] = true
		case models.MoveOp:
			movedTo[o.From] = o.To
		}
	}

	var out []remote.NewTreeEntry
	for _, e := range old {
		if e.Type == "tree" {
			continue
		}
		if dropped[e.Path] {
			continue
		}
		path := e.Path
		if to, ok := movedTo[path]; ok {
			path = to
		}
		sha := e.SHA
		out = append(out, remote.NewTreeEntry{
			Path: path,
			Mode: e.Mode,
			Type: e.Type,
			SHA:  &sha,
		})
	}

	for _, w := range writes {
		content := w.Content
		out = append(out, remote.NewTreeEntry{
			Path:    w.Path,
			Mode:    blobMode,
			Type:    "blob",
			Content: &content,
		})
	}
	return out
}

// Apply replays ops onto repo's branch as one commit and returns the new
// commit SHA.
//
// The steps are strictly ordered, each consuming the previous step's
// output. A truncated tree snapshot aborts before anything is written.
// A failure after createTree leaves orphaned tree/commit objects behind;
// the branch ref itself is only moved by the final step, so a mid-sequence
// failure never changes what the branch points at. The ref update is
// forced: the session model has a single writer per branch.
func Apply(ctx context.Context, client remote.Client, repo models.Repo, ops []models.GitOp, message string, logger *slog.Logger) (string, error) {
	headSHA, err := client.GetRef(ctx, repo)
	if err != nil {
		return "", fmt.Errorf("get ref: %w", err)
	}
	treeSHA, err := client.GetCommit(ctx, repo, headSHA)
	if err != nil {
		return "", fmt.Errorf("get commit: %w", err)
	}
	tree, err := client.GetTree(ctx, repo, treeSHA)
	if err != nil {
		return "", fmt.Errorf("get tree: %w", err)
	}
	if tree.Truncated {
		return "", fmt.Errorf("get tree: %w", apperr.ErrTruncatedTree)
	}

	merged := Merge(tree.Entries, ops)
	newTreeSHA, err := client.CreateTree(ctx, repo, merged)
	if err != nil {
		return "", fmt.Errorf("create tree: %w", err)
	}
	newCommitSHA, err := client.CreateCommit(ctx, repo, message, newTreeSHA, []string{headSHA})
	if err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}
	if err := client.UpdateRef(ctx, repo, newCommitSHA, true); err != nil {
		return "", fmt.Errorf("update ref: %w", err)
	}

	logger.Info("commit applied",
		slog.String("repo", string(repo.Key())),
		slog.String("commit", newCommitSHA),
		slog.Int("ops", len(ops)))
	return newCommitSHA, nil
}
