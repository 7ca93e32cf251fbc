package engine

import (
	"fmt"
	"log/slog"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/metadata"
	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/pathcodec"
)

// CreateNote stages a new note at the path encoded from location and title
// and synthesizes its sidecar.
func (e *Engine) CreateNote(repoKey models.RepoKey, location, title, text string, labels []string) (*models.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.loadedLocked(); err != nil {
		return nil, err
	}
	fm, ok := e.edit.Get(repoKey)
	if !ok {
		return nil, fmt.Errorf("repo %s: %w", repoKey, apperr.ErrNotFound)
	}

	path := pathcodec.Join(location, pathcodec.TitleToFilename(title, pathcodec.ExtNote))
	if _, exists := fm.Get(path); exists {
		return nil, fmt.Errorf("note %s: %w", path, apperr.ErrAlreadyExists)
	}

	fm.SetContent(path, text)
	e.stageSidecar(fm, path, labels, true)
	e.logReconcileProblems(e.reconcileLocked())
	return e.findLocked(models.FileEntryKey(repoKey, path))
}

// UpdateNote replaces a note's text and bumps its sidecar update time.
func (e *Engine) UpdateNote(key, text string) (*models.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.loadedLocked(); err != nil {
		return nil, err
	}
	entry, err := e.findLocked(key)
	if err != nil {
		return nil, err
	}
	if _, ok := entry.Content.(*models.NoteContent); !ok {
		return nil, fmt.Errorf("entry %s is not a note: %w", key, apperr.ErrConflict)
	}
	repoKey, path, ok := splitKey(key)
	if !ok {
		return nil, apperr.Invariant("malformed file entry key %q", key)
	}
	fm, ok := e.edit.Get(repoKey)
	if !ok {
		return nil, apperr.Invariant("entry %s references unknown repo %s", key, repoKey)
	}

	fm.SetContent(path, text)
	e.stageSidecar(fm, path, entry.Labels, false)
	e.logReconcileProblems(e.reconcileLocked())
	return e.findLocked(key)
}

// CreateLink pins a standalone link owned by the given repo. The target
// doubles as the entry key, so an already-known target is a conflict.
func (e *Engine) CreateLink(repoKey models.RepoKey, target, title string, labels []string) (*models.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.loadedLocked(); err != nil {
		return nil, err
	}
	repo, ok := e.repoByKey(repoKey)
	if !ok {
		return nil, fmt.Errorf("repo %s: %w", repoKey, apperr.ErrNotFound)
	}
	if _, err := e.findLocked(target); err == nil {
		return nil, fmt.Errorf("link %s: %w", target, apperr.ErrAlreadyExists)
	}
	if title == "" {
		title = target
	}

	e.links = append(e.links, &models.Entry{
		Title:  title,
		Labels: append([]string(nil), labels...),
		Key:    target,
		Content: &models.LinkContent{
			Target:     target,
			Standalone: true,
			OwnerRepo:  repo,
			OwnLabels:  append([]string(nil), labels...),
		},
	})
	e.logReconcileProblems(e.reconcileLocked())
	return e.findLocked(target)
}

// DeleteEntry removes a note or document (content plus sidecar) or unpins a
// standalone link. Links that are still referenced from note text are
// derived, not stored, and cannot be deleted directly.
func (e *Engine) DeleteEntry(key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.loadedLocked(); err != nil {
		return err
	}
	entry, err := e.findLocked(key)
	if err != nil {
		return err
	}

	switch c := entry.Content.(type) {
	case *models.LinkContent:
		if !c.Standalone || len(c.RefEntries) > 0 {
			return fmt.Errorf("link %s is referenced from notes: %w", key, apperr.ErrConflict)
		}
		kept := e.links[:0]
		for _, l := range e.links {
			if l != entry {
				kept = append(kept, l)
			}
		}
		e.links = kept
	default:
		repoKey, path, ok := splitKey(key)
		if !ok {
			return apperr.Invariant("malformed file entry key %q", key)
		}
		fm, ok := e.edit.Get(repoKey)
		if !ok {
			return apperr.Invariant("entry %s references unknown repo %s", key, repoKey)
		}
		fm.Delete(path)
		fm.Delete(metadata.SidecarPath(path))
	}

	e.logReconcileProblems(e.reconcileLocked())
	return nil
}

// StageExternalEdit stages note text that changed outside the session, for
// example in the scratch directory. Unknown paths become new notes.
func (e *Engine) StageExternalEdit(repoKey models.RepoKey, path, text string) error {
	if pathcodec.Classify(path) != models.KindNote || metadata.IsReserved(path) {
		return fmt.Errorf("path %s is not an editable note", path)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.loadedLocked(); err != nil {
		return err
	}
	fm, ok := e.edit.Get(repoKey)
	if !ok {
		return fmt.Errorf("repo %s: %w", repoKey, apperr.ErrNotFound)
	}
	if f, exists := fm.Get(path); exists {
		if current, has := f.Content(); has && current == text {
			return nil
		}
	}

	fm.SetContent(path, text)
	e.stageSidecar(fm, path, nil, false)
	e.logReconcileProblems(e.reconcileLocked())
	return nil
}

// stageSidecar writes the sidecar for path into the edit map. A fresh
// sidecar gets the given labels and a creation time of now; an existing
// parseable one keeps its identity and only the update time moves.
func (e *Engine) stageSidecar(fm *models.FileMap, path string, labels []string, fresh bool) {
	sp := metadata.SidecarPath(path)
	md := metadata.New(e.now(), labels)
	if !fresh {
		if sf, ok := fm.Get(sp); ok {
			if text, has := sf.Content(); has {
				if parsed, err := metadata.ParseMetaData(text); err == nil {
					md = parsed
					md.TimeUpdated = e.now()
				}
			}
		}
	}
	text, err := metadata.MarshalMetaData(md)
	if err != nil {
		e.logger.Error("engine: sidecar marshal failed",
			slog.String("path", sp),
			slog.String("error", err.Error()))
		return
	}
	fm.SetContent(sp, text)
}

func (e *Engine) repoByKey(key models.RepoKey) (models.Repo, bool) {
	for _, r := range e.repos {
		if r.Key() == key {
			return r, true
		}
	}
	return models.Repo{}, false
}

func (e *Engine) logReconcileProblems(errs []error) {
	for _, err := range errs {
		e.logger.Warn("engine: reconcile problem", slog.String("error", err.Error()))
	}
}
