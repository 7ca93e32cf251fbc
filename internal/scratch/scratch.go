// Package scratch mirrors note text into a local working directory so notes
// can be edited with ordinary tools, and stages external edits back into
// the session.
package scratch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/halvard/munin/internal/models"
)

// Session is the subset of the engine the scratch directory talks to.
type Session interface {
	Entries() []*models.Entry
	StageExternalEdit(repoKey models.RepoKey, path, text string) error
}

// Dir is a scratch directory. Notes are laid out as
// <root>/<owner>/<name>/<repo path>.
type Dir struct {
	root   string
	logger *slog.Logger

	mu      sync.Mutex
	written map[string]string // rel path -> last exported content
}

// New creates the scratch directory if needed.
func New(root string, logger *slog.Logger) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("scratch: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("scratch: create root: %w", err)
	}
	return &Dir{root: abs, logger: logger, written: make(map[string]string)}, nil
}

// Root returns the absolute scratch root.
func (d *Dir) Root() string { return d.root }

// Export writes every note's current text into the scratch tree and prunes
// files for notes that no longer exist. Only files this Dir exported are
// ever pruned; anything else in the tree is left alone.
func (d *Dir) Export(entries []*models.Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	current := make(map[string]string)
	for _, e := range entries {
		nc, ok := e.Content.(*models.NoteContent)
		if !ok {
			continue
		}
		_, path, ok := splitEntryKey(e.Key)
		if !ok {
			continue
		}
		rel := filepath.Join(string(nc.Repo.Key()), filepath.FromSlash(path))
		current[rel] = nc.Text
	}

	for rel, text := range current {
		if d.written[rel] == text {
			continue
		}
		if err := d.writeAtomic(rel, text); err != nil {
			return err
		}
		d.written[rel] = text
	}
	for rel := range d.written {
		if _, ok := current[rel]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(d.root, rel)); err != nil && !os.IsNotExist(err) {
			d.logger.Warn("scratch: prune failed",
				slog.String("path", rel),
				slog.String("error", err.Error()))
		}
		delete(d.written, rel)
	}
	return nil
}

// writeAtomic writes tmp file then rename, so a watcher never observes a
// half-written note.
func (d *Dir) writeAtomic(rel, text string) error {
	abs := filepath.Join(d.root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("scratch: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(abs), ".munin-tmp-*")
	if err != nil {
		return fmt.Errorf("scratch: temp file: %w", err)
	}
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("scratch: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("scratch: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), abs); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("scratch: rename: %w", err)
	}
	return nil
}

// Watch processes file change events until ctx is cancelled, staging edited
// note text back into the session. Directories created at runtime are added
// to the watch list. Writes produced by Export itself are recognized by
// content and skipped.
//
// Editors and os.WriteFile truncate before writing, so a Create event often
// precedes the bytes. Changed files are collected and read only after their
// events have settled for a short interval.
func (d *Dir) Watch(ctx context.Context, session Session) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, d.root); err != nil {
		return err
	}
	d.logger.Info("scratch: watching", slog.String("root", d.root))

	// settleTimer debounces reads of changed files.
	var settleTimer *time.Timer
	var settleCh <-chan time.Time
	changed := make(map[string]struct{})

	scheduleStage := func(name string) {
		changed[name] = struct{}{}
		if settleTimer == nil {
			settleTimer = time.NewTimer(200 * time.Millisecond)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			d.logger.Info("scratch: stopped")
			return nil

		case <-settleCh:
			for name := range changed {
				d.stageFile(name, session)
			}
			clear(changed)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						d.logger.Warn("scratch: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			scheduleStage(ev.Name)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.logger.Error("scratch: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

func (d *Dir) stageFile(abs string, session Session) {
	rel, err := filepath.Rel(d.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		d.logger.Warn("scratch: read failed",
			slog.String("path", rel),
			slog.String("error", err.Error()))
		return
	}
	text := string(data)

	d.mu.Lock()
	self := d.written[rel] == text
	d.mu.Unlock()
	if self {
		return
	}

	parts := strings.SplitN(filepath.ToSlash(rel), "/", 3)
	if len(parts) != 3 {
		d.logger.Debug("scratch: file outside a repo tree", slog.String("path", rel))
		return
	}
	repoKey := models.RepoKey(parts[0] + "/" + parts[1])
	path := parts[2]

	if err := session.StageExternalEdit(repoKey, path, text); err != nil {
		d.logger.Warn("scratch: stage failed",
			slog.String("path", rel),
			slog.String("error", err.Error()))
		return
	}
	d.mu.Lock()
	d.written[rel] = text
	d.mu.Unlock()
	d.logger.Debug("scratch: staged external edit", slog.String("path", rel))
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}

func splitEntryKey(key string) (models.RepoKey, string, bool) {
	i := strings.Index(key, ":")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return models.RepoKey(key[:i]), key[i+1:], true
}
