// Package engine coordinates the mirrored repos, the derived entry list,
// and the staged local edits of one session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/index"
	"github.com/halvard/munin/internal/metadata"
	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/pathcodec"
	"github.com/halvard/munin/internal/reconcile"
	"github.com/halvard/munin/internal/remote"
)

// fetchWorkers bounds concurrent content fetches per repo.
const fetchWorkers = 8

// Engine owns the original/edit file map pair and the reconciled entries.
// All exported methods are safe for concurrent use.
type Engine struct {
	client remote.Client
	db     *index.DB
	repos  []models.Repo
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	original *models.MultiRepoFileMap
	edit     *models.MultiRepoFileMap
	links    []*models.Entry
	entries  []*models.Entry
	primed   bool
	blocked  map[models.RepoKey]bool // repos whose registry could not be read

	onChange func(entries int)
	onCommit func(repo models.RepoKey, sha string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithOnChange registers a callback invoked after every reconciliation
// pass with the new entry count. It runs with the engine lock held, so it
// must not call back into the engine.
func WithOnChange(fn func(entries int)) Option {
	return func(e *Engine) { e.onChange = fn }
}

// WithOnCommit registers a callback invoked after each successfully
// applied commit. Same locking caveat as WithOnChange.
func WithOnCommit(fn func(repo models.RepoKey, sha string)) Option {
	return func(e *Engine) { e.onCommit = fn }
}

// New creates an Engine for the given repos. db may be nil to disable the
// blob cache and the queryable index.
func New(client remote.Client, db *index.DB, repos []models.Repo, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		client:  client,
		db:      db,
		repos:   append([]models.Repo(nil), repos...),
		logger:  logger,
		now:     time.Now,
		blocked: make(map[models.RepoKey]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load fetches every repo tree in parallel, materializes note and metadata
// content, forks the edit map, and reconciles. Any staged edits are
// discarded. The returned slice reports per-file data-quality problems;
// the error is non-nil only when a repo could not be listed at all.
func (e *Engine) Load(ctx context.Context) ([]error, error) {
	original := models.NewMultiRepoFileMap()

	var (
		loadMu   sync.Mutex
		loadErrs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, repo := range e.repos {
		fm := original.For(repo)
		g.Go(func() error {
			errs, err := e.loadRepo(gctx, repo, fm)
			if err != nil {
				return fmt.Errorf("load %s: %w", repo.Key(), err)
			}
			loadMu.Lock()
			loadErrs = append(loadErrs, errs...)
			loadMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return loadErrs, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.original = original
	e.edit = original.Clone()
	e.links = nil
	e.primed = false
	e.blocked = make(map[models.RepoKey]bool)
	loadErrs = append(loadErrs, e.reconcileLocked()...)

	e.logger.Info("engine: loaded",
		slog.Int("repos", len(e.repos)),
		slog.Int("entries", len(e.entries)),
		slog.Int("problems", len(loadErrs)))
	return loadErrs, nil
}

// loadRepo lists one repo and fetches the content that derivation needs:
// notes and everything under the reserved metadata directory. Documents
// stay unfetched; their raw URL is enough.
func (e *Engine) loadRepo(ctx context.Context, repo models.Repo, fm *models.FileMap) ([]error, error) {
	infos, err := e.client.ListFilesRecursive(ctx, repo, "")
	if err != nil {
		return nil, err
	}

	var toFetch []*models.File
	for _, info := range infos {
		f := models.NewFile(info.Path, info.SHA, info.RawURL)
		fm.Put(f)
		if metadata.IsReserved(info.Path) || pathcodec.Classify(info.Path) == models.KindNote {
			toFetch = append(toFetch, f)
		}
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)
	for _, f := range toFetch {
		g.Go(func() error {
			if e.db != nil {
				if content, ok := e.db.GetBlob(string(repo.Key()), f.Path, f.ContentHash); ok {
					f.SetContent(content)
					return nil
				}
			}
			content, err := e.client.FetchContent(gctx, repo, f.Path, f.ContentHash)
			if err != nil {
				f.SetFetchError(err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			f.SetContent(content)
			if e.db != nil {
				if err := e.db.PutBlob(string(repo.Key()), f.Path, f.ContentHash, content); err != nil {
					e.logger.Warn("engine: blob cache write failed",
						slog.String("path", f.Path),
						slog.String("error", err.Error()))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errs, err
	}
	return errs, nil
}

// reconcileLocked re-derives file entries from the edit maps, runs link
// reconciliation against the current link set, re-stages each repo's
// registry, and refreshes the queryable index. Callers hold e.mu.
func (e *Engine) reconcileLocked() []error {
	var (
		fileEntries []*models.Entry
		errs        []error
	)
	existing := e.links

	for _, repo := range e.edit.Repos() {
		fm, _ := e.edit.Get(repo.Key())
		fe, ferrs := reconcile.FileEntries(repo, fm, fm, e.now, e.logger)
		fileEntries = append(fileEntries, fe...)
		errs = append(errs, ferrs...)

		if !e.primed {
			le, lerrs := reconcile.RegistryLinks(repo, fm, e.logger)
			existing = append(existing, le...)
			errs = append(errs, lerrs...)
			for _, lerr := range lerrs {
				var fetchErr *apperr.FetchError
				if errors.As(lerr, &fetchErr) {
					// Never rewrite a registry we could not read.
					e.blocked[repo.Key()] = true
				}
			}
		}
	}
	e.primed = true

	e.links, e.entries = reconcile.Reconcile(fileEntries, existing, e.logger)

	for _, repo := range e.edit.Repos() {
		if e.blocked[repo.Key()] {
			continue
		}
		fm, _ := e.edit.Get(repo.Key())
		records := reconcile.RegistryRecords(repo, e.links)
		if _, exists := fm.Get(metadata.RegistryPath); !exists && len(records) == 0 {
			continue
		}
		text, err := metadata.MarshalRegistry(records)
		if err != nil {
			e.logger.Error("engine: registry marshal failed",
				slog.String("repo", string(repo.Key())),
				slog.String("error", err.Error()))
			continue
		}
		fm.SetContent(metadata.RegistryPath, text)
	}

	if e.db != nil {
		if err := index.Sync(e.db, e.entries, e.logger); err != nil {
			e.logger.Error("engine: index sync failed", slog.String("error", err.Error()))
		}
	}
	if e.onChange != nil {
		e.onChange(len(e.entries))
	}
	return errs
}

// Entries returns the reconciled entries in canonical order.
func (e *Engine) Entries() []*models.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*models.Entry(nil), e.entries...)
}

// Entry returns the entry with the given key.
func (e *Engine) Entry(key string) (*models.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.findLocked(key)
}

// Repos returns the configured repos.
func (e *Engine) Repos() []models.Repo {
	return append([]models.Repo(nil), e.repos...)
}

func (e *Engine) findLocked(key string) (*models.Entry, error) {
	i, err := reconcile.IndexOf(e.entries, key)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", key, apperr.ErrNotFound)
	}
	return e.entries[i], nil
}

func (e *Engine) loadedLocked() error {
	if e.edit == nil {
		return errors.New("engine: not loaded")
	}
	return nil
}

// splitKey splits a file entry key into its repo key and path.
func splitKey(key string) (models.RepoKey, string, bool) {
	i := strings.Index(key, ":")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return models.RepoKey(key[:i]), key[i+1:], true
}
