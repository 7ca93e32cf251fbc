// Package testutil provides shared test helpers: a temporary index database
// and an in-memory fake of the remote store.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/checksum"
	"github.com/halvard/munin/internal/index"
	"github.com/halvard/munin/internal/models"
	"github.com/halvard/munin/internal/remote"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "munin-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// FakeRemote is an in-memory remote.Client. Trees created through the
// git-data methods become visible to subsequent listings once the ref is
// updated, so full load→edit→commit→reload cycles can run against it.
type FakeRemote struct {
	mu       sync.Mutex
	blobs    map[string]string                    // sha -> content
	files    map[models.RepoKey]map[string]string // path -> sha
	head     map[models.RepoKey]string            // branch head commit
	trees    map[string][]remote.NewTreeEntry     // created trees
	commits  map[string]string                    // commit sha -> tree sha
	messages []string
	seq      int

	// Truncated makes every tree fetch report truncation.
	Truncated bool
	// FailFetch lists paths whose content fetch fails.
	FailFetch map[string]bool
	// TreeCreates counts CreateTree calls, for fail-closed assertions.
	TreeCreates int
}

// NewFakeRemote returns an empty fake remote.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		blobs:   make(map[string]string),
		files:   make(map[models.RepoKey]map[string]string),
		head:    make(map[models.RepoKey]string),
		trees:   make(map[string][]remote.NewTreeEntry),
		commits: make(map[string]string),
	}
}

// SetFile seeds (or overwrites) a remote file.
func (f *FakeRemote) SetFile(repo models.Repo, path, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sha := checksum.GitBlobSHA([]byte(content))
	f.blobs[sha] = content
	m, ok := f.files[repo.Key()]
	if !ok {
		m = make(map[string]string)
		f.files[repo.Key()] = m
	}
	m[path] = sha
}

// Messages returns the commit messages received so far.
func (f *FakeRemote) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

// Paths returns the current sorted remote paths of repo.
func (f *FakeRemote) Paths(repo models.Repo) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for p := range f.files[repo.Key()] {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Content returns the current content of a remote path.
func (f *FakeRemote) Content(repo models.Repo, path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sha, ok := f.files[repo.Key()][path]
	if !ok {
		return "", false
	}
	return f.blobs[sha], true
}

func (f *FakeRemote) ListFilesRecursive(_ context.Context, repo models.Repo, path string) ([]remote.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Truncated {
		return nil, apperr.ErrTruncatedTree
	}
	prefix := ""
	if path != "" {
		prefix = strings.TrimSuffix(path, "/") + "/"
	}
	var out []remote.FileInfo
	for p, sha := range f.files[repo.Key()] {
		if prefix != "" && !strings.HasPrefix(p, prefix) {
			continue
		}
		out = append(out, remote.FileInfo{Path: p, SHA: sha, RawURL: "fake://" + p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (f *FakeRemote) FetchContent(_ context.Context, repo models.Repo, path, expectedSHA string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailFetch[path] {
		return "", &apperr.FetchError{Path: path, Err: fmt.Errorf("injected fetch failure")}
	}
	content, ok := f.blobs[expectedSHA]
	if !ok {
		return "", &apperr.FetchError{Path: path, Err: fmt.Errorf("unknown blob %s", expectedSHA)}
	}
	return content, nil
}

func (f *FakeRemote) GetRef(_ context.Context, repo models.Repo) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.head[repo.Key()]; ok {
		return h, nil
	}
	return "head-" + string(repo.Key()), nil
}

func (f *FakeRemote) GetCommit(_ context.Context, repo models.Repo, commitSHA string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tree, ok := f.commits[commitSHA]; ok {
		return tree, nil
	}
	return "headtree-" + string(repo.Key()), nil
}

func (f *FakeRemote) GetTree(_ context.Context, repo models.Repo, treeSHA string) (*remote.Tree, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	tree := &remote.Tree{SHA: treeSHA, Truncated: f.Truncated}

	// Live snapshot of the current file set, including directory nodes the
	// way a real recursive listing returns them.
	dirs := make(map[string]bool)
	var paths []string
	for p := range f.files[repo.Key()] {
		paths = append(paths, p)
		for i, r := range p {
			if r == '/' {
				dirs[p[:i]] = true
			}
		}
	}
	sort.Strings(paths)
	var dirPaths []string
	for d := range dirs {
		dirPaths = append(dirPaths, d)
	}
	sort.Strings(dirPaths)

	for _, d := range dirPaths {
		tree.Entries = append(tree.Entries, remote.TreeEntry{Path: d, Mode: "040000", Type: "tree", SHA: "dir-" + d})
	}
	for _, p := range paths {
		tree.Entries = append(tree.Entries, remote.TreeEntry{
			Path: p, Mode: "100644", Type: "blob", SHA: f.files[repo.Key()][p],
		})
	}
	return tree, nil
}

func (f *FakeRemote) CreateTree(_ context.Context, repo models.Repo, entries []remote.NewTreeEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TreeCreates++
	f.seq++
	sha := fmt.Sprintf("tree-%d", f.seq)
	f.trees[sha] = append([]remote.NewTreeEntry(nil), entries...)
	return sha, nil
}

func (f *FakeRemote) CreateCommit(_ context.Context, repo models.Repo, message, treeSHA string, parents []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	sha := fmt.Sprintf("commit-%d", f.seq)
	f.commits[sha] = treeSHA
	f.messages = append(f.messages, message)
	return sha, nil
}

func (f *FakeRemote) UpdateRef(_ context.Context, repo models.Repo, commitSHA string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	treeSHA, ok := f.commits[commitSHA]
	if !ok {
		return fmt.Errorf("unknown commit %s", commitSHA)
	}
	entries, ok := f.trees[treeSHA]
	if !ok {
		return fmt.Errorf("unknown tree %s", treeSHA)
	}

	next := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Type == "tree" {
			continue
		}
		switch {
		case e.Content != nil:
			sha := checksum.GitBlobSHA([]byte(*e.Content))
			f.blobs[sha] = *e.Content
			next[e.Path] = sha
		case e.SHA != nil:
			next[e.Path] = *e.SHA
		}
	}
	f.files[repo.Key()] = next
	f.head[repo.Key()] = commitSHA
	return nil
}

var _ remote.Client = (*FakeRemote)(nil)
