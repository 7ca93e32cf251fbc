package models

import "sort"

// File is one tracked path within a repo's FileMap.
//
// A File is in exactly one of three states: content fetched, fetch failed,
// or content intentionally not fetched (e.g. a large binary that is tracked
// but never materialized). Only the first state can back a fully-derived
// entry; a fetch failure must never be read as "deleted" or "empty".
type File struct {
	Path        string
	ContentHash string // remote-assigned blob identifier, opaque
	RawURL      string // optional direct-fetch locator

	content    string
	hasContent bool
	fetchErr   error
}

// NewFile returns a File in the not-fetched state.
func NewFile(path, contentHash, rawURL string) *File {
	return &File{Path: path, ContentHash: contentHash, RawURL: rawURL}
}

// Content returns the fetched text and whether it is present.
func (f *File) Content() (string, bool) {
	return f.content, f.hasContent
}

// FetchErr returns the recorded fetch failure, or nil.
func (f *File) FetchErr() error {
	return f.fetchErr
}

// SetContent stores fetched or locally edited text, clearing any prior
// fetch failure.
func (f *File) SetContent(text string) {
	f.content = text
	f.hasContent = true
	f.fetchErr = nil
}

// SetFetchError records a failed remote read, discarding any stale content.
func (f *File) SetFetchError(err error) {
	f.content = ""
	f.hasContent = false
	f.fetchErr = err
}

// Clone returns an independent copy.
func (f *File) Clone() *File {
	c := *f
	return &c
}

// FileMap maps path to File for a single repo. The zero value is not
// usable; construct with NewFileMap.
type FileMap struct {
	files map[string]*File
}

// NewFileMap returns an empty FileMap.
func NewFileMap() *FileMap {
	return &FileMap{files: make(map[string]*File)}
}

// Get returns the File at path, if tracked.
func (m *FileMap) Get(path string) (*File, bool) {
	f, ok := m.files[path]
	return f, ok
}

// Put inserts or replaces the File at f.Path.
func (m *FileMap) Put(f *File) {
	m.files[f.Path] = f
}

// SetContent upserts path with the given text. An existing entry keeps its
// hash and raw URL; its fetch error, if any, is cleared. A new entry starts
// with no remote identity (it has never been committed).
func (m *FileMap) SetContent(path, text string) {
	f, ok := m.files[path]
	if !ok {
		f = NewFile(path, "", "")
		m.files[path] = f
	}
	f.SetContent(text)
}

// Delete removes path entirely. This is a tracked-file removal, distinct
// from clearing content.
func (m *FileMap) Delete(path string) {
	delete(m.files, path)
}

// Len returns the number of tracked paths.
func (m *FileMap) Len() int {
	return len(m.files)
}

// Paths returns all tracked paths in sorted order.
func (m *FileMap) Paths() []string {
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy. Mutating the clone never affects the source;
// this is how an edit session forks from a loaded original.
func (m *FileMap) Clone() *FileMap {
	c := NewFileMap()
	for p, f := range m.files {
		c.files[p] = f.Clone()
	}
	return c
}

// MultiRepoFileMap maps repo identity to that repo's FileMap.
type MultiRepoFileMap struct {
	repos map[RepoKey]*repoFiles
}

type repoFiles struct {
	repo  Repo
	files *FileMap
}

// NewMultiRepoFileMap returns an empty MultiRepoFileMap.
func NewMultiRepoFileMap() *MultiRepoFileMap {
	return &MultiRepoFileMap{repos: make(map[RepoKey]*repoFiles)}
}

// For returns the FileMap for repo, creating it on first use.
func (m *MultiRepoFileMap) For(repo Repo) *FileMap {
	rf, ok := m.repos[repo.Key()]
	if !ok {
		rf = &repoFiles{repo: repo, files: NewFileMap()}
		m.repos[repo.Key()] = rf
	}
	return rf.files
}

// Set replaces the FileMap for repo.
func (m *MultiRepoFileMap) Set(repo Repo, files *FileMap) {
	m.repos[repo.Key()] = &repoFiles{repo: repo, files: files}
}

// Get returns the FileMap for key, if present.
func (m *MultiRepoFileMap) Get(key RepoKey) (*FileMap, bool) {
	rf, ok := m.repos[key]
	if !ok {
		return nil, false
	}
	return rf.files, true
}

// Repos returns the tracked repos sorted by key.
func (m *MultiRepoFileMap) Repos() []Repo {
	out := make([]Repo, 0, len(m.repos))
	for _, rf := range m.repos {
		out = append(out, rf.repo)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Clone deep-copies every per-repo FileMap.
func (m *MultiRepoFileMap) Clone() *MultiRepoFileMap {
	c := NewMultiRepoFileMap()
	for k, rf := range m.repos {
		c.repos[k] = &repoFiles{repo: rf.repo, files: rf.files.Clone()}
	}
	return c
}
