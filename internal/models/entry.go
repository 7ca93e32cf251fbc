package models

import "time"

// Kind classifies an entry's content. The numeric order is the canonical
// sort rank: notes first, then documents, then links.
type Kind int

const (
	KindNote Kind = iota
	KindDocument
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindNote:
		return "note"
	case KindDocument:
		return "document"
	case KindLink:
		return "link"
	}
	return "unknown"
}

// Content is the closed set of entry payloads. Every consumption site
// switches exhaustively over the three concrete types so that adding a
// variant is a compile-visible event.
type Content interface {
	Kind() Kind
	isContent()
}

// NoteContent is a markdown note with materialized text.
type NoteContent struct {
	Repo        Repo
	Location    string // directory within the repo, "" for root
	Extension   string
	TimeCreated time.Time
	TimeUpdated time.Time
	Text        string   // raw markdown
	HTML        string   // rendered form
	LinkTargets []string // outgoing link targets extracted from Text
}

func (*NoteContent) Kind() Kind { return KindNote }
func (*NoteContent) isContent() {}

// DocumentContent is a tracked file whose content is never materialized
// locally; it is addressed by its remote raw locator.
type DocumentContent struct {
	Repo        Repo
	Location    string
	Extension   string
	TimeCreated time.Time
	TimeUpdated time.Time
	RawURL      string
}

func (*DocumentContent) Kind() Kind { return KindDocument }
func (*DocumentContent) isContent() {}

// LinkContent is a node in the link graph, keyed globally by Target.
// The reference lists are rebuilt from scratch on every reconciliation
// pass; OwnLabels are the link's own labels, independent of any labels
// inherited from referencing notes.
type LinkContent struct {
	Target       string
	RefEntries   []*Entry
	RefRepos     []Repo
	RefLocations []string
	Standalone   bool // user-created; survives with zero references
	OwnerRepo    Repo // registry that owns a standalone link
	OwnLabels    []string
}

func (*LinkContent) Kind() Kind { return KindLink }
func (*LinkContent) isContent() {}

// Entry is one logical unit in the user-facing index.
//
// Key is stable across reconciliation passes as long as the underlying
// repo+path (file entries) or target (links) is unchanged; UI state may be
// keyed by it. Idx is the position in the canonical sort order and is
// recomputed on every pass and must be treated as ephemeral.
type Entry struct {
	Title    string
	Priority int
	Labels   []string
	Content  Content
	Key      string
	Idx      int
}

// FileEntryKey derives the stable key for a Note or Document entry.
func FileEntryKey(repo RepoKey, path string) string {
	return string(repo) + ":" + path
}

// MetaData is the per-file sidecar record persisted next to each tracked
// Note/Document.
type MetaData struct {
	Labels      []string  `yaml:"labels"`
	TimeCreated time.Time `yaml:"timeCreated"`
	TimeUpdated time.Time `yaml:"timeUpdated"`
}

// LinkRecord is one entry of a repo's persisted link registry.
type LinkRecord struct {
	Title      string   `yaml:"title"`
	Target     string   `yaml:"target"`
	OwnLabels  []string `yaml:"ownLabels,omitempty"`
	Standalone bool     `yaml:"standalone"`
}
