// Package remote defines the remote store boundary and its GitHub
// implementation. The engine only ever sees the Client interface.
package remote

import (
	"context"

	"github.com/halvard/munin/internal/models"
)

// FileInfo describes one blob discovered by a recursive listing.
type FileInfo struct {
	Path   string
	SHA    string
	RawURL string
}

// TreeEntry is one entry of a fetched tree snapshot.
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"` // "blob", "tree", or "commit"
	SHA  string `json:"sha"`
	URL  string `json:"url,omitempty"`
}

// Tree is a recursive tree snapshot. Truncated means the remote could not
// enumerate every entry; consumers must treat such a snapshot as unusable.
type Tree struct {
	SHA       string      `json:"sha"`
	Entries   []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

// NewTreeEntry is one entry of a tree to be created. Exactly one of SHA
// (carry existing blob identity) or Content (upload new bytes) is set for
// blob entries.
type NewTreeEntry struct {
	Path    string  `json:"path"`
	Mode    string  `json:"mode"`
	Type    string  `json:"type"`
	SHA     *string `json:"sha,omitempty"`
	Content *string `json:"content,omitempty"`
}

// Client is the set of remote primitives the engine consumes. All methods
// are blocking and honor ctx cancellation.
type Client interface {
	// ListFilesRecursive returns every blob under path (entire repo for
	// ""). It fails rather than return a partial listing.
	ListFilesRecursive(ctx context.Context, repo models.Repo, path string) ([]FileInfo, error)

	// FetchContent returns the decoded text of the blob expectedSHA claims
	// to identify, failing on hash mismatch or decode error.
	FetchContent(ctx context.Context, repo models.Repo, path, expectedSHA string) (string, error)

	// GetRef resolves the repo's branch to its current commit SHA.
	GetRef(ctx context.Context, repo models.Repo) (string, error)

	// GetCommit returns the tree SHA of a commit.
	GetCommit(ctx context.Context, repo models.Repo, commitSHA string) (string, error)

	// GetTree fetches a full recursive tree snapshot.
	GetTree(ctx context.Context, repo models.Repo, treeSHA string) (*Tree, error)

	// CreateTree uploads a new tree and returns its SHA.
	CreateTree(ctx context.Context, repo models.Repo, entries []NewTreeEntry) (string, error)

	// CreateCommit creates a commit for tree with the given parents.
	CreateCommit(ctx context.Context, repo models.Repo, message, treeSHA string, parents []string) (string, error)

	// UpdateRef points the repo's branch at commitSHA.
	UpdateRef(ctx context.Context, repo models.Repo, commitSHA string, force bool) error
}
