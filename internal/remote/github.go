package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/halvard/munin/internal/apperr"
	"github.com/halvard/munin/internal/checksum"
	"github.com/halvard/munin/internal/models"
)

const defaultBaseURL = "https://api.github.com"

// GitHub implements Client against the GitHub git-data REST API.
type GitHub struct {
	base   string
	client *http.Client
}

// GitHubOption configures the client.
type GitHubOption func(*GitHub)

// WithBaseURL overrides the API endpoint (GitHub Enterprise, tests).
func WithBaseURL(base string) GitHubOption {
	return func(g *GitHub) { g.base = strings.TrimRight(base, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) GitHubOption {
	return func(g *GitHub) { g.client = c }
}

// NewGitHub creates a GitHub client.
func NewGitHub(opts ...GitHubOption) *GitHub {
	g := &GitHub{
		base:   defaultBaseURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type refResponse struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type commitResponse struct {
	SHA  string `json:"sha"`
	Tree struct {
		SHA string `json:"sha"`
	} `json:"tree"`
}

type blobResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type shaResponse struct {
	SHA string `json:"sha"`
}

type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("github: status %d: %s", e.Status, e.Message)
}

// ListFilesRecursive resolves the branch head and walks its full tree.
// A truncated listing fails closed: observing a partial mirror would make
// every missing file look deleted.
func (g *GitHub) ListFilesRecursive(ctx context.Context, repo models.Repo, path string) ([]FileInfo, error) {
	commitSHA, err := g.GetRef(ctx, repo)
	if err != nil {
		return nil, err
	}
	treeSHA, err := g.GetCommit(ctx, repo, commitSHA)
	if err != nil {
		return nil, err
	}
	tree, err := g.GetTree(ctx, repo, treeSHA)
	if err != nil {
		return nil, err
	}
	if tree.Truncated {
		return nil, apperr.ErrTruncatedTree
	}

	prefix := ""
	if path != "" {
		prefix = strings.TrimSuffix(path, "/") + "/"
	}

	var out []FileInfo
	for _, e := range tree.Entries {
		if e.Type != "blob" {
			continue
		}
		if prefix != "" && !strings.HasPrefix(e.Path, prefix) {
			continue
		}
		out = append(out, FileInfo{Path: e.Path, SHA: e.SHA, RawURL: e.URL})
	}
	return out, nil
}

// FetchContent reads a blob and verifies the bytes hash back to
// expectedSHA before returning them.
func (g *GitHub) FetchContent(ctx context.Context, repo models.Repo, path, expectedSHA string) (string, error) {
	var blob blobResponse
	if err := g.do(ctx, repo, http.MethodGet, g.repoPath(repo, "git/blobs/"+expectedSHA), nil, &blob); err != nil {
		return "", &apperr.FetchError{Path: path, Err: err}
	}
	if blob.Encoding != "base64" {
		return "", &apperr.FetchError{Path: path, Err: fmt.Errorf("unsupported blob encoding %q", blob.Encoding)}
	}
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(blob.Content, "\n", ""))
	if err != nil {
		return "", &apperr.FetchError{Path: path, Err: fmt.Errorf("decode blob: %w", err)}
	}
	if got := checksum.GitBlobSHA(data); got != expectedSHA {
		return "", &apperr.FetchError{Path: path, Err: fmt.Errorf("content hash %s does not match expected %s", got, expectedSHA)}
	}
	return string(data), nil
}

func (g *GitHub) GetRef(ctx context.Context, repo models.Repo) (string, error) {
	var ref refResponse
	if err := g.do(ctx, repo, http.MethodGet, g.repoPath(repo, "git/ref/heads/"+repo.Branch), nil, &ref); err != nil {
		return "", fmt.Errorf("get ref %s: %w", repo.Branch, err)
	}
	return ref.Object.SHA, nil
}

func (g *GitHub) GetCommit(ctx context.Context, repo models.Repo, commitSHA string) (string, error) {
	var commit commitResponse
	if err := g.do(ctx, repo, http.MethodGet, g.repoPath(repo, "git/commits/"+commitSHA), nil, &commit); err != nil {
		return "", fmt.Errorf("get commit %s: %w", commitSHA, err)
	}
	return commit.Tree.SHA, nil
}

func (g *GitHub) GetTree(ctx context.Context, repo models.Repo, treeSHA string) (*Tree, error) {
	var tree Tree
	if err := g.do(ctx, repo, http.MethodGet, g.repoPath(repo, "git/trees/"+treeSHA)+"?recursive=1", nil, &tree); err != nil {
		return nil, fmt.Errorf("get tree %s: %w", treeSHA, err)
	}
	return &tree, nil
}

func (g *GitHub) CreateTree(ctx context.Context, repo models.Repo, entries []NewTreeEntry) (string, error) {
	body := struct {
		Tree []NewTreeEntry `json:"tree"`
	}{Tree: entries}
	var resp shaResponse
	if err := g.do(ctx, repo, http.MethodPost, g.repoPath(repo, "git/trees"), body, &resp); err != nil {
		return "", fmt.Errorf("create tree: %w", err)
	}
	return resp.SHA, nil
}

func (g *GitHub) CreateCommit(ctx context.Context, repo models.Repo, message, treeSHA string, parents []string) (string, error) {
	body := struct {
		Message string   `json:"message"`
		Tree    string   `json:"tree"`
		Parents []string `json:"parents"`
	}{Message: message, Tree: treeSHA, Parents: parents}
	var resp shaResponse
	if err := g.do(ctx, repo, http.MethodPost, g.repoPath(repo, "git/commits"), body, &resp); err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}
	return resp.SHA, nil
}

func (g *GitHub) UpdateRef(ctx context.Context, repo models.Repo, commitSHA string, force bool) error {
	body := struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}{SHA: commitSHA, Force: force}
	if err := g.do(ctx, repo, http.MethodPatch, g.repoPath(repo, "git/refs/heads/"+repo.Branch), body, &shaResponse{}); err != nil {
		return fmt.Errorf("update ref %s: %w", repo.Branch, err)
	}
	return nil
}

func (g *GitHub) repoPath(repo models.Repo, suffix string) string {
	return fmt.Sprintf("/repos/%s/%s/%s", url.PathEscape(repo.Owner), url.PathEscape(repo.Name), suffix)
}

func (g *GitHub) do(ctx context.Context, repo models.Repo, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if repo.Token != "" {
		req.Header.Set("Authorization", "Bearer "+repo.Token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var msg struct {
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &msg)
		if msg.Message == "" {
			msg.Message = strings.TrimSpace(string(raw))
		}
		return &apiError{Status: resp.StatusCode, Message: msg.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
