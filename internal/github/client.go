// Package github is the repository-hosting client: repo metadata, file
// content, trees and commits, used to give the assistant code context for
// the loaded preview.
package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

const defaultBaseURL = "https://api.github.com"

// htmlFetchConcurrency bounds parallel content fetches in HTMLFiles.
const htmlFetchConcurrency = 4

var repoURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)`)

// Repo identifies a repository by owner and name.
type Repo struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// ParseRepoURL extracts owner and name from a repository URL. A trailing
// ".git" is dropped.
func ParseRepoURL(repoURL string) (Repo, error) {
	m := repoURLPattern.FindStringSubmatch(repoURL)
	if m == nil {
		return Repo{}, fmt.Errorf("not a valid GitHub repository URL: %q", repoURL)
	}
	return Repo{Owner: m[1], Name: strings.TrimSuffix(m[2], ".git")}, nil
}

// PagesURL derives the public GitHub Pages URL for a repository.
func PagesURL(repoURL string) (string, error) {
	repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("https://%s.github.io/%s/", repo.Owner, repo.Name), nil
}

// Client talks to the GitHub REST API with a bearer token. Calls are
// single-attempt; a non-success status is a descriptive error.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// New creates a client authenticating with token.
func New(token string) *Client {
	return &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
}

// NewWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewWithBaseURL(token, baseURL string) *Client {
	c := New(token)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling github: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github returned HTTP %d for %s", resp.StatusCode, path)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response for %s: %w", path, err)
	}
	return nil
}

// RepoInfo is the subset of repository metadata the assistant uses.
type RepoInfo struct {
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
	Private       bool   `json:"private"`
}

// GetRepoInfo fetches repository metadata.
func (c *Client) GetRepoInfo(ctx context.Context, repoURL string) (RepoInfo, error) {
	repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return RepoInfo{}, err
	}
	var info RepoInfo
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s", repo.Owner, repo.Name), &info); err != nil {
		return RepoInfo{}, fmt.Errorf("fetching repository info: %w", err)
	}
	return info, nil
}

// TestConnection verifies the repository is reachable with the configured
// token.
func (c *Client) TestConnection(ctx context.Context, repoURL string) error {
	_, err := c.GetRepoInfo(ctx, repoURL)
	return err
}

type contentsResponse struct {
	Content string `json:"content"`
}

// GetFileContent fetches a file and returns its base64-decoded content.
// A file without decodable content is a hard error; unlike the settings
// layer there is no silent fallback here.
func (c *Client) GetFileContent(ctx context.Context, repoURL, filePath string) (string, error) {
	repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return "", err
	}
	var cr contentsResponse
	path := fmt.Sprintf("/repos/%s/%s/contents/%s", repo.Owner, repo.Name, filePath)
	if err := c.get(ctx, path, &cr); err != nil {
		return "", fmt.Errorf("fetching file %s: %w", filePath, err)
	}
	if cr.Content == "" {
		return "", fmt.Errorf("file %s has no content", filePath)
	}

	// The API wraps base64 content across lines.
	raw := strings.ReplaceAll(cr.Content, "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("decoding content of %s: %w", filePath, err)
	}
	return string(decoded), nil
}

// TreeEntry is one node of the recursive repository tree.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // blob or tree
}

type treeResponse struct {
	Tree []TreeEntry `json:"tree"`
}

// GetTree fetches the recursive file tree at ref; an empty ref means main.
func (c *Client) GetTree(ctx context.Context, repoURL, ref string) ([]TreeEntry, error) {
	repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		ref = "main"
	}
	var tr treeResponse
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s?recursive=1", repo.Owner, repo.Name, ref)
	if err := c.get(ctx, path, &tr); err != nil {
		return nil, fmt.Errorf("fetching repository tree: %w", err)
	}
	return tr.Tree, nil
}

// HTMLFile pairs a repository path with its fetched content.
type HTMLFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// HTMLFiles fetches every .html blob in the tree. Files that fail to fetch
// are skipped rather than failing the whole scan; fetches run concurrently.
func (c *Client) HTMLFiles(ctx context.Context, repoURL string) ([]HTMLFile, error) {
	tree, err := c.GetTree(ctx, repoURL, "")
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range tree {
		if entry.Type == "blob" && strings.HasSuffix(entry.Path, ".html") {
			paths = append(paths, entry.Path)
		}
	}

	var (
		mu    sync.Mutex
		files = make([]HTMLFile, 0, len(paths))
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(htmlFetchConcurrency)
	for _, p := range paths {
		g.Go(func() error {
			content, err := c.GetFileContent(ctx, repoURL, p)
			if err != nil {
				// Per-file failure: skip, keep scanning.
				return nil
			}
			mu.Lock()
			files = append(files, HTMLFile{Path: p, Content: content})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Restore tree order; goroutines finish in arbitrary order.
	ordered := make([]HTMLFile, 0, len(files))
	for _, p := range paths {
		for _, f := range files {
			if f.Path == p {
				ordered = append(ordered, f)
				break
			}
		}
	}
	return ordered, nil
}

// Commit is the metadata shown for recent repository activity.
type Commit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
			Date string `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

// GetLatestCommits fetches recent commit metadata; count defaults to 10.
func (c *Client) GetLatestCommits(ctx context.Context, repoURL string, count int) ([]Commit, error) {
	repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = 10
	}
	var commits []Commit
	path := fmt.Sprintf("/repos/%s/%s/commits?per_page=%d", repo.Owner, repo.Name, count)
	if err := c.get(ctx, path, &commits); err != nil {
		return nil, fmt.Errorf("fetching commits: %w", err)
	}
	return commits, nil
}

// GetSharedMemory probes for a shared_memory.json collaboration file. A
// missing or unparseable file means collaboration is simply not enabled:
// nil, no error.
func (c *Client) GetSharedMemory(ctx context.Context, repoURL string) (map[string]any, error) {
	content, err := c.GetFileContent(ctx, repoURL, "shared_memory.json")
	if err != nil {
		return nil, nil
	}
	var memory map[string]any
	if err := json.Unmarshal([]byte(content), &memory); err != nil {
		return nil, nil
	}
	return memory, nil
}
