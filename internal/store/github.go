package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"avoitenko/liftlog/internal/config"
)

// gitHubStore implements the FileStore interface on top of the GitHub
// Contents API. Files are committed JSON documents; the blob sha is the
// version token for optimistic writes.
type gitHubStore struct {
	client  *http.Client
	apiBase string
	owner   string
	repo    string
	branch  string
	token   string

	// onAuthFailed runs once when the credential is rejected, so the host
	// can clear it and re-prompt instead of failing silently forever.
	onAuthFailed func()
}

// GitHubOption configures optional behaviour of the GitHub store.
type GitHubOption func(*gitHubStore)

// WithAuthFailedHook registers a callback invoked when the API answers 401.
func WithAuthFailedHook(fn func()) GitHubOption {
	return func(s *gitHubStore) { s.onAuthFailed = fn }
}

// WithHTTPClient overrides the underlying HTTP client (used by tests).
func WithHTTPClient(c *http.Client) GitHubOption {
	return func(s *gitHubStore) { s.client = c }
}

// NewGitHubStore creates a FileStore backed by a GitHub repository.
func NewGitHubStore(cfg config.GitHubConfig, opts ...GitHubOption) FileStore {
	s := &gitHubStore{
		client:  &http.Client{Timeout: 30 * time.Second},
		apiBase: strings.TrimSuffix(cfg.APIBase, "/"),
		owner:   cfg.Owner,
		repo:    cfg.Repo,
		branch:  cfg.Branch,
		token:   cfg.Token,
	}
	for _, opt := range opts {
		opt(s)
	}
	log.Printf("GitHub store initialized for %s/%s (branch %q)", s.owner, s.repo, s.branch)
	return s
}

// contentResponse is the Contents API shape for a single file.
type contentResponse struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	Content string `json:"content"`
}

// putRequest is the Contents API write body.
type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch,omitempty"`
	SHA     string `json:"sha,omitempty"`
}

// putResponse carries the new blob sha back from a successful write.
type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

func (s *gitHubStore) contentsURL(path string) string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", s.apiBase, s.owner, s.repo, path)
	if s.branch != "" {
		u += "?ref=" + url.QueryEscape(s.branch)
	}
	return u
}

func (s *gitHubStore) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		s.failAuth()
		return nil, ErrAuthFailed
	}
	return resp, nil
}

func (s *gitHubStore) failAuth() {
	s.token = ""
	if s.onAuthFailed != nil {
		s.onAuthFailed()
	}
}

// GetFile fetches a file and decodes its base64 body. 404 means the file
// does not exist yet and reports ErrNotFound.
func (s *gitHubStore) GetFile(ctx context.Context, path string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.contentsURL(path), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, fmt.Errorf("github: get %s: unexpected status %d", path, resp.StatusCode)
	}

	var cr contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("github: get %s: decode response: %w", path, err)
	}

	// GitHub wraps base64 bodies with newlines; strip them before decoding.
	raw, err := base64.StdEncoding.DecodeString(stripWhitespace(cr.Content))
	if err != nil {
		return nil, fmt.Errorf("github: get %s: decode content: %w", path, err)
	}

	return &File{Content: raw, Version: cr.SHA}, nil
}

// PutFile writes a file, presenting expectedVersion as the blob sha. GitHub
// answers 409 on a stale sha and 422 when creating a file that already
// exists; both are the same conflict to our callers.
func (s *gitHubStore) PutFile(ctx context.Context, path string, content []byte, message, expectedVersion string) (string, error) {
	body := putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  s.branch,
		SHA:     expectedVersion,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", s.apiBase, s.owner, s.repo, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		var pr putResponse
		if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
			return "", fmt.Errorf("github: put %s: decode response: %w", path, err)
		}
		return pr.Content.SHA, nil
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return "", ErrConflict
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("github: put %s: unexpected status %d: %s", path, resp.StatusCode, msg)
	}
}

// listEntry is one element of a directory listing response.
type listEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

// ListFiles lists a directory. Used to discover which month-files exist
// instead of guessing at paths. A missing directory is an empty listing.
func (s *gitHubStore) ListFiles(ctx context.Context, dir string) ([]FileInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.contentsURL(dir), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("github: list %s: unexpected status %d", dir, resp.StatusCode)
	}

	var entries []listEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("github: list %s: decode response: %w", dir, err)
	}

	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.Type != "" && e.Type != "file" {
			continue
		}
		infos = append(infos, FileInfo{Name: e.Name, Path: e.Path})
	}
	return infos, nil
}

// ValidateToken checks the credential once against the "who am I" endpoint
// before it is trusted for data calls.
func (s *gitHubStore) ValidateToken(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiBase+"/user", nil)
	if err != nil {
		return err
	}
	resp, err := s.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github: token validation: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)
}
