// Package hub is a small client for the Hugging Face Hub API: repository
// listings with file sizes and reads of small files.
package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/samcharles93/maskfill/internal/version"
)

const (
	DefaultBaseURL  = "https://huggingface.co"
	DefaultRevision = "main"
)

var ErrNotFound = errors.New("not found on hub")

// StatusError is returned for non-2xx responses other than 404.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hub error (status %d) for %s: %s", e.Status, e.URL, e.Body)
}

// File is one entry of a repository listing.
type File struct {
	Name string   `json:"rfilename"`
	Size int64    `json:"size,omitempty"`
	LFS  *LFSInfo `json:"lfs,omitempty"`
}

// LFSInfo describes a file stored through Git LFS.
type LFSInfo struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// ExpectedSize returns the size reported by the hub, or 0 when unknown.
func (f File) ExpectedSize() int64 {
	if f.LFS != nil && f.LFS.Size > 0 {
		return f.LFS.Size
	}
	return f.Size
}

// ModelInfo is the subset of /api/models we use.
type ModelInfo struct {
	ID          string `json:"id"`
	SHA         string `json:"sha"`
	PipelineTag string `json:"pipeline_tag"`
	Siblings    []File `json:"siblings"`
}

type Client struct {
	baseURL   string
	token     string
	userAgent string
	http      *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			c.baseURL = u
		}
	}
}

// WithToken sets a bearer token for gated or private repositories.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: version.UserAgent(),
		http:      &http.Client{Timeout: 30 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the hub root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Token returns the bearer token, or "" for anonymous access.
func (c *Client) Token() string { return c.token }

// ModelInfo lists a repository at revision, including file sizes.
func (c *Client) ModelInfo(ctx context.Context, repo, revision string) (*ModelInfo, error) {
	u := fmt.Sprintf("%s/api/models/%s/revision/%s?blobs=true", c.baseURL, escapeRepo(repo), url.PathEscape(rev(revision)))
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var info ModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode model info for %s: %w", repo, err)
	}
	return &info, nil
}

// ReadFile fetches a small file into memory.
func (c *Client) ReadFile(ctx context.Context, repo, revision, name string) ([]byte, error) {
	resp, err := c.get(ctx, c.resolveURL(repo, revision, name))
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

func (c *Client) resolveURL(repo, revision, name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/%s/resolve/%s/%s", c.baseURL, escapeRepo(repo), url.PathEscape(rev(revision)), strings.Join(parts, "/"))
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", u, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, &StatusError{URL: u, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

func escapeRepo(repo string) string {
	parts := strings.Split(strings.Trim(repo, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func rev(revision string) string {
	if strings.TrimSpace(revision) == "" {
		return DefaultRevision
	}
	return revision
}
