package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jamesainslie/mminstall/pkg/mminstall/errdefs"
	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
)

const (
	// DefaultModrinthAPI is the base URL of the Modrinth v2 API.
	DefaultModrinthAPI = "https://api.modrinth.com"

	// DefaultCurseForgeTemplate builds a CurseForge download URL from the
	// project id and file id, in that order.
	DefaultCurseForgeTemplate = "https://www.curseforge.com/api/v1/mods/%s/files/%s/download"

	// maxJSONResponseBytes caps metadata responses (4 MiB).
	maxJSONResponseBytes = 4 << 20

	// maxErrorSnippet caps the body excerpt kept for failed API calls.
	maxErrorSnippet = 512

	defaultLookupTimeout = 30 * time.Second
)

type (
	// URLCache memoizes repository lookups by canonical source key.
	URLCache interface {
		ResolvedURL(key string) (string, bool, error)
		PutResolvedURL(key, url string) error
	}

	// ProjectMismatchError is returned when repository metadata belongs to a
	// different project than the one the manifest references.
	ProjectMismatchError struct {
		FileID   string
		Expected string
		Got      string
	}

	// APIError is returned for unexpected repository API responses.
	APIError struct {
		URL        string
		StatusCode int
		Snippet    string
	}

	// Resolver maps source descriptors to concrete download URLs.
	Resolver struct {
		httpClient         *http.Client
		baseURL            string
		curseForgeTemplate string
		userAgent          string
		cache              URLCache
	}

	// Option configures a Resolver during construction.
	Option func(*Resolver)

	// modrinthVersion is the wire format of GET /v2/version/{id}.
	modrinthVersion struct {
		ID        string         `json:"id"`
		ProjectID string         `json:"project_id"`
		Files     []modrinthFile `json:"files"`
	}

	modrinthFile struct {
		URL      string `json:"url"`
		Filename string `json:"filename"`
		Primary  bool   `json:"primary"`
		Size     int64  `json:"size"`
	}
)

// Error describes which project the metadata actually belongs to.
func (e *ProjectMismatchError) Error() string {
	return fmt.Sprintf("project id mismatch for version %s: expected %s, got %s", e.FileID, e.Expected, e.Got)
}

// Unwrap classifies the mismatch as an integrity failure.
func (e *ProjectMismatchError) Unwrap() error { return errdefs.ErrIntegrity }

// Error includes the status code and a body excerpt.
func (e *APIError) Error() string {
	return fmt.Sprintf("repository request %s failed with status %d: %s", e.URL, e.StatusCode, e.Snippet)
}

// Unwrap classifies the failure as an HTTP error.
func (e *APIError) Unwrap() error { return errdefs.ErrHTTP }

// WithHTTPClient sets the client used for metadata lookups.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		r.httpClient = c
	}
}

// WithBaseURL overrides the repository API base URL, primarily for tests.
func WithBaseURL(base string) Option {
	return func(r *Resolver) {
		r.baseURL = strings.TrimRight(base, "/")
	}
}

// WithCurseForgeTemplate overrides the CurseForge download URL template.
func WithCurseForgeTemplate(tmpl string) Option {
	return func(r *Resolver) {
		r.curseForgeTemplate = tmpl
	}
}

// WithUserAgent sets the User-Agent header. Modrinth rejects anonymous clients.
func WithUserAgent(ua string) Option {
	return func(r *Resolver) {
		r.userAgent = ua
	}
}

// WithCache memoizes repository lookups.
func WithCache(c URLCache) Option {
	return func(r *Resolver) {
		r.cache = c
	}
}

// NewResolver creates a Resolver with sensible defaults.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		httpClient:         &http.Client{Timeout: defaultLookupTimeout},
		baseURL:            DefaultModrinthAPI,
		curseForgeTemplate: DefaultCurseForgeTemplate,
		userAgent:          "mminstall/dev",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the download URL for src. Direct and CurseForge sources
// never touch the network.
func (r *Resolver) Resolve(ctx context.Context, src Source) (string, error) {
	switch s := src.(type) {
	case Direct:
		return s.URL, nil
	case CurseForge:
		return fmt.Sprintf(r.curseForgeTemplate, s.ProjectID, s.FileID), nil
	case Repository:
		return r.resolveRepository(ctx, s)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownKind, src)
	}
}

func (r *Resolver) resolveRepository(ctx context.Context, s Repository) (string, error) {
	log := logging.Get("resolver")
	key := s.Key()

	if r.cache != nil {
		cached, ok, err := r.cache.ResolvedURL(key)
		if err != nil {
			log.Warn("resolver cache lookup failed", "key", key, "error", err)
		} else if ok {
			log.Debug("resolved from cache", "key", key, "url", cached)
			return cached, nil
		}
	}

	version, err := r.getVersion(ctx, s.FileID)
	if err != nil {
		return "", err
	}

	if version.ProjectID != s.ProjectID {
		return "", &ProjectMismatchError{FileID: s.FileID, Expected: s.ProjectID, Got: version.ProjectID}
	}
	if len(version.Files) == 0 {
		return "", fmt.Errorf("version %s of project %s: %w", s.FileID, s.ProjectID, errdefs.ErrNoFiles)
	}

	file := version.Files[0]
	if len(version.Files) > 1 {
		primary := -1
		for i, f := range version.Files {
			if f.Primary {
				primary = i
				break
			}
		}
		if primary >= 0 {
			file = version.Files[primary]
			log.Warn("version has multiple files, selecting primary",
				"version", s.FileID, "files", len(version.Files), "file", file.Filename)
		} else {
			log.Warn("version has multiple files and none is primary, selecting first",
				"version", s.FileID, "files", len(version.Files), "file", file.Filename)
		}
	}

	if r.cache != nil {
		if err := r.cache.PutResolvedURL(key, file.URL); err != nil {
			log.Warn("resolver cache store failed", "key", key, "error", err)
		}
	}

	return file.URL, nil
}

// getVersion fetches version metadata from the repository API.
func (r *Resolver) getVersion(ctx context.Context, versionID string) (*modrinthVersion, error) {
	reqURL := fmt.Sprintf("%s/v2/version/%s", r.baseURL, url.PathEscape(versionID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("looking up version %s: %w", versionID, err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("version %s: %w", versionID, errdefs.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet)) //nolint:errcheck // best-effort diagnostics
		return nil, &APIError{URL: reqURL, StatusCode: resp.StatusCode, Snippet: string(snippet)}
	}

	var v modrinthVersion
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding version %s: %w", versionID, errors.Join(errdefs.ErrFormat, err))
	}
	return &v, nil
}
