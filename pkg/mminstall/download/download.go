// Package download streams artifacts into a scratch directory while hashing
// them, and moves verified files to their final location.
package download

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jamesainslie/mminstall/pkg/mminstall/errdefs"
	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
)

const (
	// DefaultConnectTimeout bounds connection setup and the wait for
	// response headers. The body transfer itself is not time limited.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultChunkSize is the read size used while streaming.
	DefaultChunkSize = 8 << 10
)

// Progress reports bytes received for one download.
type Progress struct {
	ReceivedBytes int64
	// TotalBytes is -1 when the server did not announce a length.
	TotalBytes int64
}

// Fraction returns the completed share of the download, or false when the
// total is unknown.
func (p Progress) Fraction() (float64, bool) {
	if p.TotalBytes <= 0 {
		return 0, false
	}
	f := float64(p.ReceivedBytes) / float64(p.TotalBytes)
	return min(max(f, 0), 1), true
}

// Result describes a completed download.
type Result struct {
	// Path is the file inside the scratch directory.
	Path      string
	FileName  string
	Hash      string
	Algorithm Algorithm
	Size      int64
	FinalURL  string
}

// Client downloads files over HTTP.
type Client struct {
	http      *http.Client
	chunkSize int
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client entirely, including its timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithConnectTimeout sets the dial and response-header timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http = newHTTPClient(d)
		}
	}
}

// WithChunkSize sets the streaming read size.
func WithChunkSize(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.chunkSize = n
		}
	}
}

// WithUserAgent sets the User-Agent request header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		cl.userAgent = ua
	}
}

// NewClient creates a download client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:      newHTTPClient(DefaultConnectTimeout),
		chunkSize: DefaultChunkSize,
		userAgent: "mminstall/dev",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return &http.Client{Transport: transport}
}

type fetchConfig struct {
	algo     Algorithm
	progress func(Progress)
}

// FetchOption configures a single Fetch call.
type FetchOption func(*fetchConfig)

// WithAlgorithm selects the digest computed over the downloaded bytes.
func WithAlgorithm(a Algorithm) FetchOption {
	return func(fc *fetchConfig) {
		fc.algo = a
	}
}

// WithProgress registers a callback invoked after every chunk.
func WithProgress(fn func(Progress)) FetchOption {
	return func(fc *fetchConfig) {
		fc.progress = fn
	}
}

// Fetch downloads rawURL into scratchDir, named after the response, and
// returns the file's digest. The partial file is removed on any failure.
func (c *Client) Fetch(ctx context.Context, rawURL, scratchDir string, opts ...FetchOption) (*Result, error) {
	fc := fetchConfig{algo: SHA1}
	for _, opt := range opts {
		opt(&fc)
	}
	log := logging.Get("download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{URL: rawURL, StatusCode: resp.StatusCode, Snippet: readSnippet(resp.Body)}
	}

	name, err := FileName(resp)
	if err != nil {
		return nil, err
	}
	finalURL := resp.Request.URL.String()
	log.Debug("download started", "url", rawURL, "final", finalURL, "file", name, "length", resp.ContentLength)

	part, err := os.CreateTemp(scratchDir, ".part-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch file: %w", errors.Join(errdefs.ErrIO, err))
	}
	partPath := part.Name()
	ok := false
	defer func() {
		if !ok {
			_ = part.Close()
			_ = os.Remove(partPath)
		}
	}()

	h := fc.algo.New()
	progress := Progress{TotalBytes: resp.ContentLength}
	if progress.TotalBytes < 0 {
		progress.TotalBytes = -1
	}
	if fc.progress != nil {
		fc.progress(progress)
	}

	buf := make([]byte, c.chunkSize)
	w := io.MultiWriter(part, h)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return nil, fmt.Errorf("writing %s: %w", partPath, errors.Join(errdefs.ErrIO, err))
			}
			progress.ReceivedBytes += int64(n)
			if fc.progress != nil {
				fc.progress(progress)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading body of %s: %w", rawURL, readErr)
		}
	}

	if progress.TotalBytes >= 0 && progress.ReceivedBytes != progress.TotalBytes {
		return nil, fmt.Errorf("reading body of %s: got %d of %d bytes: %w",
			rawURL, progress.ReceivedBytes, progress.TotalBytes, io.ErrUnexpectedEOF)
	}
	if err := part.Close(); err != nil {
		return nil, fmt.Errorf("closing %s: %w", partPath, errors.Join(errdefs.ErrIO, err))
	}

	dest := filepath.Join(scratchDir, name)
	if err := replaceFile(partPath, dest); err != nil {
		return nil, fmt.Errorf("naming scratch file %s: %w", dest, errors.Join(errdefs.ErrIO, err))
	}
	ok = true

	sum := hex.EncodeToString(h.Sum(nil))
	log.Debug("download finished", "file", name, "bytes", progress.ReceivedBytes, string(fc.algo), sum)
	return &Result{
		Path:      dest,
		FileName:  name,
		Hash:      sum,
		Algorithm: fc.algo,
		Size:      progress.ReceivedBytes,
		FinalURL:  finalURL,
	}, nil
}

func readSnippet(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxSnippet))
	if err != nil {
		return unreadableBody
	}
	return string(b)
}
