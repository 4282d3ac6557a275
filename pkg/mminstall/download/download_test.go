package download_test

import (
	"context"
	"crypto/sha1" //nolint:gosec // test fixture digests
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/mminstall/pkg/mminstall/download"
	"github.com/jamesainslie/mminstall/pkg/mminstall/errdefs"
)

func sha1Of(b []byte) string {
	s := sha1.Sum(b) //nolint:gosec
	return hex.EncodeToString(s[:])
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	payload := []byte(strings.Repeat("mod bytes ", 5000))

	mux := http.NewServeMux()
	mux.HandleFunc("/redirect-named", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/files/other-name.bin", http.StatusFound)
	})
	mux.HandleFunc("/files/other-name.bin", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="thing.jar"`)
		_, _ = w.Write(payload)
	})
	mux.HandleFunc("/redirect-plain", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/x/mod-7.2.jar?token=abc", http.StatusFound)
	})
	mux.HandleFunc("/x/mod-7.2.jar", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		_, _ = w.Write(payload)
	})
	mux.HandleFunc("/traversal", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="../../evil.jar"`)
		_, _ = w.Write([]byte("x"))
	})
	mux.HandleFunc("/chunked/stream.jar", func(w http.ResponseWriter, _ *http.Request) {
		for range 4 {
			_, _ = w.Write(payload[:1000])
			w.(http.Flusher).Flush()
		}
	})
	mux.HandleFunc("/short/cut.jar", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "100000")
		_, _ = w.Write([]byte("only a little"))
	})
	mux.HandleFunc("/missing.jar", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(strings.Repeat("e", 2000)))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("root"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchNameDerivation(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	c := download.NewClient(download.WithHTTPClient(srv.Client()))

	tests := []struct {
		path string
		want string
	}{
		{path: "/redirect-named", want: "thing.jar"},
		{path: "/redirect-plain", want: "mod-7.2.jar"},
		{path: "/traversal", want: "evil.jar"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			scratch := t.TempDir()
			res, err := c.Fetch(context.Background(), srv.URL+tt.path, scratch)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.FileName)
			assert.Equal(t, filepath.Join(scratch, tt.want), res.Path)
			assert.FileExists(t, res.Path)
		})
	}
}

func TestFetchNoName(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	scratch := t.TempDir()
	_, err := download.NewClient().Fetch(context.Background(), srv.URL+"/", scratch)
	require.ErrorIs(t, err, errdefs.ErrNameResolution)

	entries, _ := os.ReadDir(scratch)
	assert.Empty(t, entries)
}

func TestFetchHTTPError(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	_, err := download.NewClient().Fetch(context.Background(), srv.URL+"/missing.jar", t.TempDir())
	require.ErrorIs(t, err, errdefs.ErrHTTP)

	var httpErr *download.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Len(t, httpErr.Snippet, 512)
}

func TestFetchHashAndProgress(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	scratch := t.TempDir()

	var seen []download.Progress
	res, err := download.NewClient(download.WithChunkSize(1024)).Fetch(
		context.Background(), srv.URL+"/x/mod-7.2.jar", scratch,
		download.WithProgress(func(p download.Progress) { seen = append(seen, p) }),
	)
	require.NoError(t, err)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, sha1Of(data), res.Hash)
	assert.Equal(t, download.SHA1, res.Algorithm)
	assert.Equal(t, int64(len(data)), res.Size)

	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i].ReceivedBytes, seen[i-1].ReceivedBytes)
	}
	last := seen[len(seen)-1]
	frac, known := last.Fraction()
	assert.True(t, known)
	assert.InDelta(t, 1.0, frac, 1e-9)
}

func TestFetchUnknownLength(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	var seen []download.Progress
	res, err := download.NewClient().Fetch(context.Background(), srv.URL+"/chunked/stream.jar", t.TempDir(),
		download.WithAlgorithm(download.SHA256),
		download.WithProgress(func(p download.Progress) { seen = append(seen, p) }),
	)
	require.NoError(t, err)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), res.Hash)

	require.NotEmpty(t, seen)
	for _, p := range seen {
		assert.Equal(t, int64(-1), p.TotalBytes)
		_, known := p.Fraction()
		assert.False(t, known)
	}
}

func TestFetchRemovesPartialFile(t *testing.T) {
	t.Parallel()

	srv := newServer(t)
	scratch := t.TempDir()
	_, err := download.NewClient().Fetch(context.Background(), srv.URL+"/short/cut.jar", scratch)
	require.Error(t, err)

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPlace(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "scratch", "a.jar")
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))

	dst := filepath.Join(dir, "mods", "nested", "a.jar")
	replaced, err := download.Place(src, dst)
	require.NoError(t, err)
	assert.False(t, replaced)
	assert.NoFileExists(t, src)

	require.NoError(t, os.WriteFile(src, []byte("newer"), 0o644))
	replaced, err = download.Place(src, dst)
	require.NoError(t, err)
	assert.True(t, replaced)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "newer", string(got))
}

func TestPlaceOntoDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "a.jar")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "taken"), 0o755))

	_, err := download.Place(src, filepath.Join(dir, "taken"))
	assert.ErrorIs(t, err, errdefs.ErrIO)
	assert.FileExists(t, src)
}
