package installer

import (
	"context"
	"crypto/sha1" //nolint:gosec // test digests
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/mminstall/pkg/mminstall/event"
	"github.com/jamesainslie/mminstall/pkg/mminstall/launcher"
	"github.com/jamesainslie/mminstall/pkg/mminstall/ledger"
	"github.com/jamesainslie/mminstall/pkg/mminstall/trash"
)

func sha1Hex(b []byte) string {
	sum := sha1.Sum(b) //nolint:gosec // test digests
	return hex.EncodeToString(sum[:])
}

type served struct {
	body   []byte
	name   string
	status int
}

// fileServer serves artifacts by path and counts requests.
type fileServer struct {
	mu    sync.Mutex
	files map[string]served
	hits  map[string]int
	srv   *httptest.Server
}

func newFileServer(t *testing.T) *fileServer {
	t.Helper()
	fs := &fileServer{files: map[string]served{}, hits: map[string]int{}}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.hits[r.URL.Path]++
		f, ok := fs.files[r.URL.Path]
		fs.mu.Unlock()

		switch {
		case !ok:
			http.NotFound(w, r)
		case f.status != 0:
			w.WriteHeader(f.status)
		default:
			if f.name != "" {
				w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.name))
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(f.body)))
			_, _ = w.Write(f.body)
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

func (f *fileServer) set(path, body string) { f.setNamed(path, "", body) }

func (f *fileServer) setNamed(path, name, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = served{body: []byte(body), name: name}
}

func (f *fileServer) fail(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = served{status: status}
}

func (f *fileServer) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func (f *fileServer) totalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, h := range f.hits {
		n += h
	}
	return n
}

func (f *fileServer) url(path string) string { return f.srv.URL + path }

// entry is one artifact in a test pack.
type entry struct {
	name       string
	path       string
	hash       string
	targetDir  string
	side       string
	decompress bool
}

type pack struct {
	loader    entry
	autoOpen  bool
	mods      []entry
	resources []entry
}

// defaultPack registers one loader, two mods and one resource on srv.
func defaultPack(srv *fileServer) pack {
	files := map[string]string{
		"/loader/fabric-installer.jar": "fabric installer bytes",
		"/mods/sodium.jar":             "sodium 0.6.0",
		"/mods/lithium.jar":            "lithium 0.14.3",
		"/res/options.txt":             "renderDistance:12",
	}
	for p, body := range files {
		srv.set(p, body)
	}
	h := func(p string) string { return sha1Hex([]byte(files[p])) }
	return pack{
		loader: entry{name: "Fabric Installer", path: "/loader/fabric-installer.jar", hash: h("/loader/fabric-installer.jar")},
		mods: []entry{
			{name: "Sodium", path: "/mods/sodium.jar", hash: h("/mods/sodium.jar")},
			{name: "Lithium", path: "/mods/lithium.jar", hash: h("/mods/lithium.jar")},
		},
		resources: []entry{
			{name: "Options", path: "/res/options.txt", hash: h("/res/options.txt"), targetDir: "config"},
		},
	}
}

func (p pack) write(t *testing.T, dir string, srv *fileServer) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "schemaVersion: 2\npackVersion: 1.2.0\n")
	fmt.Fprintf(&b, "profile:\n  name: Test Pack\n  icon: Furnace\n  version: fabric-loader-0.16.9-1.21.1\n")
	fmt.Fprintf(&b, "modLoader:\n  name: %s\n  url: %s\n  hash: %s\n  autoOpen: %t\n",
		p.loader.name, srv.url(p.loader.path), p.loader.hash, p.autoOpen)
	b.WriteString("mods:\n")
	for _, m := range p.mods {
		writeEntry(&b, m, srv)
	}
	b.WriteString("resources:\n")
	for _, r := range p.resources {
		writeEntry(&b, r, srv)
		fmt.Fprintf(&b, "    targetDir: %q\n    decompress: %t\n", r.targetDir, r.decompress)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(b.String()), 0o644))
}

func writeEntry(b *strings.Builder, e entry, srv *fileServer) {
	fmt.Fprintf(b, "  - name: %s\n    type: direct\n    url: %s\n    hash: %s\n", e.name, srv.url(e.path), e.hash)
	if e.side != "" {
		fmt.Fprintf(b, "    side: %s\n", e.side)
	}
}

// recorder collects emitted events.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Emit(e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) ofType(t event.Type) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) progress() []float64 {
	var out []float64
	for _, e := range r.ofType(event.TypeUpdateProgress) {
		out = append(out, e.Progress)
	}
	return out
}

func (r *recorder) phases() []event.Phase {
	var out []event.Phase
	for _, e := range r.ofType(event.TypeChangePhase) {
		out = append(out, e.Phase)
	}
	return out
}

func (r *recorder) alerts() []string {
	var out []string
	for _, e := range r.ofType(event.TypeAddAlert) {
		out = append(out, string(e.Level)+":"+e.Key)
	}
	return out
}

// fakeTrash deletes files and remembers them.
type fakeTrash struct {
	mu    sync.Mutex
	moved []string
}

func (f *fakeTrash) Move(_ context.Context, path string) (trash.Method, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moved = append(f.moved, path)
	return trash.MethodDeleted, os.Remove(path)
}

type fakeProfiles struct {
	err   error
	added []launcher.Profile
}

func (f *fakeProfiles) AddProfile(p launcher.Profile) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.added = append(f.added, p)
	return true, nil
}

// countingCache is an in-memory HashCache.
type countingCache struct {
	mu     sync.Mutex
	sums   map[string]string
	hits   int
	stores int
}

func (c *countingCache) key(path string, size int64, mtime time.Time, algo string) string {
	return fmt.Sprintf("%s|%d|%d|%s", path, size, mtime.UnixNano(), algo)
}

func (c *countingCache) FileHash(path string, size int64, mtime time.Time, algo string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sums[c.key(path, size, mtime, algo)]
	if ok {
		c.hits++
	}
	return s, ok, nil
}

func (c *countingCache) PutFileHash(path string, size int64, mtime time.Time, algo, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sums == nil {
		c.sums = map[string]string{}
	}
	c.sums[c.key(path, size, mtime, algo)] = hash
	c.stores++
	return nil
}

func newTestInstaller(t *testing.T, dir string, mutate ...func(*Options)) (*Installer, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts := Options{
		InstallDir:   dir,
		Version:      "1.0.0",
		VerifyOnDisk: true,
		Emitter:      rec,
		Launch:       func(string, string) error { return nil },
	}
	for _, m := range mutate {
		m(&opts)
	}
	in, err := New(opts)
	require.NoError(t, err)
	return in, rec
}

func loadLedger(t *testing.T, dir string) *ledger.Ledger {
	t.Helper()
	l, err := ledger.LoadOrCreate(Layout{Root: dir}.LedgerPath(), "1.0.0")
	require.NoError(t, err)
	return l
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
