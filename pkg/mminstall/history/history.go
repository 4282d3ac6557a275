// Package history keeps a journal of install runs, one JSON file per run.
package history

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// Journal reads and writes run entries in a directory.
type Journal struct {
	dir string
	mu  sync.Mutex
}

// DefaultDir returns $XDG_DATA_HOME/mminstall/history.
func DefaultDir() string {
	return filepath.Join(xdg.DataHome, "mminstall", "history")
}

// New returns a journal rooted at dir. The directory is created on first
// write.
func New(dir string) (*Journal, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &Journal{dir: dir}, nil
}

// Dir returns the journal directory.
func (j *Journal) Dir() string { return j.dir }

// Record assigns r an id (if it has none), tallies it and writes it.
func (j *Journal) Record(r *Run) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if r.ID == "" {
		r.ID = newID(r.Started)
	}
	if r.Artifacts == nil {
		r.Artifacts = []Artifact{}
	}
	r.Tally()

	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding run: %w", err)
	}

	path := filepath.Join(j.dir, r.ID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing run: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming run file: %w", err)
	}
	return nil
}

// List returns runs newest first. A non-positive limit returns all.
// Unreadable files are skipped.
func (j *Journal) List(limit int) ([]Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	files, err := os.ReadDir(j.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Run{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history directory: %w", err)
	}

	runs := []Run{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		r, err := j.read(filepath.Join(j.dir, f.Name()))
		if err != nil {
			continue
		}
		runs = append(runs, *r)
	}

	slices.SortFunc(runs, func(a, b Run) int { return b.Started.Compare(a.Started) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Get returns the run with the given id.
func (j *Journal) Get(id string) (*Run, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	r, err := j.read(filepath.Join(j.dir, id+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// Cleanup removes runs older than retentionDays and returns how many were
// removed. A non-positive retention keeps everything.
func (j *Journal) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	files, err := os.ReadDir(j.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading history directory: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		info, err := f.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(j.dir, f.Name())) == nil {
			removed++
		}
	}
	return removed, nil
}

func (j *Journal) read(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return &r, nil
}

// newID returns "install-2006-01-02T15-04-05-<hex>".
func newID(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return fmt.Sprintf("install-%s-%08x", t.UTC().Format("2006-01-02T15-04-05"), t.Nanosecond())
	}
	return fmt.Sprintf("install-%s-%s", t.UTC().Format("2006-01-02T15-04-05"), hex.EncodeToString(suffix))
}
