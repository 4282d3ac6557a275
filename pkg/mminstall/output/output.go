// Package output renders install status reports in several formats
// (pretty, plain, json, yaml).
//
// Formatters are registered by name and selected at runtime:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, report); err != nil {
//	    return err
//	}
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
)

// State is the install status of one manifest entry.
type State string

const (
	// StateInstalled means the ledger records the entry with the expected hash.
	StateInstalled State = "installed"
	// StateDrifted means the ledger or disk disagrees with the manifest.
	StateDrifted State = "drifted"
	// StatePending means the entry has never been installed.
	StatePending State = "pending"
	// StateSkipped means the entry does not apply to the configured side.
	StateSkipped State = "skipped"
)

// Entry is one manifest artifact and what the ledger knows about it.
type Entry struct {
	Kind      string `json:"kind" yaml:"kind"`
	Name      string `json:"name" yaml:"name"`
	Source    string `json:"source" yaml:"source"`
	Expected  string `json:"expectedHash" yaml:"expectedHash"`
	Recorded  string `json:"recordedHash,omitempty" yaml:"recordedHash,omitempty"`
	FileName  string `json:"fileName,omitempty" yaml:"fileName,omitempty"`
	TargetDir string `json:"targetDir,omitempty" yaml:"targetDir,omitempty"`
	State     State  `json:"state" yaml:"state"`
	// Note explains a drifted state, e.g. a missing file.
	Note string `json:"note,omitempty" yaml:"note,omitempty"`
}

// Report is the status of an install directory against its manifest.
type Report struct {
	InstallDir       string   `json:"installDir" yaml:"installDir"`
	ManifestPath     string   `json:"manifest" yaml:"manifest"`
	CanStart         bool     `json:"canStart" yaml:"canStart"`
	PackVersion      string   `json:"packVersion,omitempty" yaml:"packVersion,omitempty"`
	InstallerVersion string   `json:"installerVersion,omitempty" yaml:"installerVersion,omitempty"`
	Side             string   `json:"side" yaml:"side"`
	Entries          []Entry  `json:"entries" yaml:"entries"`
	Warnings         []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Count returns the number of entries in state s.
func (r *Report) Count(s State) int {
	n := 0
	for _, e := range r.Entries {
		if e.State == s {
			n++
		}
	}
	return n
}

// UpToDate reports whether a run would download nothing.
func (r *Report) UpToDate() bool {
	return r.Count(StateDrifted) == 0 && r.Count(StatePending) == 0
}

// Formatter renders a Report.
type Formatter interface {
	Format(w *bytes.Buffer, r *Report) error
}

// FormatterFactory creates a Formatter.
type FormatterFactory func() Formatter

// Registry maps names to formatter factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]FormatterFactory)}
}

// Register adds or replaces a formatter.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns the registered names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds the built-in formatters.
var DefaultRegistry = NewRegistry()

func Register(name string, factory FormatterFactory) { DefaultRegistry.Register(name, factory) }

func Get(name string) (Formatter, error) { return DefaultRegistry.Get(name) }

func Available() []string { return DefaultRegistry.Available() }
