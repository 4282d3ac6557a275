// Package ledger persists what has already been installed into a target
// directory, so re-runs skip satisfied artifacts and detect drift.
//
// Only the ordered record lists are stored. The lookup indexes are derived
// from them after every load and are never read from disk.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/jamesainslie/mminstall/pkg/mminstall/errdefs"
	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
	"github.com/jamesainslie/mminstall/pkg/mminstall/source"
)

// FileName is the ledger's name inside the application folder.
const FileName = "installer-state.json"

// LoaderRecord describes the installed loader artifact.
type LoaderRecord struct {
	FileName string `json:"fileName"`
	URL      string `json:"url"`
	Hash     string `json:"hash"`
}

// ModRecord describes an installed mod.
type ModRecord struct {
	FileName string `json:"fileName"`
	source.Fields
	Hash string `json:"hash"`
}

// ResourceRecord describes an installed resource. With Decompress set,
// FileName is the archive that was extracted into TargetDir.
type ResourceRecord struct {
	FileName string `json:"fileName"`
	source.Fields
	Hash       string `json:"hash"`
	TargetDir  string `json:"targetDir"`
	Decompress bool   `json:"decompress"`
}

type resourceKey struct {
	source    string
	targetDir string
}

// Ledger is the installation record of one install directory. It is not
// safe for concurrent use; a run owns it exclusively.
type Ledger struct {
	InstallerVersion string           `json:"installerVersion"`
	ModLoader        *LoaderRecord    `json:"modLoader,omitempty"`
	Mods             []ModRecord      `json:"mods"`
	Resources        []ResourceRecord `json:"resources"`

	mods      map[string]int
	resources map[resourceKey]int
}

// Counts summarizes a ledger's contents.
type Counts struct {
	Loader    bool
	Mods      int
	Resources int
}

// New returns an empty ledger tagged with version.
func New(version string) *Ledger {
	return &Ledger{
		InstallerVersion: version,
		Mods:             []ModRecord{},
		Resources:        []ResourceRecord{},
		mods:             map[string]int{},
		resources:        map[resourceKey]int{},
	}
}

// LoadOrCreate reads the ledger at path, or returns an empty one when the
// file does not exist. A stored installer version older than
// currentVersion is advanced; it never moves backwards.
func LoadOrCreate(path, currentVersion string) (*Ledger, error) {
	log := logging.Get("ledger")

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug("no ledger found, starting empty", "path", path)
		return New(currentVersion), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, errors.Join(errdefs.ErrIO, err))
	}

	l := New(currentVersion)
	if err := json.Unmarshal(data, l); err != nil {
		return nil, fmt.Errorf("decoding ledger %s: %w", path, errors.Join(errdefs.ErrFormat, err))
	}
	if l.Mods == nil {
		l.Mods = []ModRecord{}
	}
	if l.Resources == nil {
		l.Resources = []ResourceRecord{}
	}
	if err := l.reindex(); err != nil {
		return nil, fmt.Errorf("ledger %s: %w", path, err)
	}

	if newerThan(currentVersion, l.InstallerVersion) {
		log.Info("advancing ledger installer version", "from", l.InstallerVersion, "to", currentVersion)
		l.InstallerVersion = currentVersion
	}
	return l, nil
}

// reindex rebuilds both lookup maps from the record lists. A later record
// with a key already seen wins, matching insert-or-replace semantics.
func (l *Ledger) reindex() error {
	l.mods = make(map[string]int, len(l.Mods))
	for i, r := range l.Mods {
		src, err := r.Source()
		if err != nil {
			return fmt.Errorf("mods[%d]: %w", i, errors.Join(errdefs.ErrFormat, err))
		}
		l.mods[src.Key()] = i
	}
	l.resources = make(map[resourceKey]int, len(l.Resources))
	for i, r := range l.Resources {
		src, err := r.Source()
		if err != nil {
			return fmt.Errorf("resources[%d]: %w", i, errors.Join(errdefs.ErrFormat, err))
		}
		l.resources[resourceKey{src.Key(), r.TargetDir}] = i
	}
	return nil
}

// Loader returns the loader record, if any.
func (l *Ledger) Loader() (LoaderRecord, bool) {
	if l.ModLoader == nil {
		return LoaderRecord{}, false
	}
	return *l.ModLoader, true
}

// Mod returns the record installed from src.
func (l *Ledger) Mod(src source.Source) (ModRecord, bool) {
	i, ok := l.mods[src.Key()]
	if !ok {
		return ModRecord{}, false
	}
	return l.Mods[i], true
}

// Resource returns the record installed from src into targetDir.
func (l *Ledger) Resource(src source.Source, targetDir string) (ResourceRecord, bool) {
	i, ok := l.resources[resourceKey{src.Key(), targetDir}]
	if !ok {
		return ResourceRecord{}, false
	}
	return l.Resources[i], true
}

// RecordLoader sets the loader record and returns the one it replaced.
func (l *Ledger) RecordLoader(rec LoaderRecord) (prev LoaderRecord, replaced bool) {
	if l.ModLoader != nil {
		prev, replaced = *l.ModLoader, true
	}
	l.ModLoader = &rec
	return prev, replaced
}

// RecordMod inserts rec for src, or replaces the existing record for src in
// place. The record's source fields are taken from src.
func (l *Ledger) RecordMod(src source.Source, rec ModRecord) (prev ModRecord, replaced bool) {
	rec.Fields = source.FieldsOf(src)
	key := src.Key()
	if i, ok := l.mods[key]; ok {
		prev = l.Mods[i]
		l.Mods[i] = rec
		return prev, true
	}
	l.mods[key] = len(l.Mods)
	l.Mods = append(l.Mods, rec)
	return ModRecord{}, false
}

// RecordResource inserts or replaces the record for (src, rec.TargetDir).
func (l *Ledger) RecordResource(src source.Source, rec ResourceRecord) (prev ResourceRecord, replaced bool) {
	rec.Fields = source.FieldsOf(src)
	key := resourceKey{src.Key(), rec.TargetDir}
	if i, ok := l.resources[key]; ok {
		prev = l.Resources[i]
		l.Resources[i] = rec
		return prev, true
	}
	l.resources[key] = len(l.Resources)
	l.Resources = append(l.Resources, rec)
	return ResourceRecord{}, false
}

// Counts returns the number of records per category.
func (l *Ledger) Counts() Counts {
	return Counts{Loader: l.ModLoader != nil, Mods: len(l.Mods), Resources: len(l.Resources)}
}

// Persist writes the ledger to path atomically, creating the parent
// directory. A crash leaves either the previous file or the new one.
func (l *Ledger) Persist(path string) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, errors.Join(errdefs.ErrIO, err))
	}

	tmp, err := os.CreateTemp(dir, "."+FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", errors.Join(errdefs.ErrIO, err))
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	syncErr := tmp.Sync()
	closeErr := tmp.Close()
	if err := errors.Join(writeErr, syncErr, closeErr); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp ledger: %w", errors.Join(errdefs.ErrIO, err))
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing ledger %s: %w", path, errors.Join(errdefs.ErrIO, err))
	}
	return nil
}

// newerThan reports whether version a is strictly newer than b. An
// unparsable b counts as older than any valid a.
func newerThan(a, b string) bool {
	ca, cb := canonical(a), canonical(b)
	if !semver.IsValid(ca) {
		return false
	}
	if !semver.IsValid(cb) {
		return true
	}
	return semver.Compare(ca, cb) > 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
