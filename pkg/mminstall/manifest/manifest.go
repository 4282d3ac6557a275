// Package manifest loads and validates the pack manifest (config.yaml).
//
// A manifest that fails validation is rejected as a whole before any
// network or filesystem activity. Every entry is checked, and all
// violations are reported together, first one first.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/mminstall/pkg/mminstall/download"
	"github.com/jamesainslie/mminstall/pkg/mminstall/errdefs"
)

// ValidationError identifies the manifest field that violates an invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap classifies the error as errdefs.ErrValidation.
func (e *ValidationError) Unwrap() error { return errdefs.ErrValidation }

// Load reads, parses and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, errors.Join(errdefs.ErrIO, err))
	}
	return Parse(data, path)
}

// Parse decodes and validates an in-memory manifest. name is used in error
// messages only.
func Parse(data []byte, name string) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", name, errors.Join(errdefs.ErrFormat, err))
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", name, err)
	}
	return &m, nil
}

// Exists reports whether a manifest file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Validate checks every invariant and returns all violations joined, or nil.
// Resource target directories are normalized in place.
func (m *Manifest) Validate() error {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if m.SchemaVersion > LatestSchemaVersion {
		fail("schemaVersion", "unsupported version %d (expected %d or lower)", m.SchemaVersion, LatestSchemaVersion)
	}
	if m.SchemaVersion < 1 {
		fail("schemaVersion", "must be a positive integer")
	}
	if !semver.IsValid(CanonicalVersion(m.PackVersion)) {
		fail("packVersion", "%q is not a semantic version", m.PackVersion)
	}

	if strings.TrimSpace(m.Profile.Name) == "" {
		fail("profile.name", "must not be empty")
	}
	if strings.TrimSpace(m.Profile.Version) == "" {
		fail("profile.version", "must not be empty")
	}

	if strings.TrimSpace(m.ModLoader.URL) == "" {
		fail("modLoader.url", "must not be empty")
	}
	if err := checkHash(m.ModLoader.Hash); err != nil {
		fail("modLoader.hash", "%v", err)
	}

	// Entries sharing a source are allowed; the later one replaces the
	// earlier one's ledger record.
	for i := range m.Mods {
		e := &m.Mods[i]
		field := fmt.Sprintf("mods[%d]", i)
		if e.Side == "" {
			e.Side = SideBoth
		}
		if _, err := e.Fields.Source(); err != nil {
			fail(field, "%v", err)
		}
		if err := checkHash(e.Hash); err != nil {
			fail(field+".hash", "%v", err)
		}
	}

	for i := range m.Resources {
		e := &m.Resources[i]
		field := fmt.Sprintf("resources[%d]", i)
		if e.Side == "" {
			e.Side = SideBoth
		}
		if _, err := e.Fields.Source(); err != nil {
			fail(field, "%v", err)
		}
		if err := checkHash(e.Hash); err != nil {
			fail(field+".hash", "%v", err)
		}
		if dir, err := CleanTargetDir(e.TargetDir); err != nil {
			fail(field+".targetDir", "%v", err)
		} else {
			e.TargetDir = dir
		}
	}

	return errors.Join(errs...)
}

// CleanTargetDir validates a resource target directory and returns it in
// slash-separated, cleaned form. The empty string denotes the install
// directory itself.
//
// The path must be relative, must not contain ".." segments, and no segment
// may contain a backslash or a colon, so it means the same thing on every
// platform.
func CleanTargetDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	if strings.HasPrefix(dir, "/") {
		return "", errors.New("must be a relative path")
	}
	for _, seg := range strings.Split(dir, "/") {
		if seg == ".." {
			return "", errors.New("must not contain '..' segments")
		}
		if strings.ContainsAny(seg, `\:`) {
			return "", errors.New("contains invalid characters")
		}
	}
	cleaned := path.Clean(dir)
	if cleaned == "." {
		return "", nil
	}
	return cleaned, nil
}

// CanonicalVersion adds the leading "v" golang.org/x/mod/semver expects.
func CanonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

func checkHash(h string) error {
	if strings.TrimSpace(h) == "" {
		return errors.New("must not be empty")
	}
	if _, _, err := download.ParseDigest(h); err != nil {
		return err
	}
	return nil
}
