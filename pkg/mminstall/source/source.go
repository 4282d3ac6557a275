// Package source models where an artifact is downloaded from and resolves
// those descriptions to concrete download URLs.
//
// A Source is a closed set of descriptor types. The only two places that
// switch over it are Resolver.Resolve and FieldsOf; Key is part of the
// interface so every descriptor must provide its canonical ledger key.
package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind is the wire tag of a source descriptor.
type Kind string

const (
	// KindDirect is a plain download URL.
	KindDirect Kind = "direct"
	// KindModrinth is an indirect reference to a Modrinth project version.
	KindModrinth Kind = "modrinth"
	// KindCurseForge is a CurseForge project file, downloaded through a URL template.
	KindCurseForge Kind = "curseforge"
)

// Source describes where an artifact comes from.
type Source interface {
	// Kind returns the wire tag of the descriptor.
	Kind() Kind
	// Key returns the canonical source key used to index ledger records.
	Key() string

	sealed()
}

// Direct is a source with an explicit download URL.
type Direct struct {
	URL string
}

// Repository references a file of a project in a repository that exposes a
// metadata API. It resolves to a URL through a network lookup.
type Repository struct {
	ProjectID string
	FileID    string
}

// CurseForge references a CurseForge project file.
type CurseForge struct {
	ProjectID string
	FileID    string
}

func (Direct) Kind() Kind     { return KindDirect }
func (Repository) Kind() Kind { return KindModrinth }
func (CurseForge) Kind() Kind { return KindCurseForge }

func (s Direct) Key() string     { return "direct:" + s.URL }
func (s Repository) Key() string { return fmt.Sprintf("repo:%s:%s", s.ProjectID, s.FileID) }
func (s CurseForge) Key() string { return fmt.Sprintf("cf:%s:%s", s.ProjectID, s.FileID) }

func (Direct) sealed()     {}
func (Repository) sealed() {}
func (CurseForge) sealed() {}

// ID is a repository identifier. Manifests may write numeric ids unquoted,
// so both YAML and JSON decoding accept numbers as well as strings.
type ID string

// UnmarshalYAML accepts any scalar.
func (id *ID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: identifier must be a scalar", node.Line)
	}
	*id = ID(node.Value)
	return nil
}

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Fields is the flattened wire form of a Source. Manifest entries and ledger
// records embed it so the descriptor appears inline:
//
//	type: modrinth
//	projectId: AANobbMI
//	fileId: 4Tk0rSNE
type Fields struct {
	Type      Kind   `json:"type" yaml:"type"`
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	ProjectID ID     `json:"projectId,omitempty" yaml:"projectId,omitempty"`
	FileID    ID     `json:"fileId,omitempty" yaml:"fileId,omitempty"`
}

// ErrUnknownKind is returned for a descriptor with an unrecognized type tag.
var ErrUnknownKind = errors.New("unknown source type")

// Source converts the wire form into a typed descriptor.
func (f Fields) Source() (Source, error) {
	switch f.Type {
	case KindDirect:
		if f.URL == "" {
			return nil, errors.New("url is required for direct sources")
		}
		return Direct{URL: f.URL}, nil
	case KindModrinth:
		if f.ProjectID == "" || f.FileID == "" {
			return nil, errors.New("projectId and fileId are required for modrinth sources")
		}
		return Repository{ProjectID: string(f.ProjectID), FileID: string(f.FileID)}, nil
	case KindCurseForge:
		if _, err := strconv.ParseUint(string(f.ProjectID), 10, 32); err != nil {
			return nil, fmt.Errorf("curseforge projectId %q must be numeric", f.ProjectID)
		}
		if _, err := strconv.ParseUint(string(f.FileID), 10, 32); err != nil {
			return nil, fmt.Errorf("curseforge fileId %q must be numeric", f.FileID)
		}
		return CurseForge{ProjectID: string(f.ProjectID), FileID: string(f.FileID)}, nil
	case "":
		return nil, errors.New("source type is required")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, f.Type)
	}
}

// FieldsOf converts a typed descriptor into its wire form.
func FieldsOf(s Source) Fields {
	switch s := s.(type) {
	case Direct:
		return Fields{Type: KindDirect, URL: s.URL}
	case Repository:
		return Fields{Type: KindModrinth, ProjectID: ID(s.ProjectID), FileID: ID(s.FileID)}
	case CurseForge:
		return Fields{Type: KindCurseForge, ProjectID: ID(s.ProjectID), FileID: ID(s.FileID)}
	default:
		panic(fmt.Sprintf("source: unhandled descriptor %T", s))
	}
}
