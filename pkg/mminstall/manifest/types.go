package manifest

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/mminstall/pkg/mminstall/source"
)

// LatestSchemaVersion is the newest manifest schema this installer reads.
const LatestSchemaVersion = 2

// FileName is the manifest's well-known name relative to the working or
// install directory.
const FileName = "config.yaml"

// Side restricts an entry to the client, the server, or both.
type Side string

const (
	SideBoth   Side = "both"
	SideClient Side = "client"
	SideServer Side = "server"
)

// UnmarshalYAML accepts the side names case-insensitively.
func (s *Side) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: side must be a scalar", node.Line)
	}
	parsed, err := ParseSide(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*s = parsed
	return nil
}

// ParseSide parses a side name. The empty string means SideBoth.
func ParseSide(v string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(v))) {
	case "", SideBoth:
		return SideBoth, nil
	case SideClient:
		return SideClient, nil
	case SideServer:
		return SideServer, nil
	default:
		return "", fmt.Errorf("unknown side %q (want both, client or server)", v)
	}
}

// Includes reports whether an entry marked s is installed on target.
func (s Side) Includes(target Side) bool {
	return s == "" || s == SideBoth || target == SideBoth || s == target
}

// Manifest is the declarative description of a mod pack.
type Manifest struct {
	SchemaVersion int             `yaml:"schemaVersion"`
	PackVersion   string          `yaml:"packVersion"`
	Profile       Profile         `yaml:"profile"`
	ModLoader     ModLoader       `yaml:"modLoader"`
	Mods          []ModEntry      `yaml:"mods"`
	Resources     []ResourceEntry `yaml:"resources"`
}

// Profile is the launcher profile created after installation.
type Profile struct {
	Name    string `yaml:"name"`
	Icon    string `yaml:"icon"`
	Version string `yaml:"version"`
	JVMArgs string `yaml:"jvmArgs,omitempty"`
}

// ModLoader is the loader installer artifact. It is always a direct download.
type ModLoader struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Hash     string `yaml:"hash"`
	AutoOpen bool   `yaml:"autoOpen"`
}

// Source returns the loader's source descriptor.
func (l ModLoader) Source() source.Source {
	return source.Direct{URL: l.URL}
}

// ModEntry is a mod installed into the mods directory.
type ModEntry struct {
	Name          string `yaml:"name"`
	source.Fields `yaml:",inline"`
	Hash          string `yaml:"hash"`
	Side          Side   `yaml:"side"`
}

// ResourceEntry is an auxiliary file placed under TargetDir, optionally
// extracted there when Decompress is set.
type ResourceEntry struct {
	Name          string `yaml:"name"`
	source.Fields `yaml:",inline"`
	Hash          string `yaml:"hash"`
	TargetDir     string `yaml:"targetDir"`
	Decompress    bool   `yaml:"decompress"`
	Side          Side   `yaml:"side"`
}

// ApplicableMods returns the mods installed on side, in manifest order.
func (m *Manifest) ApplicableMods(side Side) []ModEntry {
	out := make([]ModEntry, 0, len(m.Mods))
	for _, e := range m.Mods {
		if e.Side.Includes(side) {
			out = append(out, e)
		}
	}
	return out
}

// ApplicableResources returns the resources installed on side, in manifest order.
func (m *Manifest) ApplicableResources(side Side) []ResourceEntry {
	out := make([]ResourceEntry, 0, len(m.Resources))
	for _, e := range m.Resources {
		if e.Side.Includes(side) {
			out = append(out, e)
		}
	}
	return out
}
