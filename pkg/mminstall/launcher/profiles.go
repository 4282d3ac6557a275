// Package launcher performs the post-install side effects: registering a
// profile with the game launcher and starting the mod loader installer.
package launcher

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"

	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
)

// ProfilesFileName is the launcher's profile registry file.
const ProfilesFileName = "launcher_profiles.json"

// ErrNoRegistry is returned when the launcher has never been run on this
// machine and its profile registry does not exist.
var ErrNoRegistry = errors.New("launcher profile registry not found")

// Profile is the launcher entry created for an installed pack.
type Profile struct {
	Name    string
	Icon    string
	Version string
	JVMArgs string
	GameDir string
}

// Registry edits a launcher_profiles.json file in place.
type Registry struct {
	Path string

	// Now and NewID are replaced in tests.
	Now   func() time.Time
	NewID func() string
}

// launcherProfile is the wire form written for a new entry.
type launcherProfile struct {
	Created       *time.Time `json:"created,omitempty"`
	GameDir       string     `json:"gameDir,omitempty"`
	Icon          string     `json:"icon"`
	JavaArgs      string     `json:"javaArgs,omitempty"`
	LastUsed      *time.Time `json:"lastUsed,omitempty"`
	LastVersionID string     `json:"lastVersionId"`
	Name          string     `json:"name"`
	Type          string     `json:"type"`
}

// DefaultProfilesPath returns the registry location used by the official
// launcher on the current platform.
func DefaultProfilesPath() string {
	return filepath.Join(gameHome(runtime.GOOS), ProfilesFileName)
}

func gameHome(goos string) string {
	switch goos {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, ".minecraft")
		}
		return filepath.Join(xdg.Home, "AppData", "Roaming", ".minecraft")
	case "darwin":
		return filepath.Join(xdg.Home, "Library", "Application Support", "minecraft")
	default:
		return filepath.Join(xdg.Home, ".minecraft")
	}
}

// NewRegistry returns a Registry for the file at path, or the platform
// default when path is empty.
func NewRegistry(path string) *Registry {
	if path == "" {
		path = DefaultProfilesPath()
	}
	return &Registry{
		Path:  path,
		Now:   time.Now,
		NewID: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// AddProfile inserts p unless a profile with the same name already exists.
// The previous registry is kept as a numbered .bak file. Fields this package
// does not model are written back unchanged.
func (r *Registry) AddProfile(p Profile) (bool, error) {
	log := logging.Get("launcher")

	data, err := os.ReadFile(r.Path)
	if errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("%w: %s", ErrNoRegistry, r.Path)
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", r.Path, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("parsing %s: %w", r.Path, err)
	}
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}
	profiles := map[string]json.RawMessage{}
	if raw, ok := doc["profiles"]; ok && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, &profiles); err != nil {
			return false, fmt.Errorf("parsing profiles in %s: %w", r.Path, err)
		}
	}

	for id, raw := range profiles {
		var existing struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &existing); err != nil {
			log.Debug("skipping unreadable profile", "id", id, "error", err)
			continue
		}
		if existing.Name == p.Name {
			log.Info("launcher profile already exists", "name", p.Name, "id", id)
			return false, nil
		}
	}

	id := r.NewID()
	if _, taken := profiles[id]; taken {
		return false, fmt.Errorf("profile id %s already present in %s", id, r.Path)
	}
	now := r.Now().UTC().Truncate(time.Millisecond)
	entry, err := json.Marshal(launcherProfile{
		Created:       &now,
		GameDir:       p.GameDir,
		Icon:          p.Icon,
		JavaArgs:      p.JVMArgs,
		LastUsed:      &now,
		LastVersionID: p.Version,
		Name:          p.Name,
		Type:          "custom",
	})
	if err != nil {
		return false, err
	}
	profiles[id] = entry

	if doc["profiles"], err = json.Marshal(profiles); err != nil {
		return false, err
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return false, err
	}

	backup, err := r.backup()
	if err != nil {
		return false, err
	}
	log.Info("backed up launcher profiles", "path", backup)

	if err := os.WriteFile(r.Path, out, 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", r.Path, err)
	}
	log.Info("added launcher profile", "name", p.Name, "id", id)
	return true, nil
}

// backup renames the registry to the first free name among .bak, .bak1, .bak2...
func (r *Registry) backup() (string, error) {
	candidate := r.Path + ".bak"
	for i := 1; ; i++ {
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			break
		}
		candidate = r.Path + ".bak" + strconv.Itoa(i)
	}
	if err := os.Rename(r.Path, candidate); err != nil {
		return "", fmt.Errorf("backing up %s: %w", r.Path, err)
	}
	return candidate, nil
}
