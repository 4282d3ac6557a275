package launcher

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const existingProfiles = `{
  "profiles": {
    "abc": {"name": "Vanilla", "type": "latest-release", "lastVersionId": "latest-release", "icon": "Grass", "resolution": {"width": 854, "height": 480}}
  },
  "settings": {"enableSnapshots": true, "locale": "en-us"},
  "version": 3
}`

func testRegistry(t *testing.T, content string) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), ProfilesFileName)
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	r := NewRegistry(path)
	r.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC) }
	r.NewID = func() string { return "0123456789abcdef0123456789abcdef" }
	return r
}

func TestAddProfile(t *testing.T) {
	t.Parallel()

	r := testRegistry(t, existingProfiles)
	added, err := r.AddProfile(Profile{
		Name:    "Skyblock Pack",
		Icon:    "Furnace",
		Version: "fabric-loader-0.16.9-1.21.1",
		JVMArgs: "-Xmx4G",
		GameDir: "/games/skyblock",
	})
	require.NoError(t, err)
	assert.True(t, added)

	data, err := os.ReadFile(r.Path)
	require.NoError(t, err)

	var doc struct {
		Profiles map[string]map[string]any `json:"profiles"`
		Settings map[string]any            `json:"settings"`
		Version  int                       `json:"version"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))

	assert.Equal(t, 3, doc.Version)
	assert.Equal(t, "en-us", doc.Settings["locale"])
	require.Len(t, doc.Profiles, 2)
	assert.Contains(t, doc.Profiles["abc"], "resolution", "unmodelled fields are preserved")

	got := doc.Profiles["0123456789abcdef0123456789abcdef"]
	assert.Equal(t, "Skyblock Pack", got["name"])
	assert.Equal(t, "custom", got["type"])
	assert.Equal(t, "-Xmx4G", got["javaArgs"])
	assert.Equal(t, "/games/skyblock", got["gameDir"])
	assert.Equal(t, "fabric-loader-0.16.9-1.21.1", got["lastVersionId"])
	assert.Equal(t, "2026-03-01T12:00:00.123Z", got["created"])

	backup, err := os.ReadFile(r.Path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, existingProfiles, string(backup))
}

func TestAddProfileExistingNameIsNoop(t *testing.T) {
	t.Parallel()

	r := testRegistry(t, existingProfiles)
	added, err := r.AddProfile(Profile{Name: "Vanilla", Version: "1.21.1"})
	require.NoError(t, err)
	assert.False(t, added)
	assert.NoFileExists(t, r.Path+".bak")
}

func TestAddProfileNumberedBackups(t *testing.T) {
	t.Parallel()

	r := testRegistry(t, existingProfiles)
	require.NoError(t, os.WriteFile(r.Path+".bak", []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(r.Path+".bak1", []byte("older"), 0o644))

	_, err := r.AddProfile(Profile{Name: "Pack", Version: "1.21.1"})
	require.NoError(t, err)
	assert.FileExists(t, r.Path+".bak2")

	old, err := os.ReadFile(r.Path + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
}

func TestAddProfileErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing registry", func(t *testing.T) {
		t.Parallel()
		_, err := testRegistry(t, "").AddProfile(Profile{Name: "Pack"})
		assert.True(t, errors.Is(err, ErrNoRegistry))
	})

	t.Run("malformed registry", func(t *testing.T) {
		t.Parallel()
		r := testRegistry(t, "{not json")
		_, err := r.AddProfile(Profile{Name: "Pack"})
		require.Error(t, err)
		assert.NoFileExists(t, r.Path+".bak")
	})
}

func TestNewRegistryIDIsDashless(t *testing.T) {
	t.Parallel()

	id := NewRegistry("x").NewID()
	assert.Len(t, id, 32)
	assert.NotContains(t, id, "-")
}
