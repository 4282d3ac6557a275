package ledger_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/mminstall/pkg/mminstall/errdefs"
	"github.com/jamesainslie/mminstall/pkg/mminstall/ledger"
	"github.com/jamesainslie/mminstall/pkg/mminstall/source"
)

var (
	sodium  = source.Repository{ProjectID: "AANobbMI", FileID: "u1OEbNKx"}
	jei     = source.CurseForge{ProjectID: "238222", FileID: "5846880"}
	shaders = source.Direct{URL: "https://cdn.example.com/shaders.zip"}
)

func TestLoadOrCreateMissing(t *testing.T) {
	t.Parallel()

	l, err := ledger.LoadOrCreate(filepath.Join(t.TempDir(), "mm-installer", ledger.FileName), "1.2.0")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", l.InstallerVersion)
	assert.Equal(t, ledger.Counts{}, l.Counts())
	_, ok := l.Loader()
	assert.False(t, ok)
}

func TestPersistRoundTripRebuildsIndexes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mm-installer", ledger.FileName)
	l := ledger.New("1.0.0")
	l.RecordLoader(ledger.LoaderRecord{FileName: "installer.jar", URL: "https://x/installer.jar", Hash: "aa"})
	l.RecordMod(sodium, ledger.ModRecord{FileName: "sodium.jar", Hash: "bb"})
	l.RecordMod(jei, ledger.ModRecord{FileName: "jei.jar", Hash: "cc"})
	l.RecordResource(shaders, ledger.ResourceRecord{FileName: "shaders.zip", Hash: "dd", TargetDir: "shaderpacks"})
	l.RecordResource(shaders, ledger.ResourceRecord{FileName: "shaders.zip", Hash: "dd", TargetDir: "backup"})
	require.NoError(t, l.Persist(path))

	loaded, err := ledger.LoadOrCreate(path, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, ledger.Counts{Loader: true, Mods: 2, Resources: 2}, loaded.Counts())

	rec, ok := loaded.Mod(jei)
	require.True(t, ok)
	assert.Equal(t, "jei.jar", rec.FileName)
	assert.Equal(t, "cc", rec.Hash)

	res, ok := loaded.Resource(shaders, "backup")
	require.True(t, ok)
	assert.Equal(t, "backup", res.TargetDir)
	_, ok = loaded.Resource(shaders, "elsewhere")
	assert.False(t, ok)

	loader, ok := loaded.Loader()
	require.True(t, ok)
	assert.Equal(t, "installer.jar", loader.FileName)
}

func TestPersistedFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ledger.FileName)
	l := ledger.New("1.0.0")
	l.RecordMod(jei, ledger.ModRecord{FileName: "jei.jar", Hash: "cc"})
	require.NoError(t, l.Persist(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "1.0.0", raw["installerVersion"])
	assert.NotContains(t, raw, "modLoader")
	mods := raw["mods"].([]any)
	require.Len(t, mods, 1)
	mod := mods[0].(map[string]any)
	assert.Equal(t, "curseforge", mod["type"])
	assert.Equal(t, "238222", mod["projectId"])
	assert.Equal(t, "jei.jar", mod["fileName"])
	assert.Equal(t, []any{}, raw["resources"])

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestRecordReplacesInPlace(t *testing.T) {
	t.Parallel()

	l := ledger.New("1.0.0")
	l.RecordMod(sodium, ledger.ModRecord{FileName: "sodium-1.jar", Hash: "old"})
	l.RecordMod(jei, ledger.ModRecord{FileName: "jei.jar", Hash: "cc"})

	prev, replaced := l.RecordMod(sodium, ledger.ModRecord{FileName: "sodium-2.jar", Hash: "new"})
	assert.True(t, replaced)
	assert.Equal(t, "sodium-1.jar", prev.FileName)

	require.Len(t, l.Mods, 2)
	assert.Equal(t, "sodium-2.jar", l.Mods[0].FileName, "replacement keeps position")
	assert.Equal(t, "jei.jar", l.Mods[1].FileName)

	_, replaced = l.RecordLoader(ledger.LoaderRecord{FileName: "a.jar"})
	assert.False(t, replaced)
	prevLoader, replaced := l.RecordLoader(ledger.LoaderRecord{FileName: "b.jar"})
	assert.True(t, replaced)
	assert.Equal(t, "a.jar", prevLoader.FileName)
}

func TestInstallerVersionForwardOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stored  string
		current string
		want    string
	}{
		{stored: "0.9.0", current: "1.0.0", want: "1.0.0"},
		{stored: "2.0.0", current: "1.0.0", want: "2.0.0"},
		{stored: "1.0.0", current: "1.0.0", want: "1.0.0"},
		{stored: "garbage", current: "1.0.0", want: "1.0.0"},
		{stored: "1.0.0", current: "dev", want: "1.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.stored+"->"+tt.current, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), ledger.FileName)
			require.NoError(t, ledger.New(tt.stored).Persist(path))

			l, err := ledger.LoadOrCreate(path, tt.current)
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.InstallerVersion)
		})
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := map[string]string{
		"garbled.json":      `{"installerVersion": `,
		"unknown-type.json": `{"installerVersion":"1.0.0","mods":[{"fileName":"a.jar","type":"github","hash":"x"}]}`,
	}
	for name, body := range tests {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := ledger.LoadOrCreate(path, "1.0.0")
		assert.ErrorIs(t, err, errdefs.ErrFormat, name)
	}
}

func TestLoadAcceptsNumericIDs(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ledger.FileName)
	body := `{"installerVersion":"1.0.0","mods":[{"fileName":"jei.jar","type":"curseforge","projectId":238222,"fileId":5846880,"hash":"cc"}],"resources":[]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	l, err := ledger.LoadOrCreate(path, "1.0.0")
	require.NoError(t, err)
	rec, ok := l.Mod(jei)
	require.True(t, ok)
	assert.Equal(t, "jei.jar", rec.FileName)
}
