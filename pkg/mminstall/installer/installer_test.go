package installer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/mminstall/pkg/mminstall/errdefs"
	"github.com/jamesainslie/mminstall/pkg/mminstall/event"
)

func TestRunFreshInstall(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t)
	dir := t.TempDir()
	defaultPack(srv).write(t, dir, srv)

	in, rec := newTestInstaller(t, dir)
	summary, err := in.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, summary.State)
	assert.Equal(t, "1.2.0", summary.PackVersion)
	assert.Equal(t, 4, summary.Count(ActionDownloaded))

	assert.Equal(t, "fabric installer bytes", readFile(t, filepath.Join(dir, "fabric-installer.jar")))
	assert.Equal(t, "sodium 0.6.0", readFile(t, filepath.Join(dir, "mods", "sodium.jar")))
	assert.Equal(t, "lithium 0.14.3", readFile(t, filepath.Join(dir, "mods", "lithium.jar")))
	assert.Equal(t, "renderDistance:12", readFile(t, filepath.Join(dir, "config", "options.txt")))

	l := loadLedger(t, dir)
	loader, ok := l.Loader()
	require.True(t, ok)
	assert.Equal(t, "fabric-installer.jar", loader.FileName)
	assert.Len(t, l.Mods, 2)
	assert.Len(t, l.Resources, 1)
	assert.Equal(t, "config", l.Resources[0].TargetDir)

	assert.Equal(t, []event.Phase{
		event.PhasePrepareWorkspace,
		event.PhaseDownloadModLoader,
		event.PhaseDownloadMods,
		event.PhaseDownloadResources,
	}, rec.phases())
	assert.Empty(t, rec.alerts())

	entries, err := os.ReadDir(in.Layout().ScratchDir())
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch directory holds nothing after a clean run")
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t)
	dir := t.TempDir()
	defaultPack(srv).write(t, dir, srv)

	in, _ := newTestInstaller(t, dir)
	_, err := in.Run(context.Background())
	require.NoError(t, err)
	hits := srv.totalHits()
	before := readFile(t, in.Layout().LedgerPath())

	summary, err := in.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, hits, srv.totalHits(), "second run performs no downloads")
	assert.Equal(t, 4, summary.Count(ActionSkipped))
	assert.Equal(t, before, readFile(t, in.Layout().LedgerPath()))
}

func TestRunDriftReplacesRecordInPlace(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t)
	dir := t.TempDir()
	p := defaultPack(srv)
	srv.setNamed("/mods/lithium.jar", "lithium-0.14.3.jar", "lithium 0.14.3")
	p.write(t, dir, srv)

	bin := &fakeTrash{}
	in, _ := newTestInstaller(t, dir, func(o *Options) { o.Trash = bin })
	_, err := in.Run(context.Background())
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "mods", "lithium-0.14.3.jar"))

	srv.setNamed("/mods/lithium.jar", "lithium-0.15.0.jar", "lithium 0.15.0")
	p.mods[1].hash = sha1Hex([]byte("lithium 0.15.0"))
	p.write(t, dir, srv)

	summary, err := in.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count(ActionRedownloaded))
	assert.Equal(t, 2, srv.hitCount("/mods/lithium.jar"))
	assert.Equal(t, 1, srv.hitCount("/mods/sodium.jar"))

	l := loadLedger(t, dir)
	require.Len(t, l.Mods, 2, "drift replaces, never appends")
	assert.Equal(t, "lithium-0.15.0.jar", l.Mods[1].FileName)
	assert.Equal(t, p.mods[1].hash, l.Mods[1].Hash)

	assert.Equal(t, []string{filepath.Join(in.Layout().ModsDir(), "lithium-0.14.3.jar")}, bin.moved)
	assert.NoFileExists(t, filepath.Join(dir, "mods", "lithium-0.14.3.jar"))
	assert.FileExists(t, filepath.Join(dir, "mods", "lithium-0.15.0.jar"))
}

func TestRunResumesAfterFailure(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t)
	dir := t.TempDir()
	p := defaultPack(srv)
	p.write(t, dir, srv)
	srv.fail("/mods/lithium.jar", http.StatusServiceUnavailable)

	in, _ := newTestInstaller(t, dir)
	summary, err := in.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrHTTP)
	assert.Equal(t, StateFailed, summary.State)
	assert.Equal(t, 2, summary.Count(ActionDownloaded))

	l := loadLedger(t, dir)
	assert.Len(t, l.Mods, 1, "artifacts before the failure stay recorded")

	srv.set("/mods/lithium.jar", "lithium 0.14.3")
	summary, err = in.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, srv.hitCount("/loader/fabric-installer.jar"))
	assert.Equal(t, 1, srv.hitCount("/mods/sodium.jar"))
	assert.Equal(t, 1, srv.hitCount("/res/options.txt"))
	assert.Equal(t, 2, summary.Count(ActionSkipped))
	assert.Equal(t, 2, summary.Count(ActionDownloaded))
}

func TestRunHashMismatch(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t)
	dir := t.TempDir()
	p := defaultPack(srv)
	p.mods[0].hash = sha1Hex([]byte("something else"))
	p.write(t, dir, srv)

	in, _ := newTestInstaller(t, dir)
	summary, err := in.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrIntegrity)

	var ie *IntegrityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "Sodium", ie.Name)
	assert.Equal(t, sha1Hex([]byte("sodium 0.6.0")), ie.Actual)

	assert.Equal(t, StateFailed, summary.State)
	assert.NoFileExists(t, filepath.Join(dir, "mods", "sodium.jar"))
	assert.NoFileExists(t, filepath.Join(in.Layout().ScratchDir(), "sodium.jar"))
	_, recorded := loadLedger(t, dir).Loader()
	assert.True(t, recorded)
	assert.Empty(t, loadLedger(t, dir).Mods)
}

func TestRunHashComparisonIgnoresCase(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t)
	dir := t.TempDir()
	p := defaultPack(srv)
	p.mods[0].hash = "SHA1:" + upper(p.mods[0].hash)
	p.write(t, dir, srv)

	in, _ := newTestInstaller(t, dir)
	_, err := in.Run(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "mods", "sodium.jar"))
}

func TestRunProgressIsMonotonic(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t)
	dir := t.TempDir()
	defaultPack(srv).write(t, dir, srv)

	in, rec := newTestInstaller(t, dir)
	_, err := in.Run(context.Background())
	require.NoError(t, err)

	got := rec.progress()
	require.NotEmpty(t, got)
	assert.Equal(t, 0.0, got[0])
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1], "progress decreased at %d: %v", i, got)
	}
	assert.Equal(t, 1.0, got[len(got)-1])
	assert.Contains(t, got, 0.25, "loader completes a quarter of a four step run")
}

func TestRunFailsOnInvalidManifestBeforeNetwork(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t)
	dir := t.TempDir()
	p := defaultPack(srv)
	p.resources[0].targetDir = "../../etc"
	p.write(t, dir, srv)

	in, _ := newTestInstaller(t, dir)
	_, err := in.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrValidation)
	assert.Zero(t, srv.totalHits())
}

func TestRunMissingManifest(t *testing.T) {
	t.Parallel()

	in, _ := newTestInstaller(t, t.TempDir())
	summary, err := in.Run(context.Background())
	assert.ErrorIs(t, err, errdefs.ErrIO)
	assert.Equal(t, StateFailed, summary.State)
}

func TestRunReverifiesOnDisk(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t)
	dir := t.TempDir()
	defaultPack(srv).write(t, dir, srv)

	cache := &countingCache{}
	in, _ := newTestInstaller(t, dir, func(o *Options) { o.HashCache = cache })
	_, err := in.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "mods", "sodium.jar")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mods", "lithium.jar"), []byte("tampered"), 0o644))

	summary, err := in.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count(ActionRedownloaded))
	assert.Equal(t, 2, summary.Count(ActionSkipped))
	assert.Equal(t, "sodium 0.6.0", readFile(t, filepath.Join(dir, "mods", "sodium.jar")))
	assert.Equal(t, "lithium 0.14.3", readFile(t, filepath.Join(dir, "mods", "lithium.jar")))

	hitsBefore := cache.hits
	_, err = in.Run(context.Background())
	require.NoError(t, err)
	assert.Greater(t, cache.hits, hitsBefore, "unchanged files are served from the hash cache")
}

func TestRunTrustsLedgerWhenVerificationDisabled(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t)
	dir := t.TempDir()
	defaultPack(srv).write(t, dir, srv)

	in, _ := newTestInstaller(t, dir, func(o *Options) { o.VerifyOnDisk = false })
	_, err := in.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "mods", "sodium.jar")))

	summary, err := in.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Count(ActionSkipped))
}

func TestRunSideFiltering(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t)
	dir := t.TempDir()
	p := defaultPack(srv)
	p.mods[1].side = "server"
	p.write(t, dir, srv)

	in, rec := newTestInstaller(t, dir)
	_, err := in.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, srv.hitCount("/mods/lithium.jar"))
	assert.NoFileExists(t, filepath.Join(dir, "mods", "lithium.jar"))
	assert.Contains(t, rec.progress(), 1.0/3.0)
}

func TestRunDecompressesResources(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("BSL/shaders.properties")
	require.NoError(t, err)
	_, err = w.Write([]byte("shadowMapResolution=2048"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	srv := newFileServer(t)
	dir := t.TempDir()
	p := defaultPack(srv)
	srv.set("/res/bsl.zip", buf.String())
	p.resources = append(p.resources, entry{
		name: "BSL Shaders", path: "/res/bsl.zip", hash: sha1Hex(buf.Bytes()),
		targetDir: "shaderpacks", decompress: true,
	})
	p.write(t, dir, srv)

	in, _ := newTestInstaller(t, dir)
	_, err = in.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "shadowMapResolution=2048", readFile(t, filepath.Join(dir, "shaderpacks", "BSL", "shaders.properties")))
	assert.NoFileExists(t, filepath.Join(dir, "shaderpacks", "bsl.zip"))

	l := loadLedger(t, dir)
	require.Len(t, l.Resources, 2)
	assert.True(t, l.Resources[1].Decompress)
	assert.Equal(t, "bsl.zip", l.Resources[1].FileName)

	summary, err := in.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Count(ActionSkipped))
}

func TestRunPostInstall(t *testing.T) {
	t.Parallel()

	t.Run("profile and launch succeed", func(t *testing.T) {
		t.Parallel()
		srv := newFileServer(t)
		dir := t.TempDir()
		p := defaultPack(srv)
		p.autoOpen = true
		p.write(t, dir, srv)

		profiles := &fakeProfiles{}
		var launched []string
		in, rec := newTestInstaller(t, dir, func(o *Options) {
			o.Profiles = profiles
			o.Launch = func(jar, wd string) error {
				launched = append(launched, jar, wd)
				return nil
			}
		})
		summary, err := in.Run(context.Background())
		require.NoError(t, err)

		require.Len(t, profiles.added, 1)
		assert.Equal(t, "Test Pack", profiles.added[0].Name)
		assert.Equal(t, dir, profiles.added[0].GameDir)
		assert.Equal(t, []string{filepath.Join(dir, "fabric-installer.jar"), dir}, launched)
		assert.Equal(t, []string{"info:" + event.AlertLaunchModLoader}, rec.alerts())
		assert.True(t, summary.ProfileAdded)
		assert.True(t, summary.LoaderLaunched)
		assert.Equal(t, StateDone, summary.State)

		phases := rec.phases()
		assert.Equal(t, []event.Phase{event.PhaseAddProfile, event.PhaseLaunchModLoader}, phases[len(phases)-2:])
	})

	t.Run("failures become warnings", func(t *testing.T) {
		t.Parallel()
		srv := newFileServer(t)
		dir := t.TempDir()
		p := defaultPack(srv)
		p.autoOpen = true
		p.write(t, dir, srv)

		in, rec := newTestInstaller(t, dir, func(o *Options) {
			o.Profiles = &fakeProfiles{err: errors.New("launcher_profiles.json missing")}
			o.Launch = func(string, string) error { return errors.New("java not found") }
		})
		summary, err := in.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, []string{
			"warning:" + event.AlertFailedAddProfile,
			"warning:" + event.AlertFailedLaunchModLoader,
		}, rec.alerts())
		assert.Equal(t, StateDone, summary.State)
	})

	t.Run("no launch without autoOpen", func(t *testing.T) {
		t.Parallel()
		srv := newFileServer(t)
		dir := t.TempDir()
		defaultPack(srv).write(t, dir, srv)

		called := false
		in, rec := newTestInstaller(t, dir, func(o *Options) {
			o.Launch = func(string, string) error { called = true; return nil }
		})
		_, err := in.Run(context.Background())
		require.NoError(t, err)
		assert.False(t, called)
		assert.NotContains(t, rec.phases(), event.PhaseLaunchModLoader)
	})
}

func TestRunEmitterFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	srv := newFileServer(t)
	dir := t.TempDir()
	defaultPack(srv).write(t, dir, srv)

	in, _ := newTestInstaller(t, dir, func(o *Options) {
		o.Emitter = event.EmitterFunc(func(event.Event) error { return event.ErrDropped })
	})
	_, err := in.Run(context.Background())
	require.NoError(t, err)
}

func TestNewRequiresInstallDir(t *testing.T) {
	t.Parallel()

	_, err := New(Options{})
	assert.Error(t, err)
}

func upper(s string) string { return string(bytes.ToUpper([]byte(s))) }
