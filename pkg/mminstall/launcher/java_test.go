package launcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noPath(string) (string, error) { return "", errors.New("not found") }

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o755))
}

func TestSortRuntimes(t *testing.T) {
	t.Parallel()

	names := []string{"jre-legacy", "java-runtime-alpha", "jre-x", "java-runtime-gamma", "java-runtime-delta"}
	sortRuntimes(names)
	assert.Equal(t, []string{"java-runtime-gamma", "java-runtime-delta", "java-runtime-alpha", "jre-x", "jre-legacy"}, names)
}

func TestFindPrefersPath(t *testing.T) {
	t.Parallel()

	f := &JavaFinder{
		GOOS:     "linux",
		LookPath: func(string) (string, error) { return "/usr/bin/java", nil },
	}
	got, err := f.Find()
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/java", got)
}

func TestFindRuntimeDir(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, filepath.Join(root, "jre-legacy", "bin", "java"))
	touch(t, filepath.Join(root, "java-runtime-alpha", "bin", "java"))
	gamma := filepath.Join(root, "java-runtime-gamma", "linux", "java-runtime-gamma", "bin", "java")
	touch(t, gamma)
	// not under bin
	touch(t, filepath.Join(root, "java-runtime-zeta", "java"))

	f := &JavaFinder{GOOS: "linux", LookPath: noPath, RuntimeDirs: []string{filepath.Join(root, "missing"), root}}
	got, err := f.Find()
	require.NoError(t, err)
	assert.Equal(t, gamma, got)
}

func TestFindWindowsExecutable(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	touch(t, filepath.Join(root, "java-runtime-gamma", "bin", "java"))
	want := filepath.Join(root, "jre-legacy", "bin", "javaw.exe")
	touch(t, want)

	f := &JavaFinder{GOOS: "windows", LookPath: noPath, RuntimeDirs: []string{root}}
	got, err := f.Find()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFindNothing(t *testing.T) {
	t.Parallel()

	f := &JavaFinder{GOOS: "linux", LookPath: noPath, RuntimeDirs: []string{t.TempDir()}}
	_, err := f.Find()
	assert.ErrorIs(t, err, ErrJavaNotFound)
}

func TestDefaultRuntimeDirs(t *testing.T) {
	t.Setenv("LOCALAPPDATA", filepath.Join("C:", "Users", "p", "AppData", "Local"))

	win := DefaultRuntimeDirs("windows")
	require.Len(t, win, 2)
	assert.Contains(t, win[0], "Microsoft.4297127D64EC6_8wekyb3d8bbwe")

	linux := DefaultRuntimeDirs("linux")
	require.Len(t, linux, 1)
	assert.Equal(t, "runtime", filepath.Base(linux[0]))
}
