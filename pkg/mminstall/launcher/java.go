package launcher

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
)

// ErrJavaNotFound is returned when no Java runtime could be located.
var ErrJavaNotFound = errors.New("java executable not found")

// storeRuntime is the runtime cache of the Microsoft Store launcher, relative
// to %LOCALAPPDATA%.
var storeRuntime = filepath.Join("Packages", "Microsoft.4297127D64EC6_8wekyb3d8bbwe", "LocalCache", "Local", "runtime")

// JavaFinder locates a Java executable able to run the loader installer.
type JavaFinder struct {
	GOOS        string
	LookPath    func(string) (string, error)
	RuntimeDirs []string
}

// NewJavaFinder returns a finder for the current platform.
func NewJavaFinder() *JavaFinder {
	return &JavaFinder{
		GOOS:        runtime.GOOS,
		LookPath:    exec.LookPath,
		RuntimeDirs: DefaultRuntimeDirs(runtime.GOOS),
	}
}

// DefaultRuntimeDirs lists the directories where the official launcher keeps
// its bundled runtimes.
func DefaultRuntimeDirs(goos string) []string {
	var dirs []string
	if goos == "windows" {
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			dirs = append(dirs, filepath.Join(local, storeRuntime))
		}
	}
	return append(dirs, filepath.Join(gameHome(goos), "runtime"))
}

// FindJava returns the path of a Java executable.
func FindJava() (string, error) {
	return NewJavaFinder().Find()
}

// Find checks PATH first, then the launcher runtime directories.
func (f *JavaFinder) Find() (string, error) {
	log := logging.Get("launcher")

	if f.LookPath != nil {
		p, err := f.LookPath("java")
		if err == nil {
			log.Info("using system java", "path", p)
			return p, nil
		}
		log.Debug("no java on PATH", "error", err)
	}

	for _, dir := range f.RuntimeDirs {
		if p := f.searchRuntimeDir(dir); p != "" {
			log.Info("using launcher runtime java", "path", p)
			return p, nil
		}
	}
	return "", ErrJavaNotFound
}

func (f *JavaFinder) executable() string {
	if f.GOOS == "windows" {
		return "javaw.exe"
	}
	return "java"
}

// searchRuntimeDir tries each runtime under dir, java-runtime-* before
// jre-*, newest name first.
func (f *JavaFinder) searchRuntimeDir(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sortRuntimes(names)

	for _, name := range names {
		if p := f.findExecutable(filepath.Join(dir, name)); p != "" {
			return p
		}
	}
	return ""
}

func sortRuntimes(names []string) {
	sort.Slice(names, func(i, j int) bool {
		a, b := names[i], names[j]
		aNew := strings.HasPrefix(a, "java-runtime-")
		bNew := strings.HasPrefix(b, "java-runtime-")
		if aNew != bNew {
			return aNew
		}
		return a > b
	})
}

// findExecutable walks root for bin/<java>. Runtimes nest the bin directory
// under platform folders, so the shallowest match wins.
func (f *JavaFinder) findExecutable(root string) string {
	want := f.executable()
	var (
		mu    sync.Mutex
		found []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil //nolint:nilerr // unreadable subtrees are skipped
		}
		if d.IsDir() || !strings.EqualFold(d.Name(), want) {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) != "bin" {
			return nil
		}
		mu.Lock()
		found = append(found, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		logging.Get("launcher").Debug("runtime walk failed", "root", root, "error", err)
	}
	if len(found) == 0 {
		return ""
	}
	sort.Slice(found, func(i, j int) bool {
		if len(found[i]) != len(found[j]) {
			return len(found[i]) < len(found[j])
		}
		return found[i] < found[j]
	})
	return found[0]
}
