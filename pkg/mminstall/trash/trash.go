// Package trash moves superseded artifacts to the system trash, deleting
// them outright when the platform offers no trash.
package trash

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

const commandTimeout = 30 * time.Second

// Method records how a path was disposed of.
type Method string

const (
	MethodGio        Method = "gio"
	MethodTrashCLI   Method = "trash-put"
	MethodXDG        Method = "xdg-trash"
	MethodFinder     Method = "finder"
	MethodRecycleBin Method = "recycle-bin"
	MethodDeleted    Method = "deleted"
)

// Bin disposes of files. The zero value uses the host's tools.
type Bin struct {
	// GOOS overrides runtime.GOOS.
	GOOS string
	// TrashHome overrides $XDG_DATA_HOME/Trash for the freedesktop fallback.
	TrashHome string
	// NoTools skips external trash commands, leaving the built-in fallbacks.
	NoTools bool
}

// Move disposes of path, a file or directory, and reports how.
func (b Bin) Move(ctx context.Context, path string) (Method, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}
	if _, err := os.Lstat(abs); err != nil {
		return "", fmt.Errorf("cannot trash %q: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	goos := b.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	if !b.NoTools {
		switch goos {
		case "darwin":
			script := fmt.Sprintf(`tell application "Finder" to delete POSIX file %q`, abs)
			if run(ctx, "osascript", "-e", script) {
				return MethodFinder, nil
			}
		case "windows":
			ps := fmt.Sprintf(
				`Add-Type -AssemblyName Microsoft.VisualBasic; [Microsoft.VisualBasic.FileIO.FileSystem]::DeleteFile('%s','OnlyErrorDialogs','SendToRecycleBin')`,
				strings.ReplaceAll(abs, "'", "''"))
			if run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", ps) {
				return MethodRecycleBin, nil
			}
		default:
			if run(ctx, "gio", "trash", abs) {
				return MethodGio, nil
			}
			if run(ctx, "trash-put", abs) {
				return MethodTrashCLI, nil
			}
		}
	}

	if goos != "darwin" && goos != "windows" {
		if err := b.freedesktop(abs); err == nil {
			return MethodXDG, nil
		}
	}

	if err := os.RemoveAll(abs); err != nil {
		return "", fmt.Errorf("deleting %q: %w", abs, err)
	}
	return MethodDeleted, nil
}

// run reports whether the named tool exists and exited successfully.
func run(ctx context.Context, name string, args ...string) bool {
	bin, err := exec.LookPath(name)
	if err != nil {
		return false
	}
	return exec.CommandContext(ctx, bin, args...).Run() == nil
}

// freedesktop moves abs into the freedesktop.org home trash: the file goes
// to files/ and a .trashinfo goes to info/.
// Only same-filesystem renames are attempted.
func (b Bin) freedesktop(abs string) error {
	home := b.TrashHome
	if home == "" {
		home = filepath.Join(xdg.DataHome, "Trash")
	}
	filesDir := filepath.Join(home, "files")
	infoDir := filepath.Join(home, "info")
	if err := os.MkdirAll(filesDir, 0o700); err != nil {
		return err
	}
	if err := os.MkdirAll(infoDir, 0o700); err != nil {
		return err
	}

	base := filepath.Base(abs)
	name := base
	var info *os.File
	for i := 1; ; i++ {
		f, err := os.OpenFile(filepath.Join(infoDir, name+".trashinfo"), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			info = f
			break
		}
		if !errors.Is(err, os.ErrExist) || i > 1000 {
			return err
		}
		name = fmt.Sprintf("%s.%d", base, i)
	}

	_, werr := fmt.Fprintf(info, "[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		(&url.URL{Path: abs}).EscapedPath(), time.Now().Format("2006-01-02T15:04:05"))
	cerr := info.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(info.Name())
		return err
	}

	if err := os.Rename(abs, filepath.Join(filesDir, name)); err != nil {
		_ = os.Remove(info.Name())
		return err
	}
	return nil
}
