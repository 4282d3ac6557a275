package installer

import (
	"path/filepath"

	"github.com/jamesainslie/mminstall/pkg/mminstall/ledger"
	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
	"github.com/jamesainslie/mminstall/pkg/mminstall/manifest"
)

const (
	// AppDirName is the installer's private folder inside the install directory.
	AppDirName = "mm-installer"

	scratchDirName = ".temp"
	modsDirName    = "mods"
)

// Layout maps an install directory to the paths a run reads and writes.
type Layout struct {
	Root string
}

// AppDir holds the ledger, scratch space and logs.
func (l Layout) AppDir() string { return filepath.Join(l.Root, AppDirName) }

// ScratchDir receives in-flight downloads. It is wiped at the start of a run.
func (l Layout) ScratchDir() string { return filepath.Join(l.AppDir(), scratchDirName) }

func (l Layout) LedgerPath() string { return filepath.Join(l.AppDir(), ledger.FileName) }

func (l Layout) ManifestPath() string { return filepath.Join(l.Root, manifest.FileName) }

func (l Layout) LogPath() string { return logging.InstallLogPath(l.Root) }

// LoaderDir is where the loader installer is placed.
func (l Layout) LoaderDir() string { return l.Root }

func (l Layout) ModsDir() string { return filepath.Join(l.Root, modsDirName) }

// ResourceDir resolves a cleaned, slash-separated target directory.
func (l Layout) ResourceDir(targetDir string) string {
	if targetDir == "" {
		return l.Root
	}
	return filepath.Join(l.Root, filepath.FromSlash(targetDir))
}
