package installer

import (
	"errors"
	"path/filepath"

	"github.com/jamesainslie/mminstall/pkg/mminstall/event"
	"github.com/jamesainslie/mminstall/pkg/mminstall/launcher"
)

// postInstall runs the launcher side effects. Failures become warning
// alerts; they never fail the run.
func (r *run) postInstall() {
	if r.opts.Profiles != nil {
		r.emit(event.ChangePhase(event.PhaseAddProfile))
		p := r.manifest.Profile
		added, err := r.opts.Profiles.AddProfile(launcher.Profile{
			Name:    p.Name,
			Icon:    p.Icon,
			Version: p.Version,
			JVMArgs: p.JVMArgs,
			GameDir: r.opts.InstallDir,
		})
		switch {
		case err != nil:
			r.log.Warn("failed to add launcher profile", "error", err)
			r.alert(event.LevelWarning, event.AlertFailedAddProfile)
		case added:
			r.summary.ProfileAdded = true
		}
	}

	if !r.manifest.ModLoader.AutoOpen {
		return
	}
	r.emit(event.ChangePhase(event.PhaseLaunchModLoader))
	if err := r.launchLoader(); err != nil {
		r.log.Warn("failed to launch mod loader", "error", err)
		r.alert(event.LevelWarning, event.AlertFailedLaunchModLoader)
		return
	}
	r.summary.LoaderLaunched = true
	r.alert(event.LevelInfo, event.AlertLaunchModLoader)
}

func (r *run) launchLoader() error {
	rec, ok := r.ledger.Loader()
	if !ok || rec.FileName == "" {
		return errors.New("no installed loader recorded")
	}
	dir := r.layout.LoaderDir()
	return r.opts.Launch(filepath.Join(dir, rec.FileName), dir)
}

func (r *run) alert(level event.Level, key string) {
	r.summary.Alerts = append(r.summary.Alerts, key)
	r.emit(event.AddAlert(level, key))
}

// launchWithJava finds a Java runtime and starts the loader installer with it.
func launchWithJava(jar, dir string) error {
	java, err := launcher.FindJava()
	if err != nil {
		return err
	}
	return launcher.Launch(java, jar, dir)
}
