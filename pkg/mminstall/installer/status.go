package installer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/mminstall/pkg/mminstall/ledger"
	"github.com/jamesainslie/mminstall/pkg/mminstall/manifest"
	"github.com/jamesainslie/mminstall/pkg/mminstall/output"
	"github.com/jamesainslie/mminstall/pkg/mminstall/source"
)

// Status compares the manifest with the ledger and the files on disk
// without changing anything. Files are checked for presence only.
func (in *Installer) Status() (*output.Report, error) {
	rep := &output.Report{
		InstallDir:   in.opts.InstallDir,
		ManifestPath: in.opts.ManifestPath,
		CanStart:     manifest.Exists(in.opts.ManifestPath),
		Side:         string(in.opts.Side),
	}
	if !rep.CanStart {
		rep.Warnings = append(rep.Warnings, "manifest not found")
		return rep, nil
	}

	m, err := manifest.Load(in.opts.ManifestPath)
	if err != nil {
		return nil, err
	}
	l, err := ledger.LoadOrCreate(in.layout.LedgerPath(), in.opts.Version)
	if err != nil {
		return nil, err
	}
	rep.PackVersion = m.PackVersion
	rep.InstallerVersion = l.InstallerVersion

	ml := m.ModLoader
	e := output.Entry{Kind: string(KindLoader), Name: ml.Name, Source: ml.Source().Key(), Expected: ml.Hash}
	if rec, ok := l.Loader(); ok {
		in.classify(&e, rec.FileName, rec.Hash, rec.URL == ml.URL, in.layout.LoaderDir(), false)
	} else {
		e.State = output.StatePending
	}
	rep.Entries = append(rep.Entries, e)

	for _, mod := range m.Mods {
		src, err := mod.Fields.Source()
		if err != nil {
			return nil, err
		}
		e := output.Entry{Kind: string(KindMod), Name: mod.Name, Source: src.Key(), Expected: mod.Hash}
		switch rec, ok := l.Mod(src); {
		case !mod.Side.Includes(in.opts.Side):
			e.State = output.StateSkipped
		case ok:
			in.classify(&e, rec.FileName, rec.Hash, true, in.layout.ModsDir(), false)
		default:
			e.State = output.StatePending
		}
		rep.Entries = append(rep.Entries, e)
	}

	for _, res := range m.Resources {
		src, err := res.Fields.Source()
		if err != nil {
			return nil, err
		}
		rep.Entries = append(rep.Entries, in.resourceEntry(l, res, src))
	}
	return rep, nil
}

func (in *Installer) resourceEntry(l *ledger.Ledger, res manifest.ResourceEntry, src source.Source) output.Entry {
	e := output.Entry{
		Kind:      string(KindResource),
		Name:      res.Name,
		Source:    src.Key(),
		Expected:  res.Hash,
		TargetDir: res.TargetDir,
	}
	rec, ok := l.Resource(src, res.TargetDir)
	switch {
	case !res.Side.Includes(in.opts.Side):
		e.State = output.StateSkipped
	case ok:
		in.classify(&e, rec.FileName, rec.Hash, rec.Decompress == res.Decompress, in.layout.ResourceDir(res.TargetDir), res.Decompress)
	default:
		e.State = output.StatePending
	}
	return e
}

func (in *Installer) classify(e *output.Entry, fileName, hash string, sameSource bool, dir string, extracted bool) {
	e.FileName = fileName
	e.Recorded = hash
	switch {
	case !sameSource || !strings.EqualFold(strings.TrimSpace(hash), strings.TrimSpace(e.Expected)):
		e.State = output.StateDrifted
		e.Note = "manifest changed"
	case extracted:
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			e.State, e.Note = output.StateDrifted, "target directory missing"
		} else {
			e.State = output.StateInstalled
		}
	default:
		if _, err := os.Stat(filepath.Join(dir, fileName)); err != nil {
			e.State, e.Note = output.StateDrifted, "file missing"
		} else {
			e.State = output.StateInstalled
		}
	}
}
