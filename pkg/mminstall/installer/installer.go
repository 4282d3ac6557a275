// Package installer drives an install run: it prepares the workspace,
// installs the loader, mods and resources one at a time against the ledger,
// and finishes with the launcher side effects.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jamesainslie/mminstall/pkg/mminstall/archive"
	"github.com/jamesainslie/mminstall/pkg/mminstall/download"
	"github.com/jamesainslie/mminstall/pkg/mminstall/errdefs"
	"github.com/jamesainslie/mminstall/pkg/mminstall/event"
	"github.com/jamesainslie/mminstall/pkg/mminstall/launcher"
	"github.com/jamesainslie/mminstall/pkg/mminstall/ledger"
	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
	"github.com/jamesainslie/mminstall/pkg/mminstall/manifest"
	"github.com/jamesainslie/mminstall/pkg/mminstall/source"
	"github.com/jamesainslie/mminstall/pkg/mminstall/trash"
)

type (
	// Resolver maps a source descriptor to a download URL.
	Resolver interface {
		Resolve(ctx context.Context, src source.Source) (string, error)
	}

	// Downloader fetches a URL into the scratch directory.
	Downloader interface {
		Fetch(ctx context.Context, url, scratchDir string, opts ...download.FetchOption) (*download.Result, error)
	}

	// HashCache memoizes on-disk digests by path, size and modification time.
	HashCache interface {
		FileHash(path string, size int64, mtime time.Time, algo string) (string, bool, error)
		PutFileHash(path string, size int64, mtime time.Time, algo, hash string) error
	}

	// Trash disposes of superseded artifacts.
	Trash interface {
		Move(ctx context.Context, path string) (trash.Method, error)
	}

	// ProfileRegistry registers the pack with the game launcher.
	ProfileRegistry interface {
		AddProfile(p launcher.Profile) (bool, error)
	}

	// LaunchFunc starts the loader installer at jar with working directory dir.
	LaunchFunc func(jar, dir string) error
)

// Options configures an Installer. InstallDir is required; every other
// field has a default.
type Options struct {
	InstallDir string
	// ManifestPath defaults to config.yaml inside InstallDir.
	ManifestPath string
	// Version is recorded in the ledger.
	Version string
	// Side selects which entries apply. Defaults to client.
	Side         manifest.Side
	VerifyOnDisk bool

	Resolver   Resolver
	Downloader Downloader
	HashCache  HashCache
	Trash      Trash
	Emitter    event.Emitter

	// Profiles is nil to skip launcher profile registration.
	Profiles ProfileRegistry
	Launch   LaunchFunc
}

// IntegrityError reports a download whose digest does not match the manifest.
type IntegrityError struct {
	Name     string
	URL      string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("hash mismatch for %s from %s: expected %s, got %s", e.Name, e.URL, e.Expected, e.Actual)
}

func (e *IntegrityError) Unwrap() error { return errdefs.ErrIntegrity }

// Installer performs install runs for one install directory.
type Installer struct {
	opts   Options
	layout Layout
}

// New validates opts and fills in defaults.
func New(opts Options) (*Installer, error) {
	if opts.InstallDir == "" {
		return nil, errors.New("install directory is required")
	}
	root, err := filepath.Abs(opts.InstallDir)
	if err != nil {
		return nil, fmt.Errorf("resolving install directory: %w", err)
	}
	opts.InstallDir = root
	layout := Layout{Root: root}

	if opts.ManifestPath == "" {
		opts.ManifestPath = layout.ManifestPath()
	}
	if opts.Version == "" {
		opts.Version = "0.0.0"
	}
	if opts.Side == "" {
		opts.Side = manifest.SideClient
	}
	if opts.Resolver == nil {
		opts.Resolver = source.NewResolver()
	}
	if opts.Downloader == nil {
		opts.Downloader = download.NewClient()
	}
	if opts.Emitter == nil {
		opts.Emitter = event.Discard
	}
	if opts.Launch == nil {
		opts.Launch = launchWithJava
	}
	return &Installer{opts: opts, layout: layout}, nil
}

// Layout returns the paths used by this installer.
func (in *Installer) Layout() Layout { return in.layout }

// ManifestPath returns the manifest the installer reads.
func (in *Installer) ManifestPath() string { return in.opts.ManifestPath }

// run is the state of a single Run call.
type run struct {
	*Installer
	log      *logging.Logger
	sm       machine
	manifest *manifest.Manifest
	ledger   *ledger.Ledger
	progress *progress
	summary  *Summary
}

// Run performs one install pass. The returned Summary is never nil and
// describes everything done before a failure.
func (in *Installer) Run(ctx context.Context) (*Summary, error) {
	r := &run{
		Installer: in,
		log:       logging.Get("installer"),
		summary:   &Summary{InstallDir: in.opts.InstallDir, Started: time.Now()},
	}
	r.progress = newProgress(1, r.emit)
	r.progress.start()

	err := r.execute(ctx)
	r.summary.Finished = time.Now()
	if err != nil {
		_ = r.sm.advance(StateFailed)
		r.summary.State = r.sm.state
		r.log.Error("installation failed", "error", err, "elapsed", r.summary.Duration())
		return r.summary, err
	}
	r.summary.State = r.sm.state
	r.log.Info("installation completed",
		"downloaded", r.summary.Count(ActionDownloaded)+r.summary.Count(ActionRedownloaded),
		"skipped", r.summary.Count(ActionSkipped),
		"bytes", humanize.IBytes(uint64(max(r.summary.Bytes(), 0))),
		"elapsed", r.summary.Duration())
	return r.summary, nil
}

func (r *run) execute(ctx context.Context) error {
	r.log.Info("starting installation", "dir", r.opts.InstallDir, "manifest", r.opts.ManifestPath)

	if err := r.enter(StatePrepareWorkspace); err != nil {
		return err
	}
	m, err := manifest.Load(r.opts.ManifestPath)
	if err != nil {
		return err
	}
	r.manifest = m
	r.summary.PackVersion = m.PackVersion
	if err := r.prepareWorkspace(); err != nil {
		return err
	}
	r.ledger, err = ledger.LoadOrCreate(r.layout.LedgerPath(), r.opts.Version)
	if err != nil {
		return err
	}

	mods := m.ApplicableMods(r.opts.Side)
	resources := m.ApplicableResources(r.opts.Side)
	r.progress.total = 1 + len(mods) + len(resources)

	if err := r.enter(StateInstallLoader); err != nil {
		return err
	}
	if err := r.install(ctx, r.loaderArtifact()); err != nil {
		return err
	}

	if err := r.enter(StateInstallMods); err != nil {
		return err
	}
	for _, e := range mods {
		a, err := r.modArtifact(e)
		if err != nil {
			return err
		}
		if err := r.install(ctx, a); err != nil {
			return err
		}
	}

	if err := r.enter(StateInstallResources); err != nil {
		return err
	}
	for _, e := range resources {
		a, err := r.resourceArtifact(e)
		if err != nil {
			return err
		}
		if err := r.install(ctx, a); err != nil {
			return err
		}
	}
	r.progress.finish()

	if err := r.enter(StatePostInstall); err != nil {
		return err
	}
	r.postInstall()

	return r.enter(StateDone)
}

// enter advances the state machine and announces the phase.
func (r *run) enter(s State) error {
	if err := r.sm.advance(s); err != nil {
		return err
	}
	r.log.Debug("entering state", "state", s)
	if p, ok := s.phase(); ok {
		r.emit(event.ChangePhase(p))
	}
	return nil
}

// emit delivers e. Delivery failures are logged and never fail the run.
func (r *run) emit(e event.Event) {
	if err := r.opts.Emitter.Emit(e); err != nil {
		r.log.Warn("event delivery failed", "event", e.String(), "error", err)
	}
}

func (r *run) prepareWorkspace() error {
	scratch := r.layout.ScratchDir()
	if err := os.RemoveAll(scratch); err != nil {
		return fmt.Errorf("wiping scratch directory %s: %w", scratch, errors.Join(errdefs.ErrIO, err))
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return fmt.Errorf("creating scratch directory %s: %w", scratch, errors.Join(errdefs.ErrIO, err))
	}
	return nil
}

// install brings one artifact up to date: skip when the ledger and disk
// agree with the manifest, otherwise download, verify, place and record.
func (r *run) install(ctx context.Context, a *artifact) error {
	log := r.log.With("kind", a.kind, "name", a.name)
	action := ActionDownloaded

	if a.recorded {
		switch {
		case !a.recordMatches:
			log.Warn("installed artifact differs from manifest, re-downloading",
				"recorded_hash", a.recordedHash, "expected_hash", a.hash)
			action = ActionRedownloaded
		default:
			ok, reason := r.verifyOnDisk(a)
			if ok {
				log.Info("already installed, skipping", "file", a.recordedFile)
				r.summary.add(ArtifactResult{Kind: a.kind, Name: a.name, Action: ActionSkipped, FileName: a.recordedFile})
				r.progress.step()
				return nil
			}
			log.Warn("installed file no longer matches, re-downloading", "file", a.recordedFile, "reason", reason)
			action = ActionRedownloaded
		}
	}

	url, err := r.opts.Resolver.Resolve(ctx, a.src)
	if err != nil {
		return fmt.Errorf("resolving %s %s: %w", a.kind, a.name, err)
	}

	r.emit(event.ChangeDetail(a.name))
	log.Info("downloading", "url", url)
	res, err := r.opts.Downloader.Fetch(ctx, url, r.layout.ScratchDir(),
		download.WithAlgorithm(download.AlgorithmFor(a.hash)),
		download.WithProgress(r.progress.artifact))
	if err != nil {
		return fmt.Errorf("downloading %s %s: %w", a.kind, a.name, err)
	}

	if !download.Matches(a.hash, res.Hash) {
		_ = os.Remove(res.Path)
		return &IntegrityError{Name: a.name, URL: url, Expected: a.hash, Actual: res.Hash}
	}

	if a.decompress {
		n, err := archive.Extract(res.Path, a.destDir)
		_ = os.Remove(res.Path)
		if err != nil {
			return fmt.Errorf("extracting %s into %s: %w", res.FileName, a.destDir, errors.Join(errdefs.ErrIO, err))
		}
		log.Info("extracted", "file", res.FileName, "files", n, "dir", a.destDir)
	} else {
		dst := filepath.Join(a.destDir, res.FileName)
		if _, err := download.Place(res.Path, dst); err != nil {
			return err
		}
		log.Info("installed", "file", dst, "size", humanize.IBytes(uint64(max(res.Size, 0))))
	}

	prevFile, replaced := a.record(res.FileName)
	if err := r.ledger.Persist(r.layout.LedgerPath()); err != nil {
		return err
	}
	if replaced && !a.decompress && prevFile != "" && prevFile != res.FileName {
		r.discard(ctx, filepath.Join(a.destDir, prevFile))
	}

	r.summary.add(ArtifactResult{Kind: a.kind, Name: a.name, Action: action, FileName: res.FileName, Bytes: res.Size})
	r.progress.step()
	return nil
}

// discard moves a superseded artifact to the trash. Failures only warn.
func (r *run) discard(ctx context.Context, path string) {
	if r.opts.Trash == nil {
		return
	}
	if _, err := os.Lstat(path); err != nil {
		return
	}
	method, err := r.opts.Trash.Move(ctx, path)
	if err != nil {
		r.log.Warn("could not remove superseded file", "path", path, "error", err)
		return
	}
	r.log.Info("removed superseded file", "path", path, "method", method)
}
