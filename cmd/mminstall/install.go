package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/mminstall/cmd/mminstall/tui"
	"github.com/jamesainslie/mminstall/pkg/mminstall/cache"
	"github.com/jamesainslie/mminstall/pkg/mminstall/config"
	"github.com/jamesainslie/mminstall/pkg/mminstall/download"
	"github.com/jamesainslie/mminstall/pkg/mminstall/event"
	"github.com/jamesainslie/mminstall/pkg/mminstall/history"
	"github.com/jamesainslie/mminstall/pkg/mminstall/installer"
	"github.com/jamesainslie/mminstall/pkg/mminstall/launcher"
	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
	"github.com/jamesainslie/mminstall/pkg/mminstall/source"
	"github.com/jamesainslie/mminstall/pkg/mminstall/trash"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install or update the mod pack",
	Long: `Install the mod loader, mods and resources listed in the manifest.

Artifacts already installed with a matching hash are skipped. Entries whose
manifest hash changed are downloaded again and the superseded file is moved
to the trash. By default a progress view is shown; use --no-interactive for
line output or --events json for a machine-readable event stream.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolP("no-interactive", "n", false, "disable the progress view, print plain lines")
	installCmd.Flags().String("events", "", "write events to stdout in the given format (json)")
	installCmd.Flags().Bool("no-verify", false, "trust the installation ledger without re-hashing files")
	installCmd.Flags().Bool("no-profile", false, "do not add a launcher profile")

	_ = viper.BindPFlag("no_interactive", installCmd.Flags().Lookup("no-interactive"))
	_ = viper.BindPFlag("events", installCmd.Flags().Lookup("events"))

	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noVerify, _ := cmd.Flags().GetBool("no-verify"); noVerify {
		cfg.VerifyOnDisk = false
	}
	if noProfile, _ := cmd.Flags().GetBool("no-profile"); noProfile {
		cfg.Launcher.AddProfile = false
	}

	events := strings.ToLower(viper.GetString("events"))
	if events != "" && events != "json" {
		return fmt.Errorf("unsupported event format %q (want json)", events)
	}
	interactive := !viper.GetBool("no_interactive") && events == "" && isTerminal(os.Stdout)

	dir, err := cfg.ResolveInstallDir()
	if err != nil {
		return fmt.Errorf("resolving install directory: %w", err)
	}

	logCfg := cfg.LoggingFor(dir)
	logCfg.TUIMode = interactive
	if !interactive && events == "" {
		logCfg.ConsoleLevel = "warn"
		if getVerbose() {
			logCfg.ConsoleLevel = "debug"
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating install directory: %w", err)
	}
	if err := logging.Init(logCfg); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer func() { _ = logging.Close() }()
	log := logging.Get("installer")

	c := openCache(cfg)
	if c != nil {
		defer func() { _ = c.Close() }()
	}

	broadcaster := event.NewBroadcaster()
	defer broadcaster.Close()
	sub := broadcaster.Subscribe(event.DefaultBuffer)

	emitter := event.Emitter(broadcaster)
	switch {
	case events == "json":
		emitter = event.Multi(broadcaster, event.NewJSONWriter(os.Stdout))
	case !interactive:
		emitter = event.Multi(broadcaster, lineEmitter())
	}

	opts := installerOptions(cfg, dir)
	opts.Resolver = newResolver(cfg, c)
	opts.Downloader = download.NewClient(
		download.WithConnectTimeout(cfg.HTTP.ConnectTimeout),
		download.WithChunkSize(cfg.HTTP.ChunkSize),
		download.WithUserAgent(cfg.HTTP.UserAgent),
	)
	if c != nil {
		opts.HashCache = c
	}
	opts.Trash = trash.Bin{}
	opts.Emitter = emitter
	if cfg.Launcher.AddProfile {
		opts.Profiles = launcher.NewRegistry(cfg.Launcher.ProfilesPath)
	}

	in, err := installer.New(opts)
	if err != nil {
		return err
	}

	runner := installer.NewRunner(in, installer.WithFinishHook(historyHook(cfg)))
	if !runner.CanStart() {
		return fmt.Errorf("manifest not found: %s", in.ManifestPath())
	}
	log.Info("starting install", "dir", dir, "manifest", in.ManifestPath(), "version", version)

	var out installer.Outcome
	if interactive {
		logs := logging.Subscribe()
		defer logging.Unsubscribe(logs)
		out, err = tui.Run(tui.Options{
			InstallDir: dir,
			Version:    version,
			Start:      func() (<-chan installer.Outcome, error) { return runner.Start(context.Background()) },
			Events:     sub.Events,
			Logs:       logs,
		})
		if errors.Is(err, tui.ErrInterrupted) {
			printInfo("Install interrupted. Run 'mminstall install' again to resume.")
			return err
		}
		if err != nil {
			return err
		}
	} else {
		// drain the subscription so the broadcaster never reports drops
		go func() {
			for range sub.Events {
			}
		}()
		s, runErr := runner.Run(context.Background())
		out = installer.Outcome{Summary: s, Err: runErr}
	}

	if out.Err != nil {
		if events == "" {
			printError("%v", out.Err)
			printInfo("Log: %s", logging.Path())
		}
		return out.Err
	}
	if events == "" && !interactive {
		printSummary(out.Summary)
	}
	return nil
}

// installerOptions maps the configuration onto the installer's paths and
// policy. Collaborators are left for the caller.
func installerOptions(cfg *config.Config, dir string) installer.Options {
	return installer.Options{
		InstallDir:   dir,
		ManifestPath: cfg.Manifest,
		Version:      version,
		Side:         cfg.ManifestSide(),
		VerifyOnDisk: cfg.VerifyOnDisk,
	}
}

func newResolver(cfg *config.Config, c *cache.Cache) *source.Resolver {
	opts := []source.Option{
		source.WithBaseURL(cfg.Resolver.ModrinthAPI),
		source.WithCurseForgeTemplate(cfg.Resolver.CurseForgeTemplate),
		source.WithUserAgent(cfg.HTTP.UserAgent),
	}
	if c != nil {
		opts = append(opts, source.WithCache(c))
	}
	return source.NewResolver(opts...)
}

// openCache opens the configured cache. A cache that cannot be opened, for
// example because another run holds it, is skipped with a warning.
func openCache(cfg *config.Config) *cache.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	path := cfg.Cache.Path
	if path == "" {
		path = cache.DefaultPath()
	}
	c, err := cache.Open(path, cache.WithResolveTTL(cfg.Cache.ResolveTTL))
	if err != nil {
		logging.Get("cache").Warn("cache unavailable, continuing without it", "path", path, "error", err)
		return nil
	}
	return c
}

// historyHook records every finished run in the journal.
func historyHook(cfg *config.Config) func(*installer.Summary, error) {
	if !cfg.History.Enabled {
		return nil
	}
	return func(s *installer.Summary, runErr error) {
		log := logging.Get("history")
		j, err := history.New(historyDir(cfg))
		if err != nil {
			log.Warn("history unavailable", "error", err)
			return
		}
		if err := j.Record(historyRun(s, runErr)); err != nil {
			log.Warn("failed to record run", "error", err)
		}
		if n, err := j.Cleanup(cfg.History.RetentionDays); err != nil {
			log.Warn("history cleanup failed", "error", err)
		} else if n > 0 {
			log.Debug("removed old history entries", "count", n)
		}
	}
}

func historyDir(cfg *config.Config) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	return history.DefaultDir()
}

// historyRun converts a run summary to its journal entry.
func historyRun(s *installer.Summary, runErr error) *history.Run {
	r := &history.Run{Outcome: history.OutcomeSucceeded}
	if runErr != nil {
		r.Outcome = history.OutcomeFailed
		r.Error = runErr.Error()
	}
	if s == nil {
		return r
	}
	r.Started = s.Started
	r.Finished = s.Finished
	r.InstallDir = s.InstallDir
	r.PackVersion = s.PackVersion
	for _, a := range s.Artifacts {
		r.Artifacts = append(r.Artifacts, history.Artifact{
			Kind:     string(a.Kind),
			Name:     a.Name,
			Action:   history.Action(a.Action),
			FileName: a.FileName,
			Bytes:    a.Bytes,
		})
	}
	return r
}

// lineEmitter prints phases and artifact details for non-interactive runs.
func lineEmitter() event.Emitter {
	return event.EmitterFunc(func(e event.Event) error {
		switch e.Type {
		case event.TypeChangePhase:
			printInfo("==> %s", tui.PhaseLabel(e.Phase))
		case event.TypeChangeDetail:
			printVerbose("%s", e.Detail)
		case event.TypeAddAlert:
			if e.Level == event.LevelWarning {
				fmt.Fprintf(os.Stderr, "Warning: %s\n", tui.AlertText(e.Key))
			} else {
				printInfo("%s", tui.AlertText(e.Key))
			}
		}
		return nil
	})
}

func printSummary(s *installer.Summary) {
	if s == nil {
		return
	}
	printInfo("Installed %s into %s", s.PackVersion, s.InstallDir)
	printInfo("  downloaded:   %d", s.Count(installer.ActionDownloaded))
	printInfo("  updated:      %d", s.Count(installer.ActionRedownloaded))
	printInfo("  up to date:   %d", s.Count(installer.ActionSkipped))
	printInfo("  transferred:  %s in %s", humanize.Bytes(uint64(s.Bytes())), s.Duration().Round(time.Millisecond))
	if s.ProfileAdded {
		printInfo("  launcher profile added")
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
