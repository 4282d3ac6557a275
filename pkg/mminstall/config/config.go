package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/jamesainslie/mminstall/pkg/mminstall/logging"
	"github.com/jamesainslie/mminstall/pkg/mminstall/manifest"
	"github.com/jamesainslie/mminstall/pkg/mminstall/source"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// Path empty means <install>/mm-installer/logs/mminstall.log.
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// HTTPConfig configures the download client.
type HTTPConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	ChunkSize      int           `mapstructure:"chunk_size"`
}

// ResolverConfig configures repository lookups.
type ResolverConfig struct {
	ModrinthAPI        string `mapstructure:"modrinth_api"`
	CurseForgeTemplate string `mapstructure:"curseforge_template"`
}

// CacheConfig configures the resolver and hash cache.
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Path       string        `mapstructure:"path"`
	ResolveTTL time.Duration `mapstructure:"resolve_ttl"`
}

// HistoryConfig configures the run journal.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// LauncherConfig configures the post-install side effects.
type LauncherConfig struct {
	AddProfile   bool   `mapstructure:"add_profile"`
	ProfilesPath string `mapstructure:"profiles_path"`
}

// Config represents the application configuration.
type Config struct {
	// InstallDir defaults to the working directory.
	InstallDir string `mapstructure:"install_dir"`
	// Manifest defaults to config.yaml inside InstallDir.
	Manifest     string         `mapstructure:"manifest"`
	Side         string         `mapstructure:"side"`
	VerifyOnDisk bool           `mapstructure:"verify_on_disk"`
	HTTP         HTTPConfig     `mapstructure:"http"`
	Resolver     ResolverConfig `mapstructure:"resolver"`
	Cache        CacheConfig    `mapstructure:"cache"`
	History      HistoryConfig  `mapstructure:"history"`
	Launcher     LauncherConfig `mapstructure:"launcher"`
	Logging      LoggingConfig  `mapstructure:"logging"`
}

// SetDefaults installs every default on v and enables MMINSTALL_ environment
// overrides.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("install_dir", "")
	v.SetDefault("manifest", "")
	v.SetDefault("side", DefaultSide)
	v.SetDefault("verify_on_disk", true)

	v.SetDefault("http.connect_timeout", DefaultConnectTimeout)
	v.SetDefault("http.user_agent", DefaultUserAgent)
	v.SetDefault("http.chunk_size", DefaultChunkSize)

	v.SetDefault("resolver.modrinth_api", source.DefaultModrinthAPI)
	v.SetDefault("resolver.curseforge_template", source.DefaultCurseForgeTemplate)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.resolve_ttl", DefaultResolveTTL)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("launcher.add_profile", true)
	v.SetDefault("launcher.profiles_path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", DefaultComponentLevels)
}

// Load reads $XDG_CONFIG_HOME/mminstall/config.yaml (or path, when given)
// with defaults and environment overrides applied. A missing default file
// is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	if err := ReadFile(v, path); err != nil {
		return nil, err
	}
	return FromViper(v)
}

// ReadFile points v at the config file and reads it.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.InstallDir, &cfg.Manifest, &cfg.Cache.Path, &cfg.History.Path, &cfg.Launcher.ProfilesPath, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	var errs []error
	if _, err := manifest.ParseSide(c.Side); err != nil {
		errs = append(errs, fmt.Errorf("side: %w", err))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Logging.Rotation.MaxSize != "" {
		if _, err := humanize.ParseBytes(c.Logging.Rotation.MaxSize); err != nil {
			errs = append(errs, fmt.Errorf("logging.rotation.max_size: %w", err))
		}
	}
	if c.HTTP.ChunkSize < 0 {
		errs = append(errs, errors.New("http.chunk_size must not be negative"))
	}
	if c.History.RetentionDays < 0 {
		errs = append(errs, errors.New("history.retention_days must not be negative"))
	}
	return errors.Join(errs...)
}

// ResolveInstallDir returns the absolute install directory, defaulting to
// the working directory.
func (c *Config) ResolveInstallDir() (string, error) {
	dir := c.InstallDir
	if dir == "" {
		dir = "."
	}
	return filepath.Abs(dir)
}

// ManifestSide returns the configured side.
func (c *Config) ManifestSide() manifest.Side {
	s, err := manifest.ParseSide(c.Side)
	if err != nil {
		return manifest.SideClient
	}
	return s
}

// LoggingFor builds the logging configuration for an install directory.
func (c *Config) LoggingFor(installDir string) logging.Config {
	rot := logging.DefaultRotationConfig()
	if n, err := humanize.ParseBytes(c.Logging.Rotation.MaxSize); err == nil && n > 0 {
		rot.MaxSize = int64(n)
	}
	rot.MaxAge = c.Logging.Rotation.MaxAge
	rot.MaxBackups = c.Logging.Rotation.MaxBackups
	rot.Daily = c.Logging.Rotation.Daily

	path := c.Logging.Path
	if path == "" {
		path = logging.DefaultLogPath()
		if installDir != "" {
			path = logging.InstallLogPath(installDir)
		}
	}
	return logging.Config{
		Level:      c.Logging.Level,
		Path:       path,
		Rotation:   rot,
		Components: c.Logging.Components,
	}
}

// Dir returns $XDG_CONFIG_HOME/mminstall.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, "mminstall")
}

// Path returns the default config file path.
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// WriteDefault writes a commented default config to path unless a file
// already exists there. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if path == "" {
		path = Path()
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to check config file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultFile), 0o644); err != nil {
		return false, fmt.Errorf("failed to write default config: %w", err)
	}
	return true, nil
}

const defaultFile = `# mminstall configuration

# Directory the pack is installed into (empty means the working directory)
install_dir: ""
# Pack manifest (empty means config.yaml inside install_dir)
manifest: ""
# Which entries to install: client, server or both
side: client
# Re-hash installed files before trusting the installation ledger
verify_on_disk: true

http:
  connect_timeout: 10s
  user_agent: "mminstall (+https://github.com/jamesainslie/mminstall)"
  chunk_size: 8192

resolver:
  modrinth_api: https://api.modrinth.com
  curseforge_template: https://www.curseforge.com/api/v1/mods/%s/files/%s/download

cache:
  enabled: true
  # empty means $XDG_CACHE_HOME/mminstall/cache
  path: ""
  resolve_ttl: 168h

history:
  enabled: true
  # empty means $XDG_DATA_HOME/mminstall/history
  path: ""
  retention_days: 90

launcher:
  add_profile: true
  # empty means the official launcher's launcher_profiles.json
  profiles_path: ""

logging:
  # debug, info, warn, error
  level: info
  # empty means <install_dir>/mm-installer/logs/mminstall.log
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30       # days
    max_backups: 5
    daily: true
  components:
    installer: info
    download: info
    resolver: info
    launcher: info
    tui: warn
`
