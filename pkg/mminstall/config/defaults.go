// Package config provides configuration management for mminstall.
package config

import (
	"github.com/jamesainslie/mminstall/pkg/mminstall/cache"
	"github.com/jamesainslie/mminstall/pkg/mminstall/download"
)

// Default configuration values.
const (
	// DefaultSide is the side whose entries are installed.
	DefaultSide = "client"

	// DefaultConnectTimeout bounds connection setup and response headers.
	DefaultConnectTimeout = download.DefaultConnectTimeout

	// DefaultChunkSize is the download read size.
	DefaultChunkSize = download.DefaultChunkSize

	// DefaultUserAgent identifies the installer to repository APIs.
	DefaultUserAgent = "mminstall (+https://github.com/jamesainslie/mminstall)"

	// DefaultResolveTTL is how long resolved repository URLs are cached.
	DefaultResolveTTL = cache.DefaultResolveTTL

	// DefaultRetentionDays is how long run history is kept.
	DefaultRetentionDays = 90

	// DefaultLogMaxSize is the log rotation threshold.
	DefaultLogMaxSize = "10MB"

	// EnvPrefix prefixes environment overrides, e.g. MMINSTALL_INSTALL_DIR.
	EnvPrefix = "MMINSTALL"
)

// DefaultComponentLevels sets per-component log levels.
var DefaultComponentLevels = map[string]string{
	"installer": "info",
	"download":  "info",
	"resolver":  "info",
	"launcher":  "info",
	"tui":       "warn",
}
