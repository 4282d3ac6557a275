// Package cache is a badger-backed store for resolver lookups and for file
// digests used when re-verifying installed artifacts.
package cache

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// DefaultResolveTTL is how long a resolved repository URL is reused.
const DefaultResolveTTL = 7 * 24 * time.Hour

// Cache memoizes resolver lookups and file digests.
type Cache struct {
	store      *store
	resolveTTL time.Duration
}

// Stats describes the cache contents.
type Stats struct {
	Path     string
	URLs     int
	Hashes   int
	LSMBytes int64
	LogBytes int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithResolveTTL sets the expiry of resolved URLs. Zero keeps them forever.
func WithResolveTTL(d time.Duration) Option {
	return func(c *Cache) {
		c.resolveTTL = d
	}
}

// DefaultPath returns $XDG_CACHE_HOME/mminstall/cache.
func DefaultPath() string {
	return filepath.Join(xdg.CacheHome, "mminstall", "cache")
}

// Open opens or creates the cache at path.
func Open(path string, opts ...Option) (*Cache, error) {
	s, err := openStore(path)
	if err != nil {
		return nil, err
	}
	c := &Cache{store: s, resolveTTL: DefaultResolveTTL}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.store.close()
}

// ResolvedURL returns the URL previously resolved for a canonical source key.
func (c *Cache) ResolvedURL(sourceKey string) (string, bool, error) {
	var e urlEntry
	err := c.store.get(urlKey(sourceKey), &e)
	if errors.Is(err, errMiss) || (err == nil && e.Version != FormatVersion) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return e.URL, true, nil
}

// PutResolvedURL remembers the URL a source key resolved to.
func (c *Cache) PutResolvedURL(sourceKey, url string) error {
	return c.store.put(urlKey(sourceKey), urlEntry{
		Version:  FormatVersion,
		URL:      url,
		Resolved: time.Now(),
	}, c.resolveTTL)
}

// FileHash returns the cached digest of path, provided the file still has
// the given size and modification time.
func (c *Cache) FileHash(path string, size int64, mtime time.Time, algo string) (string, bool, error) {
	var e hashEntry
	err := c.store.get(hashKey(path, algo), &e)
	if errors.Is(err, errMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if e.Version != FormatVersion || e.Size != size || e.Mtime != mtime.UnixNano() {
		return "", false, nil
	}
	return e.Hash, true, nil
}

// PutFileHash records the digest of path in its current state.
func (c *Cache) PutFileHash(path string, size int64, mtime time.Time, algo, hash string) error {
	return c.store.put(hashKey(path, algo), hashEntry{
		Version: FormatVersion,
		Size:    size,
		Mtime:   mtime.UnixNano(),
		Hash:    hash,
	}, 0)
}

// Stats counts entries per namespace.
func (c *Cache) Stats() (Stats, error) {
	urls, err := c.store.count(prefix(nsURL))
	if err != nil {
		return Stats{}, err
	}
	hashes, err := c.store.count(prefix(nsHash))
	if err != nil {
		return Stats{}, err
	}
	lsm, vlog := c.store.size()
	return Stats{
		Path:     c.store.db.Opts().Dir,
		URLs:     urls,
		Hashes:   hashes,
		LSMBytes: lsm,
		LogBytes: vlog,
	}, nil
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	return c.store.dropAll()
}
