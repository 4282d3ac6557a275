package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/mminstall/pkg/mminstall/cache"
)

func openCache(t *testing.T, opts ...cache.Option) *cache.Cache {
	t.Helper()
	c, err := cache.Open(t.TempDir(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestResolvedURL(t *testing.T) {
	t.Parallel()

	c := openCache(t)
	_, ok, err := c.ResolvedURL("repo:P:v1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.PutResolvedURL("repo:P:v1", "https://cdn.test/a.jar"))
	got, ok, err := c.ResolvedURL("repo:P:v1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://cdn.test/a.jar", got)
}

func TestResolvedURLExpires(t *testing.T) {
	t.Parallel()

	c := openCache(t, cache.WithResolveTTL(time.Second))
	require.NoError(t, c.PutResolvedURL("repo:P:v1", "https://cdn.test/a.jar"))

	// badger TTLs have one-second granularity
	time.Sleep(2100 * time.Millisecond)
	_, ok, err := c.ResolvedURL("repo:P:v1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileHash(t *testing.T) {
	t.Parallel()

	c := openCache(t)
	mtime := time.Unix(1700000000, 123)
	require.NoError(t, c.PutFileHash("/pack/mods/a.jar", 42, mtime, "sha1", "abc"))

	got, ok, err := c.FileHash("/pack/mods/a.jar", 42, mtime, "sha1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", got)

	_, ok, _ = c.FileHash("/pack/mods/a.jar", 43, mtime, "sha1")
	assert.False(t, ok, "size changed")
	_, ok, _ = c.FileHash("/pack/mods/a.jar", 42, mtime.Add(time.Second), "sha1")
	assert.False(t, ok, "mtime changed")
	_, ok, _ = c.FileHash("/pack/mods/a.jar", 42, mtime, "sha256")
	assert.False(t, ok, "other algorithm")
}

func TestStatsAndClear(t *testing.T) {
	t.Parallel()

	c := openCache(t)
	require.NoError(t, c.PutResolvedURL("repo:P:v1", "u1"))
	require.NoError(t, c.PutResolvedURL("repo:P:v2", "u2"))
	require.NoError(t, c.PutFileHash("/f", 1, time.Now(), "sha1", "h"))

	st, err := c.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, st.URLs)
	assert.Equal(t, 1, st.Hashes)
	assert.NotEmpty(t, st.Path)

	require.NoError(t, c.Clear())
	st, err = c.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.URLs)
	assert.Zero(t, st.Hashes)
}
