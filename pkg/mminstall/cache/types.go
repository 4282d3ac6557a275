package cache

import (
	"bytes"
	"encoding/gob"
	"strconv"
	"time"
)

// FormatVersion is bumped when an entry encoding changes; entries written
// with another version are treated as misses.
const FormatVersion = 1

const keySeparator = "\x00"

// Key namespaces.
const (
	nsURL  = "url"
	nsHash = "hash"
)

// urlEntry memoizes a repository lookup.
type urlEntry struct {
	Version  int
	URL      string
	Resolved time.Time
}

// hashEntry memoizes the digest of a file in a known state.
type hashEntry struct {
	Version int
	Size    int64
	Mtime   int64 // UnixNano
	Hash    string
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func urlKey(sourceKey string) []byte {
	return []byte(nsURL + keySeparator + sourceKey)
}

// hashKey: hash\x00<algo>\x00<path>. Size and mtime live in the value so a
// changed file overwrites its stale entry instead of leaving it behind.
func hashKey(path, algo string) []byte {
	return []byte(nsHash + keySeparator + algo + keySeparator + path)
}

func prefix(ns string) []byte {
	return []byte(ns + keySeparator)
}

func (e hashEntry) String() string {
	return e.Hash + "@" + strconv.FormatInt(e.Size, 10)
}
