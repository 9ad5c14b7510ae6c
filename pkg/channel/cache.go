package channel

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/samcharles93/chanpack/pkg/zipindex"
)

// Entry is a cached read of one package file.
type Entry struct {
	Result Result
	// Err is ErrNoChannel or the reason the package could not be read.
	Err    error
	Digest Digest
	Size   int64
	Mod    time.Time
}

// Found reports whether the package carried readable metadata.
func (e *Entry) Found() bool { return e.Err == nil }

// Cache remembers reads of package files. An entry is reused while the file
// keeps its size and modification time. Each Cache is independent; the zero
// value is not usable, construct one with NewCache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// Get returns the read of the package at path. Only failures to stat or open
// the file are returned as errors; package problems land in Entry.Err.
func (c *Cache) Get(path string) (*Entry, error) {
	path = filepath.Clean(path)
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	e, ok := c.entries[path]
	c.mu.Unlock()
	if ok && e.Size == st.Size() && e.Mod.Equal(st.ModTime()) {
		return e, nil
	}

	e, err = load(path, st)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = e
	return e, nil
}

// Invalidate drops the entry for path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, filepath.Clean(path))
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func load(path string, st os.FileInfo) (*Entry, error) {
	e := &Entry{Size: st.Size(), Mod: st.ModTime()}

	f, err := zipindex.Open(path)
	if errors.Is(err, zipindex.ErrFormat) {
		e.Err = err
		return e, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	e.Digest = Sum(f.Data)
	e.Result, e.Err = inspect(f.Data, f.EOCD)
	return e, nil
}
