package elevation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Cache maps coordinate keys (see CacheKey) to elevations. It is append only and write-through: Put persists before
// returning. Implementations are safe for concurrent use and serialize their writes.
type Cache interface {
	Get(key string) (float64, bool)
	Put(key string, meters float64) error
	Len() int
	Close() error
}

// OpenCache opens the cache at fpath, picking the backend from the extension: .db, .sqlite and .sqlite3 use SQLite,
// anything else is a flat JSON object. An empty fpath gives a cache that only lives in memory.
func OpenCache(fpath string, log *slog.Logger) (Cache, error) {
	if log == nil {
		log = slog.Default()
	}
	switch strings.ToLower(filepath.Ext(fpath)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLiteCache(fpath, log)
	default:
		return OpenFileCache(fpath, log), nil
	}
}

// FileCache is a Cache persisted as a flat JSON object {"<lat>,<lon>": meters}. The whole object is rewritten on every
// Put.
type FileCache struct {
	mu      sync.Mutex
	fpath   string
	entries map[string]float64
	log     *slog.Logger
}

// OpenFileCache loads fpath. A missing or unreadable file gives an empty cache; a corrupt one is overwritten on the
// next Put.
func OpenFileCache(fpath string, log *slog.Logger) *FileCache {
	if log == nil {
		log = slog.Default()
	}
	c := &FileCache{fpath: fpath, entries: map[string]float64{}, log: log}
	if fpath == "" {
		return c
	}
	b, err := os.ReadFile(fpath)
	switch {
	case os.IsNotExist(err):
		return c
	case err != nil:
		log.Warn("reading elevation cache, starting empty", "path", fpath, "error", err)
		return c
	}
	var entries map[string]float64
	if err := json.Unmarshal(b, &entries); err != nil {
		log.Warn("elevation cache is corrupt, starting empty", "path", fpath, "error", err)
		return c
	}
	if entries != nil {
		c.entries = entries
	}
	log.Debug("loaded elevation cache", "path", fpath, "entries", len(c.entries))
	return c
}

func (c *FileCache) Get(key string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *FileCache) Put(key string, meters float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = meters
	if c.fpath == "" {
		return nil
	}
	return c.save()
}

func (c *FileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *FileCache) Close() error {
	return nil
}

// save writes to a temp file and renames it over the cache so a crash never leaves half a JSON object behind. Callers
// hold mu.
func (c *FileCache) save() error {
	dir := filepath.Dir(c.fpath)
	if err := os.MkdirAll(dir, 0777); err != nil {
		return fmt.Errorf("creating cache dir %q: %w", dir, err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.entries); err != nil {
		return fmt.Errorf("encoding elevation cache: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(c.fpath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.fpath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing elevation cache %q: %w", c.fpath, err)
	}
	return nil
}
