package elevation

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS elevations (
	key    TEXT PRIMARY KEY,
	meters REAL NOT NULL
)`

// SQLiteCache is a Cache persisted in a single SQLite table. Entries are read into memory once when the cache is
// opened; every Put is a single upsert.
type SQLiteCache struct {
	mu      sync.Mutex
	db      *sql.DB
	entries map[string]float64
	log     *slog.Logger
}

// OpenSQLiteCache opens or creates the database at fpath. A database that can't be read is deleted and recreated
// empty.
func OpenSQLiteCache(fpath string, log *slog.Logger) (*SQLiteCache, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(fpath), 0777); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	c, err := openSQLite(fpath, log)
	if err == nil {
		return c, nil
	}
	log.Warn("elevation cache database is unreadable, recreating", "path", fpath, "error", err)
	if err := os.Remove(fpath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing corrupt cache %q: %w", fpath, err)
	}
	c, err = openSQLite(fpath, log)
	if err != nil {
		return nil, fmt.Errorf("opening cache database %q: %w", fpath, err)
	}
	return c, nil
}

func openSQLite(fpath string, log *slog.Logger) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", fpath)
	if err != nil {
		return nil, err
	}
	// one writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	rows, err := db.Query("SELECT key, meters FROM elevations")
	if err != nil {
		db.Close()
		return nil, err
	}
	defer rows.Close()

	entries := map[string]float64{}
	for rows.Next() {
		var key string
		var meters float64
		if err := rows.Scan(&key, &meters); err != nil {
			db.Close()
			return nil, err
		}
		entries[key] = meters
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug("loaded elevation cache", "path", fpath, "entries", len(entries))
	return &SQLiteCache{db: db, entries: entries, log: log}, nil
}

func (c *SQLiteCache) Get(key string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *SQLiteCache) Put(key string, meters float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = meters
	if _, err := c.db.Exec("INSERT OR REPLACE INTO elevations (key, meters) VALUES (?, ?)", key, meters); err != nil {
		return fmt.Errorf("storing %s: %w", key, err)
	}
	return nil
}

func (c *SQLiteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
