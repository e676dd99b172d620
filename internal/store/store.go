package store

import (
	"database/sql"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Store is a durable key-value store backed by SQLite. Each logical
// collection lives under one key and every write replaces the whole value,
// so a stored payload is always internally consistent.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	createKVTable := `
	CREATE TABLE IF NOT EXISTS collections (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(createKVTable); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create collections table")
	}

	createMetricsTable := `
	CREATE TABLE IF NOT EXISTS metrics (
		metric_name TEXT NOT NULL PRIMARY KEY,
		metric_value REAL NOT NULL
	);`
	if _, err := db.Exec(createMetricsTable); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create metrics table")
	}

	log.Debugf("store initialized at %s", dbPath)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the raw payload stored under key, or nil when the key is
// absent. Callers substitute an empty collection for nil or malformed
// payloads; Load itself only fails on a broken database handle.
func (s *Store) Load(key string) ([]byte, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM collections WHERE key = ?;`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load key %s", key)
	}
	return []byte(value), nil
}

// Save replaces the payload stored under key.
func (s *Store) Save(key string, value []byte) error {
	query := `
	INSERT INTO collections (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP;`

	if _, err := s.db.Exec(query, key, string(value)); err != nil {
		return errors.Wrapf(err, "failed to save key %s", key)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM collections WHERE key = ?;`, key); err != nil {
		return errors.Wrapf(err, "failed to delete key %s", key)
	}
	return nil
}

// ListKeys returns all keys starting with prefix, in insertion order.
func (s *Store) ListKeys(prefix string) ([]string, error) {
	rows, err := s.db.Query(`SELECT key FROM collections WHERE key LIKE ? ORDER BY rowid;`, prefix+"%")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list keys with prefix %s", prefix)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, errors.Wrap(err, "failed to scan key")
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
