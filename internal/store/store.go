package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Persisted state layout. Each key holds one independent JSON document.
const (
	KeyUser      = "user"
	KeyResources = "resources"
	KeyRequests  = "requests"
)

// ErrCorruptState marks a stored value that no longer decodes into its
// expected shape. Callers treat it as "absent", never as fatal.
var ErrCorruptState = errors.New("corrupt persisted state")

// Store is the engine's only I/O dependency: a durable key/value adapter
// that round-trips JSON-serializable values losslessly.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load decodes the value stored under key into dest. It returns false when
// the key is absent. A value that fails to decode returns false together
// with ErrCorruptState so the caller can fall back to a typed default.
func (s *Store) Load(key string, dest any) (bool, error) {
	var raw string
	err := s.db.QueryRow(`SELECT value FROM kv_store WHERE key = ?`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("load %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("%w: key %q: %v", ErrCorruptState, key, err)
	}
	return true, nil
}

// Save serializes v as JSON and upserts it under key.
func (s *Store) Save(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("save %q: %w", key, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, string(raw))
	if err != nil {
		return fmt.Errorf("save %q: %w", key, err)
	}
	return nil
}

// Clear removes the value stored under key. Clearing an absent key is a no-op.
func (s *Store) Clear(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("clear %q: %w", key, err)
	}
	return nil
}
