// Package profile keeps visitor preferences dual-homed: a durable local
// slot for immediate reads and a remote mirror reconciled by
// last-write-wins on the update timestamp.
package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"culturascape/api/models"
)

// LocalStore is the durable local side of a profile: one JSON blob per
// profile key in an embedded sqlite database, read at startup and written
// on every mutation.
type LocalStore struct {
	db *sql.DB
}

const localSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	key          TEXT PRIMARY KEY,
	data         TEXT NOT NULL,
	last_updated INTEGER NOT NULL
);`

// OpenLocalStore opens (or creates) the sqlite file at path.
func OpenLocalStore(path string) (*LocalStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open profile db: %w", err)
	}
	if _, err := db.Exec(localSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create profile schema: %w", err)
	}
	return &LocalStore{db: db}, nil
}

// Load reads the profile slot for key. A missing slot is (nil, nil), not
// an error: first visits have no local profile yet.
func (s *LocalStore) Load(ctx context.Context, key string) (*models.Profile, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM profiles WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", key, err)
	}
	var profile models.Profile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", key, err)
	}
	return &profile, nil
}

// Save upserts the profile slot for key.
func (s *LocalStore) Save(ctx context.Context, key string, profile *models.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (key, data, last_updated) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, last_updated = excluded.last_updated`,
		key, string(data), profile.LastUpdated)
	if err != nil {
		return fmt.Errorf("save profile %s: %w", key, err)
	}
	return nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}
