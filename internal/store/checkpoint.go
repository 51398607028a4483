package store

import (
	"database/sql"
	"errors"
	"strconv"
	"time"
)

// KeyUpdateOffset holds the next Bot API update id to request.
const KeyUpdateOffset = "botapi.update_offset"

// GetState returns the value stored under key.
func (db *DB) GetState(key string) (string, bool, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SetState stores value under key.
func (db *DB) SetState(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	return err
}

// Checkpoint returns the integer stored under key, or 0.
func (db *DB) Checkpoint(key string) (int64, error) {
	v, ok, err := db.GetState(key)
	if err != nil || !ok {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

// SetCheckpoint stores an integer under key.
func (db *DB) SetCheckpoint(key string, n int64) error {
	return db.SetState(key, strconv.FormatInt(n, 10))
}
