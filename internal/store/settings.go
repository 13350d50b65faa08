package store

import (
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/dukerupert/recipecost/internal/model"
)

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// GetAll returns the user's settings with defaults filled in for anything
// never saved.
func (s *SettingsStore) GetAll(userID int64) (model.Settings, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings WHERE user_id = ? ORDER BY key`, userID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	defer rows.Close()

	settings := model.DefaultSettings()
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settings: %w", err)
	}
	return settings, nil
}

// Set saves values in one transaction. Keys not in values are untouched.
func (s *SettingsStore) Set(userID int64, values map[string]string) (model.Settings, error) {
	err := withTx(s.db, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		for _, key := range sortedKeys(values) {
			_, err := tx.Exec(
				`INSERT INTO settings (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
				 ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				userID, key, values[key], now,
			)
			if err != nil {
				return fmt.Errorf("set setting %q: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetAll(userID)
}

// Reset removes every saved setting so the defaults apply again.
func (s *SettingsStore) Reset(userID int64) error {
	if _, err := s.db.Exec(`DELETE FROM settings WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("reset settings: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
