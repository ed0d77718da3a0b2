package postgres

import (
	"context"
	"fmt"
)

// SettingsStore implements lead.SettingsStore over Postgres.
type SettingsStore struct {
	db dbConn
}

// NewSettingsStore constructs a SettingsStore.
func NewSettingsStore(db dbConn) *SettingsStore {
	return &SettingsStore{db: db}
}

// ReadAll returns every settings row as a key/value map.
func (s *SettingsStore) ReadAll(ctx context.Context) (map[string]string, error) {
	query, args, err := psql.Select("key", "value").
		From("settings").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build settings query: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan settings row: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("settings rows: %w", err)
	}
	return values, nil
}

// Write upserts one setting.
func (s *SettingsStore) Write(ctx context.Context, key, value string) error {
	query, args, err := psql.Insert("settings").
		Columns("key", "value").
		Values(key, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("build settings upsert: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}
