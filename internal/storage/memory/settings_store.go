package memory

import (
	"context"
	"sync"
)

// SettingsStore implements lead.SettingsStore over process memory.
type SettingsStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSettingsStore constructs a SettingsStore, optionally seeded.
func NewSettingsStore(seed map[string]string) *SettingsStore {
	values := make(map[string]string, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &SettingsStore{values: values}
}

// ReadAll returns a copy of every setting.
func (s *SettingsStore) ReadAll(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out, nil
}

// Write upserts one setting.
func (s *SettingsStore) Write(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
