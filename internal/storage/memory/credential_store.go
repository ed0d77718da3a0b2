package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"jobscout/internal/lead"
)

// ErrCredentialNotFound is returned for unknown principals.
var ErrCredentialNotFound = errors.New("credential not found")

// CredentialStore implements lead.CredentialStore over process memory.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]lead.Credential
}

// NewCredentialStore constructs a CredentialStore.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[string]lead.Credential)}
}

// Get fetches the credential for a principal.
func (s *CredentialStore) Get(_ context.Context, principal string) (lead.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[principal]
	if !ok {
		return lead.Credential{}, ErrCredentialNotFound
	}
	return cred, nil
}

// Save upserts a credential in place.
func (s *CredentialStore) Save(_ context.Context, cred lead.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[cred.Principal] = cred
	return nil
}

// ExpiringBefore returns credentials expiring before t.
func (s *CredentialStore) ExpiringBefore(_ context.Context, t time.Time) ([]lead.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []lead.Credential
	for _, cred := range s.creds {
		if cred.ExpiresAt.Before(t) {
			out = append(out, cred)
		}
	}
	return out, nil
}
