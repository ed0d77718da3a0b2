package postgres

import (
	"context"
	"fmt"
	"time"

	"jobscout/internal/lead"
)

// CredentialStore implements lead.CredentialStore over Postgres.
type CredentialStore struct {
	db dbConn
}

// NewCredentialStore constructs a CredentialStore.
func NewCredentialStore(db dbConn) *CredentialStore {
	return &CredentialStore{db: db}
}

// Get fetches the credential for a principal.
func (s *CredentialStore) Get(ctx context.Context, principal string) (lead.Credential, error) {
	query, args, err := psql.Select("principal", "access_token", "refresh_token", "expires_at").
		From("credentials").
		Where("principal = ?", principal).
		ToSql()
	if err != nil {
		return lead.Credential{}, fmt.Errorf("build credential query: %w", err)
	}
	var cred lead.Credential
	err = s.db.QueryRow(ctx, query, args...).
		Scan(&cred.Principal, &cred.AccessToken, &cred.RefreshToken, &cred.ExpiresAt)
	if err != nil {
		return lead.Credential{}, fmt.Errorf("select credential: %w", err)
	}
	return cred, nil
}

// Save upserts a credential in place.
func (s *CredentialStore) Save(ctx context.Context, cred lead.Credential) error {
	query, args, err := psql.Insert("credentials").
		Columns("principal", "access_token", "refresh_token", "expires_at").
		Values(cred.Principal, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt).
		Suffix("ON CONFLICT (principal) DO UPDATE SET " +
			"access_token = EXCLUDED.access_token, " +
			"refresh_token = EXCLUDED.refresh_token, " +
			"expires_at = EXCLUDED.expires_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build credential upsert: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// ExpiringBefore returns credentials whose expiry falls before t.
func (s *CredentialStore) ExpiringBefore(ctx context.Context, t time.Time) ([]lead.Credential, error) {
	query, args, err := psql.Select("principal", "access_token", "refresh_token", "expires_at").
		From("credentials").
		Where("expires_at < ?", t).
		OrderBy("expires_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build expiring query: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select expiring credentials: %w", err)
	}
	defer rows.Close()

	var creds []lead.Credential
	for rows.Next() {
		var cred lead.Credential
		if err := rows.Scan(&cred.Principal, &cred.AccessToken, &cred.RefreshToken, &cred.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan credential row: %w", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("credential rows: %w", err)
	}
	return creds, nil
}
