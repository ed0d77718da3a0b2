package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BucketStore implements lead.BucketStore over Postgres.
type BucketStore struct {
	db dbConn
}

// NewBucketStore constructs a BucketStore.
func NewBucketStore(db dbConn) *BucketStore {
	return &BucketStore{db: db}
}

// Count returns the consumption for an hour key, zero if the bucket does
// not exist yet.
func (s *BucketStore) Count(ctx context.Context, hourKey string) (int, error) {
	query, args, err := psql.Select("count").
		From("rate_buckets").
		Where("hour_key = ?", hourKey).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build bucket count query: %w", err)
	}
	var count int
	err = s.db.QueryRow(ctx, query, args...).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("bucket count: %w", err)
	}
	return count, nil
}

// Increment upserts the bucket and adds one. The get-or-create upsert
// avoids a race between first read and first write in the same hour.
func (s *BucketStore) Increment(ctx context.Context, hourKey string) error {
	query, args, err := psql.Insert("rate_buckets").
		Columns("hour_key", "count").
		Values(hourKey, 1).
		Suffix("ON CONFLICT (hour_key) DO UPDATE SET count = rate_buckets.count + 1").
		ToSql()
	if err != nil {
		return fmt.Errorf("build bucket increment: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("bucket increment: %w", err)
	}
	return nil
}

// PurgeBefore deletes buckets whose key sorts before cutoffKey. Hour keys
// (YYYY-MM-DDTHH, UTC) order lexicographically the same as chronologically.
func (s *BucketStore) PurgeBefore(ctx context.Context, cutoffKey string) error {
	query, args, err := psql.Delete("rate_buckets").
		Where("hour_key < ?", cutoffKey).
		ToSql()
	if err != nil {
		return fmt.Errorf("build bucket purge: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("bucket purge: %w", err)
	}
	return nil
}
