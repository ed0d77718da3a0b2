package memory

import (
	"context"
	"sync"
)

// BucketStore implements lead.BucketStore over process memory.
type BucketStore struct {
	mu      sync.Mutex
	buckets map[string]int
}

// NewBucketStore constructs a BucketStore.
func NewBucketStore() *BucketStore {
	return &BucketStore{buckets: make(map[string]int)}
}

// Count returns the consumption for an hour key, zero if absent.
func (s *BucketStore) Count(_ context.Context, hourKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buckets[hourKey], nil
}

// Increment adds one to the bucket, creating it on first use.
func (s *BucketStore) Increment(_ context.Context, hourKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[hourKey]++
	return nil
}

// PurgeBefore deletes buckets whose key sorts before cutoffKey. Hour keys
// are lexicographically ordered by construction.
func (s *BucketStore) PurgeBefore(_ context.Context, cutoffKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.buckets {
		if key < cutoffKey {
			delete(s.buckets, key)
		}
	}
	return nil
}
