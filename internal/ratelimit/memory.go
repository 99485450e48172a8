package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryBucket struct {
	attempts  []time.Time
	expiresAt time.Time
}

// MemoryStore is a process-local Store suitable for single-instance
// deployments and tests.
type MemoryStore struct {
	mu    sync.Mutex
	data  map[string]memoryBucket
	clock func() time.Time
}

// NewMemoryStore constructs an in-memory rate limit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:  make(map[string]memoryBucket),
		clock: time.Now,
	}
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	if s.clock().After(bucket.expiresAt) {
		delete(s.data, key)
		return nil, nil
	}

	out := make([]time.Time, len(bucket.attempts))
	copy(out, bucket.attempts)
	return out, nil
}

func (s *MemoryStore) Save(_ context.Context, key string, attempts []time.Time, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(attempts) == 0 {
		delete(s.data, key)
		return nil
	}

	stored := make([]time.Time, len(attempts))
	copy(stored, attempts)
	s.data[key] = memoryBucket{
		attempts:  stored,
		expiresAt: s.clock().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := len(s.data)
	s.data = make(map[string]memoryBucket)
	return count, nil
}
