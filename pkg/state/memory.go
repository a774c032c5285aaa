package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements Store in memory. Used by tests and local runs
// without a redis.
type MemoryStore struct {
	mu       sync.Mutex
	values   map[string]string
	expiry   map[string]time.Time
	nextRuns map[string]time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:   map[string]string{},
		expiry:   map[string]time.Time{},
		nextRuns: map[string]time.Time{},
	}
}

func (s *MemoryStore) Save(_ context.Context, namespace string, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := stateKey(namespace, key)
	s.values[k] = value
	if ttl > 0 {
		s.expiry[k] = time.Now().Add(ttl)
	} else {
		delete(s.expiry, k)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, namespace string, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := stateKey(namespace, key)
	if deadline, ok := s.expiry[k]; ok && time.Now().After(deadline) {
		delete(s.values, k)
		delete(s.expiry, k)
		return "", nil
	}
	return s.values[k], nil
}

func (s *MemoryStore) SaveError(ctx context.Context, namespace string, itemID string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode error payload: %w", err)
	}
	return s.Save(ctx, namespace, "error:"+itemID, string(encoded), SnapshotTTL)
}

func (s *MemoryStore) NextRun(_ context.Context, namespace string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextRuns[namespace], nil
}

func (s *MemoryStore) SetNextRun(_ context.Context, namespace string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRuns[namespace] = t
	return nil
}
