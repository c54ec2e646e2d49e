package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps session payloads in a bounded LRU whose entries expire
// ttl after their last write.
type MemoryStore struct {
	cache *expirable.LRU[string, []byte]
}

func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: expirable.NewLRU[string, []byte](capacity, nil, ttl)}
}

func (s *MemoryStore) Get(_ context.Context, id string) ([]byte, bool, error) {
	payload, ok := s.cache.Get(id)
	if !ok {
		return nil, false, nil
	}
	return clone(payload), true, nil
}

func (s *MemoryStore) Put(_ context.Context, id string, payload []byte) error {
	s.cache.Add(id, clone(payload))
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, id string) error {
	s.cache.Remove(id)
	return nil
}

func (s *MemoryStore) Len() int { return s.cache.Len() }

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
