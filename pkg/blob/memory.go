package blob

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store for tests.
type MemStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewMem creates an empty in-memory store.
func NewMem() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

// Put stores a copy of data under key and returns a mem:// URL.
func (s *MemStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.blobs[key] = cp
	return "mem://" + key, nil
}

// Get returns the stored blob and whether it exists.
func (s *MemStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	return b, ok
}

// Len returns the number of stored blobs.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)
