package keychain

import (
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for tests and for
// hosts without a usable credential store.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]map[string]string // scope → key → value
}

// NewMemoryStore creates a new in-memory secret store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]map[string]string)}
}

func (s *MemoryStore) Set(scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.secrets[scope]
	if !ok {
		bucket = make(map[string]string)
		s.secrets[scope] = bucket
	}
	bucket[key] = value
	return nil
}

func (s *MemoryStore) Get(scope, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.secrets[scope][key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return val, nil
}

func (s *MemoryStore) Delete(scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.secrets[scope]
	if _, ok := bucket[key]; !ok {
		return false, nil
	}
	delete(bucket, key)
	if len(bucket) == 0 {
		delete(s.secrets, scope)
	}
	return true, nil
}

func (s *MemoryStore) List(scope string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket := s.secrets[scope]
	keys := make([]string, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}
