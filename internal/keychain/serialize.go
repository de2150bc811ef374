package keychain

import "sync"

// SerializedStore wraps a Store whose backend is not safe for concurrent
// use. Calls within one scope run one at a time; different scopes do not
// block each other.
type SerializedStore struct {
	inner Store
	locks sync.Map // scope → *sync.Mutex
}

// Serialize wraps inner so that calls against the same scope never overlap.
func Serialize(inner Store) *SerializedStore {
	return &SerializedStore{inner: inner}
}

func (s *SerializedStore) lock(scope string) func() {
	v, _ := s.locks.LoadOrStore(scope, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *SerializedStore) Set(scope, key, value string) error {
	defer s.lock(scope)()
	return s.inner.Set(scope, key, value)
}

func (s *SerializedStore) Get(scope, key string) (string, error) {
	defer s.lock(scope)()
	return s.inner.Get(scope, key)
}

func (s *SerializedStore) Delete(scope, key string) (bool, error) {
	defer s.lock(scope)()
	return s.inner.Delete(scope, key)
}

func (s *SerializedStore) List(scope string) ([]string, error) {
	defer s.lock(scope)()
	return s.inner.List(scope)
}
