//go:build linux || windows

package keychain

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore stores secrets through go-keyring: the Secret Service on
// Linux and Credential Manager on Windows. go-keyring has no enumeration
// API, so List goes to the platform directly (see listKeys).
type KeyringStore struct{}

// NewSystemStore creates a new store backed by the platform keyring.
func NewSystemStore() Store {
	return &KeyringStore{}
}

// Set stores a secret. go-keyring replaces an existing item in place.
func (s *KeyringStore) Set(scope, key, value string) error {
	if err := keyring.Set(scope, key, value); err != nil {
		return fmt.Errorf("keyring set %q: %w", key, err)
	}
	return nil
}

func (s *KeyringStore) Get(scope, key string) (string, error) {
	val, err := keyring.Get(scope, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("keyring get %q: %w", key, err)
	}
	return val, nil
}

func (s *KeyringStore) Delete(scope, key string) (bool, error) {
	err := keyring.Delete(scope, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("keyring delete %q: %w", key, err)
	}
	return true, nil
}

func (s *KeyringStore) List(scope string) ([]string, error) {
	keys, err := listKeys(scope)
	if err != nil {
		return nil, fmt.Errorf("keyring list: %w", err)
	}
	return keys, nil
}
