//go:build darwin

package keychain

import (
	"errors"
	"fmt"

	gokeychain "github.com/keybase/go-keychain"
)

// SystemStore provides CRUD operations for secrets in macOS Keychain.
type SystemStore struct{}

// NewSystemStore creates a new Keychain-backed secret store.
func NewSystemStore() Store {
	return &SystemStore{}
}

// Set stores a secret in the Keychain. Overwrites if it already exists.
func (s *SystemStore) Set(scope, key, value string) error {
	// Try to delete existing item first (update = delete + add)
	if _, err := s.Delete(scope, key); err != nil {
		return err
	}

	item := gokeychain.NewGenericPassword(
		scope,
		key,
		fmt.Sprintf("%s: %s", scope, key),
		[]byte(value),
		"",
	)
	item.SetSynchronizable(gokeychain.SynchronizableNo)
	item.SetAccessible(gokeychain.AccessibleWhenUnlockedThisDeviceOnly)

	if err := gokeychain.AddItem(item); err != nil {
		return fmt.Errorf("keychain add %q: %w", key, err)
	}
	return nil
}

// Get retrieves a secret from the Keychain.
func (s *SystemStore) Get(scope, key string) (string, error) {
	data, err := gokeychain.GetGenericPassword(scope, key, "", "")
	if err != nil {
		if errors.Is(err, gokeychain.ErrorItemNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("keychain get %q: %w", key, err)
	}
	// GetGenericPassword returns nil data and no error on a miss.
	if data == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return string(data), nil
}

// List returns all account names stored under scope.
func (s *SystemStore) List(scope string) ([]string, error) {
	accounts, err := gokeychain.GetGenericPasswordAccounts(scope)
	if err != nil {
		if errors.Is(err, gokeychain.ErrorItemNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("keychain list: %w", err)
	}
	return accounts, nil
}

// Delete removes a secret from the Keychain.
func (s *SystemStore) Delete(scope, key string) (bool, error) {
	err := gokeychain.DeleteGenericPasswordItem(scope, key)
	if err != nil {
		if errors.Is(err, gokeychain.ErrorItemNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("keychain delete %q: %w", key, err)
	}
	return true, nil
}
