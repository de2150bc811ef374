package mcp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/benaskins/keyring-mcp/internal/keychain"
)

// Tool names.
const (
	ToolStoreSecret    = "store_secret"
	ToolRetrieveSecret = "retrieve_secret"
	ToolDeleteSecret   = "delete_secret"
	ToolListSecrets    = "list_secrets"
)

// StoreSecretArgs are the arguments of store_secret.
type StoreSecretArgs struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// KeyArgs are the arguments of retrieve_secret and delete_secret.
type KeyArgs struct {
	Key string `json:"key"`
}

// ListSecretsArgs are the arguments of list_secrets. It takes none.
type ListSecretsArgs struct{}

const listUnavailableText = "Listing secrets is not available in this environment: the system keychain refused enumeration (%v). " +
	"You can still store, retrieve and delete secrets by key."

// secrets implements the four secret tools against a Store.
type secrets struct {
	store keychain.Store
	scope string
}

// NewSecretRegistry returns a registry with store_secret, retrieve_secret,
// delete_secret and list_secrets, in that order, operating on scope.
func NewSecretRegistry(store keychain.Store, scope string) *Registry {
	if scope == "" {
		scope = keychain.DefaultScope
	}
	s := &secrets{store: store, scope: scope}
	keyProp := Property{Type: "string", Description: "Unique name of the secret", MinLength: 1}

	r := NewRegistry()
	r.Register(Tool{
		Name:        ToolStoreSecret,
		Title:       "Store secret",
		Description: "Store a secret in the system keychain. Overwrites any existing value for the key.",
		InputSchema: Schema{
			Type: "object",
			Properties: map[string]Property{
				"key":   keyProp,
				"value": {Type: "string", Description: "Secret value to store"},
			},
			Required: []string{"key", "value"},
		},
		Annotations: &ToolAnnotations{IdempotentHint: true, DestructiveHint: true},
	}, bind(s.storeSecret))

	r.Register(Tool{
		Name:        ToolRetrieveSecret,
		Title:       "Retrieve secret",
		Description: "Retrieve a secret from the system keychain by key. Returns the raw value.",
		InputSchema: Schema{
			Type:       "object",
			Properties: map[string]Property{"key": keyProp},
			Required:   []string{"key"},
		},
		Annotations: &ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
	}, bind(s.retrieveSecret))

	r.Register(Tool{
		Name:        ToolDeleteSecret,
		Title:       "Delete secret",
		Description: "Delete a secret from the system keychain by key.",
		InputSchema: Schema{
			Type:       "object",
			Properties: map[string]Property{"key": keyProp},
			Required:   []string{"key"},
		},
		Annotations: &ToolAnnotations{DestructiveHint: true, IdempotentHint: true},
	}, bind(s.deleteSecret))

	r.Register(Tool{
		Name:        ToolListSecrets,
		Title:       "List secrets",
		Description: "List the keys of all stored secrets. Values are never returned.",
		InputSchema: Schema{Type: "object", Properties: map[string]Property{}},
		Annotations: &ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
	}, bind(s.listSecrets))

	return r
}

func (s *secrets) storeSecret(_ context.Context, args StoreSecretArgs) *ToolCallResult {
	return guard("Failed to store secret", func() (*ToolCallResult, error) {
		if err := s.store.Set(s.scope, args.Key, args.Value); err != nil {
			return nil, err
		}
		return TextResult("Successfully stored secret with key: " + args.Key), nil
	})
}

func (s *secrets) retrieveSecret(_ context.Context, args KeyArgs) *ToolCallResult {
	return guard("Failed to retrieve secret", func() (*ToolCallResult, error) {
		val, err := s.store.Get(s.scope, args.Key)
		if errors.Is(err, keychain.ErrNotFound) {
			return TextResult("No secret found with key: " + args.Key), nil
		}
		if err != nil {
			return nil, err
		}
		return TextResult(val), nil
	})
}

func (s *secrets) deleteSecret(_ context.Context, args KeyArgs) *ToolCallResult {
	return guard("Failed to delete secret", func() (*ToolCallResult, error) {
		existed, err := s.store.Delete(s.scope, args.Key)
		if err != nil {
			return nil, err
		}
		if !existed {
			return TextResult("No secret found with key: " + args.Key), nil
		}
		return TextResult("Successfully deleted secret with key: " + args.Key), nil
	})
}

func (s *secrets) listSecrets(_ context.Context, _ ListSecretsArgs) *ToolCallResult {
	return guard("Failed to list secrets", func() (*ToolCallResult, error) {
		keys, err := s.store.List(s.scope)
		if err != nil {
			if listingRestricted(err) {
				return TextResult(fmt.Sprintf(listUnavailableText, err)), nil
			}
			return nil, err
		}
		if len(keys) == 0 {
			return TextResult("No secrets stored yet."), nil
		}
		var b strings.Builder
		b.WriteString("Stored secret keys:")
		for _, k := range keys {
			b.WriteString("\n- ")
			b.WriteString(k)
		}
		return TextResult(b.String()), nil
	})
}

// listingRestricted matches errors from sandboxes and headless sessions
// where the keychain allows item access but not enumeration.
func listingRestricted(err error) bool {
	if errors.Is(err, keychain.ErrListUnavailable) || errors.Is(err, fs.ErrPermission) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "d-bus")
}
