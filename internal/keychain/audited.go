package keychain

import (
	"errors"
	"log/slog"

	"github.com/benaskins/keyring-mcp/internal/audit"
)

// AuditedStore wraps a Store and records every operation to an audit log.
// Errors from the inner store are returned unchanged so callers can still
// match ErrNotFound.
type AuditedStore struct {
	inner Store
	audit *audit.Logger
	actor string // "stdio", "http" or "cli"
}

// NewAuditedStore wraps an existing store with audit logging.
func NewAuditedStore(inner Store, auditLog *audit.Logger, actor string) *AuditedStore {
	return &AuditedStore{
		inner: inner,
		audit: auditLog,
		actor: actor,
	}
}

// record is best-effort: a failure to log should not block the operation.
func (s *AuditedStore) record(e audit.Entry, opErr error) {
	e.Actor = s.actor
	if opErr != nil {
		e.Error = opErr.Error()
	}
	if err := s.audit.Log(e); err != nil {
		slog.Warn("audit log write failed", "component", "keychain", "action", e.Action, "error", err)
	}
}

func (s *AuditedStore) Set(scope, key, value string) error {
	err := s.inner.Set(scope, key, value)
	s.record(audit.Entry{Action: audit.ActionSecretWrite, Scope: scope, Key: key}, err)
	return err
}

func (s *AuditedStore) Get(scope, key string) (string, error) {
	val, err := s.inner.Get(scope, key)
	if errors.Is(err, ErrNotFound) {
		s.record(audit.Entry{Action: audit.ActionSecretRead, Scope: scope, Key: key, Missing: true}, nil)
		return "", err
	}
	s.record(audit.Entry{Action: audit.ActionSecretRead, Scope: scope, Key: key}, err)
	return val, err
}

func (s *AuditedStore) Delete(scope, key string) (bool, error) {
	existed, err := s.inner.Delete(scope, key)
	s.record(audit.Entry{Action: audit.ActionSecretDelete, Scope: scope, Key: key, Missing: err == nil && !existed}, err)
	return existed, err
}

func (s *AuditedStore) List(scope string) ([]string, error) {
	keys, err := s.inner.List(scope)
	s.record(audit.Entry{Action: audit.ActionSecretList, Scope: scope}, err)
	return keys, err
}
