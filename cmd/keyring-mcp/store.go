package main

import (
	"fmt"
	"log/slog"

	"github.com/benaskins/keyring-mcp/internal/audit"
	"github.com/benaskins/keyring-mcp/internal/config"
	"github.com/benaskins/keyring-mcp/internal/keychain"
	"github.com/benaskins/keyring-mcp/internal/mcp"
)

// openStore builds the secret store for c. actor tags audit entries with
// the surface that made the call. The returned close func flushes the audit
// log, if any.
func openStore(c *config.Config, actor string) (keychain.Store, func() error, error) {
	var store keychain.Store
	switch c.Backend {
	case config.BackendMemory:
		slog.Warn("using in-memory secret store; secrets are lost on exit")
		store = keychain.NewMemoryStore()
	default:
		store = keychain.Serialize(keychain.NewSystemStore())
	}

	closeFn := func() error { return nil }
	if c.AuditLog != "" {
		logger, err := audit.NewLogger(c.AuditLog)
		if err != nil {
			return nil, nil, fmt.Errorf("opening audit log: %w", err)
		}
		store = keychain.NewAuditedStore(store, logger, actor)
		closeFn = logger.Close
		slog.Info("audit log enabled", "path", logger.Path())
	}
	return store, closeFn, nil
}

// newDispatcher wires the secret tools over store into an MCP dispatcher.
func newDispatcher(store keychain.Store, scope string) *mcp.Dispatcher {
	return mcp.NewDispatcher(
		mcp.NewSecretRegistry(store, scope),
		mcp.ServerInfo{Name: mcp.ServerName, Version: version},
	)
}
