//go:build !darwin && !linux && !windows

package keychain

import "log/slog"

// NewSystemStore returns a MemoryStore on platforms without a supported
// credential store. Secrets are kept in memory only and will not persist
// across restarts.
func NewSystemStore() Store {
	slog.Warn("no native credential store on this platform, secrets will not persist", "component", "keychain")
	return NewMemoryStore()
}
