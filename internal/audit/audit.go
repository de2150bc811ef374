// Package audit provides append-only structured logging for secret operations.
//
// Every secret access (read, write, delete, list) made through keyring-mcp
// can be recorded to an audit log as newline-delimited JSON. Values are
// never written; only scope, key and outcome.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Action describes what happened.
type Action string

const (
	ActionSecretRead   Action = "secret_read"
	ActionSecretWrite  Action = "secret_write"
	ActionSecretDelete Action = "secret_delete"
	ActionSecretList   Action = "secret_list"
)

// Entry is a single audit log record.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	Action    Action    `json:"action"`
	Scope     string    `json:"scope"`
	Key       string    `json:"key,omitempty"`
	Actor     string    `json:"actor,omitempty"` // "stdio", "http", "cli", "check"
	Missing   bool      `json:"missing,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Logger writes audit entries to an append-only file.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewLogger creates or opens an audit log file for appending. The parent
// directory is created if needed.
func NewLogger(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating audit log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &Logger{file: f, path: path}, nil
}

// Log writes an audit entry.
func (l *Logger) Log(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// Path returns the file the logger appends to.
func (l *Logger) Path() string {
	return l.path
}

// Close closes the audit log file.
func (l *Logger) Close() error {
	return l.file.Close()
}
