package api

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/benaskins/keyring-mcp/internal/mcp"
)

// Session is one MCP client conversation over HTTP. It is created by an
// initialize request and lives until the client deletes it or the server
// stops. Sessions do not expire.
type Session struct {
	ID              string
	CreatedAt       time.Time
	ProtocolVersion string
	Client          mcp.ClientInfo

	lastSeen atomic.Int64 // unix nanos
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// SessionRegistry maps session ids to sessions. It is safe for concurrent use.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Create mints a session with a fresh random id.
func (r *SessionRegistry) Create(protocolVersion string, client mcp.ClientInfo) *Session {
	s := &Session{
		ID:              uuid.NewString(),
		CreatedAt:       time.Now(),
		ProtocolVersion: protocolVersion,
		Client:          client,
	}
	s.touch()

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Get looks up a session and marks it as used.
func (r *SessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.touch()
	}
	return s, ok
}

// Delete removes a session and reports whether it existed.
func (r *SessionRegistry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Clear drops every session.
func (r *SessionRegistry) Clear() {
	r.mu.Lock()
	clear(r.sessions)
	r.mu.Unlock()
}
