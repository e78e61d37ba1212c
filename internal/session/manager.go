// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/persona-tui/internal/persona"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// ErrTooManySessions is returned by Create when the manager is full.
var ErrTooManySessions = &SessionError{Message: "too many open sessions"}

// Manager owns the sessions opened through the HTTP API and expires the
// ones left idle.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	idleTimeout time.Duration
	maxSessions int
	logger      *slog.Logger
}

// Config holds configuration for the session manager.
type Config struct {
	// IdleTimeout is how long a session may sit unused (default: 30 minutes)
	IdleTimeout time.Duration

	// MaxSessions caps concurrently open sessions (default: 64)
	MaxSessions int

	// Logger receives lifecycle events (default: discard)
	Logger *slog.Logger
}

// DefaultConfig returns the default session manager configuration.
func DefaultConfig() Config {
	return Config{
		IdleTimeout: 30 * time.Minute,
		MaxSessions: 64,
	}
}

// NewManager creates a new session manager.
func NewManager(cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = def.MaxSessions
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		idleTimeout: cfg.IdleTimeout,
		maxSessions: cfg.MaxSessions,
		logger:      cfg.Logger,
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Create starts a new session with p and registers it.
func (m *Manager) Create(p persona.Persona, c Completer, opts ...Option) (*Session, error) {
	if m.Len() >= m.maxSessions {
		m.Sweep()
	}

	opts = append([]Option{WithLogger(m.logger)}, opts...)
	s := NewWithPersona(p, c, opts...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) >= m.maxSessions {
		return nil, ErrTooManySessions
	}
	m.sessions[s.ID()] = s
	return s, nil
}

// Get returns the session registered under id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Reset restarts the session under id with p. Start issues a new ID, so
// the session is re-registered under it and the old ID stops resolving.
func (m *Manager) Reset(id string, p persona.Persona) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.Start(p)
	delete(m.sessions, id)
	m.sessions[s.ID()] = s
	return s, nil
}

// Remove forgets the session under id.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	m.logger.Info("session.close", "session", id)
	return nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// IDs returns the open session IDs, sorted.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// =============================================================================
// TIMEOUT CHECKING
// =============================================================================

// IsExpired reports whether s has been idle past the timeout. A session
// waiting on the model is never expired.
func (m *Manager) IsExpired(s *Session) bool {
	if s.State() == StateAwaitingReply {
		return false
	}
	return time.Since(s.Stats().LastActivity) >= m.idleTimeout
}

// Sweep removes expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	var expired []string
	for id, s := range m.sessions {
		if m.IsExpired(s) {
			expired = append(expired, id)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.logger.Info("session.expired", "session", id)
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
