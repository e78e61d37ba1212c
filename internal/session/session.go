// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/persona-tui/internal/model"
	"github.com/jeranaias/persona-tui/internal/persona"
)

// Completer produces the assistant reply for a transcript.
// ollama.Client and compat.Client both satisfy it.
type Completer interface {
	Complete(ctx context.Context, transcript []model.Turn) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, transcript []model.Turn) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, transcript []model.Turn) (string, error) {
	return f(ctx, transcript)
}

// =============================================================================
// STATE
// =============================================================================

// State is the lifecycle position of a Session.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateAwaitingReply
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateAwaitingReply:
		return "awaiting_reply"
	default:
		return "unknown"
	}
}

// Stats summarizes a session's activity since the last Start.
type Stats struct {
	Exchanges    int
	Failures     int
	StartedAt    time.Time
	LastActivity time.Time
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one conversation with a persona. It owns the transcript.
//
// All methods are safe for concurrent use. The mutex is released while the
// Completer runs, so readers and Start never wait on the model.
type Session struct {
	mu sync.Mutex

	id         string
	epoch      uint64
	state      State
	persona    persona.Persona
	hasPersona bool
	transcript []model.Turn
	lastErr    error
	stats      Stats

	completer Completer
	model     string
	logger    *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithModel records the model name for display and logging.
func WithModel(name string) Option {
	return func(s *Session) { s.model = name }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a session that accepts no messages until Start.
func New(c Completer, opts ...Option) *Session {
	now := time.Now()
	s := &Session{
		id:        uuid.NewString(),
		state:     StateUninitialized,
		completer: c,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		stats:     Stats{StartedAt: now, LastActivity: now},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewWithPersona creates a session already started with p.
func NewWithPersona(p persona.Persona, c Completer, opts ...Option) *Session {
	s := New(c, opts...)
	s.Start(p)
	return s
}

// Start begins a new conversation with p. The transcript becomes a single
// system turn rendered from p. A reply still pending from the previous
// conversation is discarded when it arrives.
func (s *Session) Start(p persona.Persona) {
	prompt := p.SystemPrompt()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		s.id = uuid.NewString()
	}
	s.epoch++
	s.persona = p
	s.hasPersona = true
	s.transcript = []model.Turn{model.SystemTurn(prompt)}
	s.state = StateReady
	s.lastErr = nil
	now := time.Now()
	s.stats = Stats{StartedAt: now, LastActivity: now}

	s.logger.Info("session.start", "session", s.id, "persona", p.Name, "model", s.model)
}

// Send appends text as a user turn, asks the Completer for a reply and
// appends it as an assistant turn.
//
// On a Completer failure only the user turn remains, the session returns
// to Ready and the error is a *SendError wrapping the service error.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return "", ErrNotReady
	}
	if strings.TrimSpace(text) == "" {
		s.mu.Unlock()
		return "", ErrInvalidInput
	}

	s.transcript = append(s.transcript, model.UserTurn(text))
	s.state = StateAwaitingReply
	s.stats.LastActivity = time.Now()
	epoch := s.epoch
	id := s.id
	snapshot := model.CloneTurns(s.transcript)
	completer := s.completer
	s.mu.Unlock()

	start := time.Now()
	reply, err := s.complete(ctx, completer, snapshot, epoch)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = fmt.Errorf("%w: empty reply", model.ErrServiceResponse)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.logger.Info("session.reply_discarded", "session", id)
		return "", ErrRestarted
	}

	s.state = StateReady
	s.stats.LastActivity = time.Now()

	if err != nil {
		s.stats.Failures++
		s.lastErr = &SendError{Text: text, Err: err}
		s.logger.Warn("session.send_failed", "session", s.id, "error", err, "elapsed", time.Since(start))
		return "", s.lastErr
	}

	s.transcript = append(s.transcript, model.AssistantTurn(reply))
	s.stats.Exchanges++
	s.lastErr = nil
	s.logger.Info("session.send", "session", s.id, "turns", len(s.transcript), "elapsed", time.Since(start))
	return reply, nil
}

// complete calls the Completer. If it panics the session goes back to Ready
// before the panic continues, so the conversation stays usable.
func (s *Session) complete(ctx context.Context, c Completer, transcript []model.Turn, epoch uint64) (string, error) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			if s.epoch == epoch {
				s.state = StateReady
				s.stats.Failures++
			}
			s.mu.Unlock()
			s.logger.Error("session.completer_panic", "session", s.ID(), "panic", r)
			panic(r)
		}
	}()
	return c.Complete(ctx, transcript)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// ID returns the conversation ID. It changes on every Start after the first.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transcript returns a copy of the transcript.
func (s *Session) Transcript() []model.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneTurns(s.transcript)
}

// Persona returns the active persona and whether one has been started.
func (s *Session) Persona() (persona.Persona, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persona, s.hasPersona
}

// Model returns the model name given with WithModel.
func (s *Session) Model() string {
	return s.model
}

// LastError returns the error from the most recent failed Send, or nil
// once a later Send succeeds.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Stats returns activity counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// FormatDuration returns a human-readable duration string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm %ds", mins, secs)
}
