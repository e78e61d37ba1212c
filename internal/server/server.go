// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"

	"github.com/jeranaias/persona-tui/internal/model"
	"github.com/jeranaias/persona-tui/internal/persona"
	"github.com/jeranaias/persona-tui/internal/session"
	"github.com/jeranaias/persona-tui/internal/storage"
)

// Version is reported by GET /health.
const Version = "1.0.0"

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = "127.0.0.1:8765"

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ============================================================================
// SERVER
// ============================================================================

// HealthChecker probes the model endpoint.
type HealthChecker interface {
	CheckRunning(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Addr      string
	Store     storage.PersonaStore
	Completer session.Completer
	Health    HealthChecker
	Sessions  *session.Manager
	Model     string
	Token     string
	Logger    *slog.Logger
}

// Server exposes personas and conversation sessions over a local HTTP API.
type Server struct {
	addr      string
	router    *mux.Router
	handler   http.Handler
	server    *http.Server
	store     storage.PersonaStore
	completer session.Completer
	health    HealthChecker
	sessions  *session.Manager
	model     string
	logger    *slog.Logger
	started   time.Time
}

// New creates a Server. Store and Completer are required.
func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewManager(session.Config{Logger: opts.Logger})
	}

	s := &Server{
		addr:      opts.Addr,
		router:    mux.NewRouter().UseEncodedPath(),
		store:     opts.Store,
		completer: opts.Completer,
		health:    opts.Health,
		sessions:  opts.Sessions,
		model:     opts.Model,
		logger:    opts.Logger,
		started:   time.Now(),
	}
	s.setupRoutes()

	s.handler = Chain(
		RecoveryMiddleware(s.logger),
		SecurityHeadersMiddleware(),
		LoggingMiddleware(s.logger),
		AuthMiddleware(opts.Token, s.logger),
	)(s.router)
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/personas", s.handleListPersonas).Methods(http.MethodGet)
	r.HandleFunc("/personas/{name}", s.handleGetPersona).Methods(http.MethodGet)
	r.HandleFunc("/personas/{name}", s.handlePutPersona).Methods(http.MethodPut)
	r.HandleFunc("/personas/{name}", s.handleDeletePersona).Methods(http.MethodDelete)

	r.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	r.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/messages", s.handleSendMessage).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/reset", s.handleResetSession).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
// Idle sessions are swept once a minute while it runs.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.sessions.Run(sweepCtx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.start", "addr", ln.Addr().String(), "version", Version, "model", s.model)
		errCh <- s.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("server.shutdown")
		return s.server.Shutdown(shutdownCtx)
	}
}

// ============================================================================
// HEALTH HANDLER
// ============================================================================

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Model       string `json:"model"`
	ModelStatus string `json:"model_status"`
	Sessions    int    `json:"sessions"`
	Uptime      string `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:   "ok",
		Version:  Version,
		Model:    s.model,
		Sessions: s.sessions.Len(),
		Uptime:   session.FormatDuration(time.Since(s.started)),
	}

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.CheckRunning(ctx); err == nil {
			health.ModelStatus = "ok"
		} else {
			health.ModelStatus = "unavailable"
			health.Status = "degraded"
		}
	} else {
		health.ModelStatus = "not_checked"
	}

	writeJSON(w, http.StatusOK, health)
}

// ============================================================================
// PERSONA HANDLERS
// ============================================================================

// PersonaListResponse is the body of GET /personas.
type PersonaListResponse struct {
	Personas []string `json:"personas"`
}

func (s *Server) handleListPersonas(w http.ResponseWriter, r *http.Request) {
	keys, err := s.store.ListKeys()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	writeJSON(w, http.StatusOK, PersonaListResponse{Personas: keys})
}

func (s *Server) handleGetPersona(w http.ResponseWriter, r *http.Request) {
	name, ok := pathVar(w, r, "name")
	if !ok {
		return
	}
	p, err := s.store.Load(name)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutPersona(w http.ResponseWriter, r *http.Request) {
	name, ok := pathVar(w, r, "name")
	if !ok {
		return
	}

	var p persona.Persona
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.Name == "" {
		p.Name = name
	}
	if persona.NormalizeName(p.Name) != persona.NormalizeName(name) {
		writeError(w, http.StatusBadRequest, "name in body does not match path")
		return
	}

	if err := s.store.Save(p); err != nil {
		s.writeErr(w, err)
		return
	}
	s.logger.Info("persona.save", "name", p.Name)
	writeJSON(w, http.StatusOK, p.Normalize())
}

func (s *Server) handleDeletePersona(w http.ResponseWriter, r *http.Request) {
	name, ok := pathVar(w, r, "name")
	if !ok {
		return
	}
	if err := s.store.Delete(name); err != nil {
		s.writeErr(w, err)
		return
	}
	s.logger.Info("persona.delete", "name", name)
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// SESSION HANDLERS
// ============================================================================

// CreateSessionRequest is the body of POST /sessions and
// POST /sessions/{id}/reset.
type CreateSessionRequest struct {
	Persona string `json:"persona"`
}

// SessionListResponse is the body of GET /sessions.
type SessionListResponse struct {
	Sessions []string `json:"sessions"`
}

// SendMessageRequest is the body of POST /sessions/{id}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessageResponse is the reply to a message.
type SendMessageResponse struct {
	Reply string `json:"reply"`
	Turns int    `json:"turns"`
}

// SessionResponse describes a session.
type SessionResponse struct {
	ID         string       `json:"id"`
	Persona    string       `json:"persona"`
	State      string       `json:"state"`
	Model      string       `json:"model,omitempty"`
	Transcript []model.Turn `json:"transcript"`
	Exchanges  int          `json:"exchanges"`
	Failures   int          `json:"failures"`
	LastError  string       `json:"last_error,omitempty"`
}

func describe(sess *session.Session) SessionResponse {
	p, _ := sess.Persona()
	stats := sess.Stats()
	resp := SessionResponse{
		ID:         sess.ID(),
		Persona:    p.Name,
		State:      sess.State().String(),
		Model:      sess.Model(),
		Transcript: sess.Transcript(),
		Exchanges:  stats.Exchanges,
		Failures:   stats.Failures,
	}
	if err := sess.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	return resp
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SessionListResponse{Sessions: s.sessions.IDs()})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Persona == "" {
		writeError(w, http.StatusBadRequest, "persona is required")
		return
	}

	p, err := s.store.Load(req.Persona)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	sess, err := s.sessions.Create(p, s.completer, session.WithModel(s.model))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, describe(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, describe(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathVar(w, r, "id")
	if !ok {
		return
	}
	if err := s.sessions.Remove(id); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := sess.Send(r.Context(), req.Content)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SendMessageResponse{Reply: reply, Turns: len(sess.Transcript())})
}

// handleResetSession restarts the conversation. The persona defaults to
// the current one; a different one may be named in the body.
func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathVar(w, r, "id")
	if !ok {
		return
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	var req CreateSessionRequest
	if err := decodeBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, _ := sess.Persona()
	if req.Persona != "" {
		if p, err = s.store.Load(req.Persona); err != nil {
			s.writeErr(w, err)
			return
		}
	}

	sess, err = s.sessions.Reset(id, p)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, describe(sess))
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id, ok := pathVar(w, r, "id")
	if !ok {
		return nil, false
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.writeErr(w, err)
		return nil, false
	}
	return sess, true
}

// ============================================================================
// HELPERS
// ============================================================================

// StatusFor maps core errors onto HTTP status codes.
func StatusFor(err error) int {
	var corrupt *storage.CorruptRecordError
	switch {
	case errors.As(err, &corrupt):
		return http.StatusInternalServerError
	case errors.Is(err, session.ErrInvalidInput), errors.Is(err, persona.ErrInvalidPersona):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotReady), errors.Is(err, session.ErrRestarted), errors.Is(err, storage.ErrExists):
		return http.StatusConflict
	case errors.Is(err, session.ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, model.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrServiceResponse):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("http.error", "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the message and status code.
type ErrorBody struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Message: message, Code: status}})
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// pathVar returns the decoded route variable. The router matches on the
// encoded path so names containing "/" survive.
func pathVar(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	v, err := url.PathUnescape(mux.Vars(r)[key])
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+key+" in path")
		return "", false
	}
	return v, true
}
