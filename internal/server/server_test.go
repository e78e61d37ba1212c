// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/persona-tui/internal/model"
	"github.com/jeranaias/persona-tui/internal/persona"
	"github.com/jeranaias/persona-tui/internal/session"
	"github.com/jeranaias/persona-tui/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeModel struct {
	mu    sync.Mutex
	reply string
	err   error
	gate  chan struct{}
	up    bool
}

func (f *fakeModel) Complete(ctx context.Context, _ []model.Turn) (string, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reply, f.err
}

func (f *fakeModel) CheckRunning(context.Context) error {
	if f.up {
		return nil
	}
	return model.ErrServiceUnavailable
}

type fixture struct {
	srv   *Server
	store *storage.FileStore
	model *fakeModel
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(persona.Persona{Name: "Nova", Description: "A cheerful helper."}))

	fm := &fakeModel{reply: "Hello!", up: true}
	srv := New(Options{
		Store:     store,
		Completer: fm,
		Health:    fm,
		Model:     "llama3.1",
		Token:     token,
	})
	return &fixture{srv: srv, store: store, model: fm}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *fixture) createSession(t *testing.T) SessionResponse {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/sessions", CreateSessionRequest{Persona: "Nova"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[SessionResponse](t, rec)
}

// =============================================================================
// HEALTH
// =============================================================================

func TestHealth(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.ModelStatus)
	assert.Equal(t, "llama3.1", health.Model)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	f.model.up = false
	health = decode[HealthResponse](t, f.do(t, http.MethodGet, "/health", nil))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "unavailable", health.ModelStatus)
}

// =============================================================================
// PERSONAS
// =============================================================================

func TestPersonas_CRUD(t *testing.T) {
	f := newFixture(t, "")

	list := decode[PersonaListResponse](t, f.do(t, http.MethodGet, "/personas", nil))
	assert.Equal(t, []string{"Nova"}, list.Personas)

	ember := persona.Persona{Description: "Grumpy dragon.", ReplyStyle: "Short answers.", AvatarPath: "avatars/ember.png"}
	rec := f.do(t, http.MethodPut, "/personas/Ember", ember)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[persona.Persona](t, f.do(t, http.MethodGet, "/personas/Ember", nil))
	ember.Name = "Ember"
	assert.Equal(t, ember, got)

	list = decode[PersonaListResponse](t, f.do(t, http.MethodGet, "/personas", nil))
	assert.Equal(t, []string{"Ember", "Nova"}, list.Personas)

	rec = f.do(t, http.MethodDelete, "/personas/Ember", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/personas/Ember", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/personas/Ember", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, decode[ErrorResponse](t, rec).Error.Code)
}

func TestPersonas_EncodedName(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodPut, "/personas/Mia%2FTwo", persona.Persona{Description: "Two of them."})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[persona.Persona](t, f.do(t, http.MethodGet, "/personas/Mia%2FTwo", nil))
	assert.Equal(t, "Mia/Two", got.Name)
}

func TestPersonas_PutRejects(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodPut, "/personas/Nova", persona.Persona{Name: "Ember", Description: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPut, "/personas/Nova", strings.NewReader(`{"name":"Nova","colour":"red"}`))
	rr := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rec = f.do(t, http.MethodPut, "/personas/%20", persona.Persona{Description: "blank name"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// SESSIONS
// =============================================================================

func TestSessions_EndToEnd(t *testing.T) {
	f := newFixture(t, "")

	created := f.createSession(t)
	assert.Equal(t, "Nova", created.Persona)
	assert.Equal(t, "ready", created.State)
	require.Len(t, created.Transcript, 1)
	assert.Equal(t, "You are Nova.\n\nA cheerful helper.\n\nYou must stay in character at all times.", created.Transcript[0].Content)

	rec := f.do(t, http.MethodPost, "/sessions/"+created.ID+"/messages", SendMessageRequest{Content: "hi"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sent := decode[SendMessageResponse](t, rec)
	assert.Equal(t, "Hello!", sent.Reply)
	assert.Equal(t, 3, sent.Turns)

	got := decode[SessionResponse](t, f.do(t, http.MethodGet, "/sessions/"+created.ID, nil))
	assert.Len(t, got.Transcript, 3)
	assert.Equal(t, 1, got.Exchanges)

	rec = f.do(t, http.MethodDelete, "/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = f.do(t, http.MethodGet, "/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessions_List(t *testing.T) {
	f := newFixture(t, "")

	list := decode[SessionListResponse](t, f.do(t, http.MethodGet, "/sessions", nil))
	assert.Empty(t, list.Sessions)

	a := f.createSession(t)
	b := f.createSession(t)
	list = decode[SessionListResponse](t, f.do(t, http.MethodGet, "/sessions", nil))
	assert.ElementsMatch(t, []string{a.ID, b.ID}, list.Sessions)
}

func TestSessions_CreateErrors(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodPost, "/sessions", CreateSessionRequest{Persona: "Nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/sessions", CreateSessionRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessions_EmptyMessage(t *testing.T) {
	f := newFixture(t, "")
	created := f.createSession(t)

	rec := f.do(t, http.MethodPost, "/sessions/"+created.ID+"/messages", SendMessageRequest{Content: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	got := decode[SessionResponse](t, f.do(t, http.MethodGet, "/sessions/"+created.ID, nil))
	assert.Len(t, got.Transcript, 1)
}

func TestSessions_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unavailable", fmt.Errorf("%w: connection refused", model.ErrServiceUnavailable), http.StatusServiceUnavailable},
		{"bad response", fmt.Errorf("%w: no message", model.ErrServiceResponse), http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, "")
			f.model.err = tc.err
			created := f.createSession(t)

			rec := f.do(t, http.MethodPost, "/sessions/"+created.ID+"/messages", SendMessageRequest{Content: "hi"})
			assert.Equal(t, tc.status, rec.Code)

			got := decode[SessionResponse](t, f.do(t, http.MethodGet, "/sessions/"+created.ID, nil))
			assert.Len(t, got.Transcript, 2)
			assert.Equal(t, "ready", got.State)
			assert.NotEmpty(t, got.LastError)
		})
	}
}

func TestSessions_ConcurrentSendConflict(t *testing.T) {
	f := newFixture(t, "")
	f.model.gate = make(chan struct{})
	created := f.createSession(t)

	done := make(chan int, 1)
	go func() {
		rec := f.do(t, http.MethodPost, "/sessions/"+created.ID+"/messages", SendMessageRequest{Content: "first"})
		done <- rec.Code
	}()

	require.Eventually(t, func() bool {
		got := decode[SessionResponse](t, f.do(t, http.MethodGet, "/sessions/"+created.ID, nil))
		return got.State == "awaiting_reply"
	}, 2*time.Second, 5*time.Millisecond)

	rec := f.do(t, http.MethodPost, "/sessions/"+created.ID+"/messages", SendMessageRequest{Content: "second"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(f.model.gate)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestSessions_Reset(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.store.Save(persona.Persona{Name: "Ember", Description: "Grumpy dragon."}))
	created := f.createSession(t)
	f.do(t, http.MethodPost, "/sessions/"+created.ID+"/messages", SendMessageRequest{Content: "hi"})

	rec := f.do(t, http.MethodPost, "/sessions/"+created.ID+"/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reset := decode[SessionResponse](t, rec)
	assert.Len(t, reset.Transcript, 1)
	assert.Equal(t, "Nova", reset.Persona)
	assert.NotEqual(t, created.ID, reset.ID)

	rec = f.do(t, http.MethodPost, "/sessions/"+reset.ID+"/reset", CreateSessionRequest{Persona: "Ember"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ember", decode[SessionResponse](t, rec).Persona)

	rec = f.do(t, http.MethodPost, "/sessions/"+created.ID+"/reset", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestAuth(t *testing.T) {
	f := newFixture(t, "s3cret")

	rec := f.do(t, http.MethodGet, "/personas", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/personas", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/personas", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rr = httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestValidateBearerToken(t *testing.T) {
	assert.True(t, ValidateBearerToken("abc", "abc"))
	assert.False(t, ValidateBearerToken("abc", "abd"))
	assert.False(t, ValidateBearerToken("", ""))
}

func TestRecoveryMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := newTestLogger(&logs)
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, logs.String(), "http.panic")
}

func TestLoggingMiddleware(t *testing.T) {
	var logs bytes.Buffer
	handler := LoggingMiddleware(newTestLogger(&logs))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))
	out := logs.String()
	assert.Contains(t, out, "http.request")
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "path=/brew")
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture(t, "")
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/nope", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodPatch, "/personas", nil).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{session.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", persona.ErrInvalidPersona), http.StatusBadRequest},
		{storage.ErrNotFound, http.StatusNotFound},
		{session.ErrSessionNotFound, http.StatusNotFound},
		{session.ErrNotReady, http.StatusConflict},
		{storage.ErrExists, http.StatusConflict},
		{session.ErrTooManySessions, http.StatusTooManyRequests},
		{&session.SendError{Err: model.ErrServiceUnavailable}, http.StatusServiceUnavailable},
		{&session.SendError{Err: model.ErrServiceResponse}, http.StatusBadGateway},
		{&storage.CorruptRecordError{Key: "x", Err: persona.ErrInvalidPersona}, http.StatusInternalServerError},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestServe_Shutdown(t *testing.T) {
	f := newFixture(t, "")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
