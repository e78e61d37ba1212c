// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/persona-tui/internal/model"
)

// newTestClient points a client at handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})
}

func novaTranscript() []model.Turn {
	return []model.Turn{
		model.SystemTurn("You are Nova.\n\nA cheerful helper.\n\nYou must stay in character at all times."),
		model.UserTurn("Hi"),
	}
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestNewClientWithConfig_Defaults(t *testing.T) {
	c := NewClientWithConfig(&ClientConfig{})
	cfg := c.config

	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, "llama3.1", c.Model())
}

func TestNewClientWithConfig_DoesNotMutateInput(t *testing.T) {
	in := &ClientConfig{BaseURL: "localhost:11434/"}
	c := NewClientWithConfig(in)

	assert.Equal(t, "localhost:11434/", in.BaseURL)
	assert.Equal(t, "http://localhost:11434", c.BaseURL())
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", DefaultBaseURL},
		{"127.0.0.1:11434", "http://127.0.0.1:11434"},
		{"http://gpu-box:11434/", "http://gpu-box:11434"},
		{"https://ollama.example.com", "https://ollama.example.com"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, NormalizeBaseURL(tc.in), "input %q", tc.in)
	}
}

// =============================================================================
// COMPLETE TESTS
// =============================================================================

func TestComplete_SendsTranscriptAndReturnsContent(t *testing.T) {
	var got ChatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3.1","message":{"role":"assistant","content":"Hello!"},"done":true}`))
	})

	reply, err := c.Complete(context.Background(), novaTranscript())
	require.NoError(t, err)
	assert.Equal(t, "Hello!", reply)

	assert.Equal(t, "llama3.1", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "Hi", got.Messages[1].Content)
}

func TestComplete_ResponseErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"out of memory"}`},
		{"bad request without body", http.StatusBadRequest, ``},
		{"model missing", http.StatusNotFound, `{"error":"model 'llama3.1' not found"}`},
		{"not json", http.StatusOK, `<html>proxy</html>`},
		{"no message field", http.StatusOK, `{"model":"llama3.1","done":true}`},
		{"empty content", http.StatusOK, `{"message":{"role":"assistant","content":""}}`},
		{"whitespace content", http.StatusOK, `{"message":{"role":"assistant","content":"  \n"}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			reply, err := c.Complete(context.Background(), novaTranscript())
			require.Error(t, err)
			assert.Empty(t, reply)
			assert.ErrorIs(t, err, model.ErrServiceResponse)
			assert.NotErrorIs(t, err, model.ErrServiceUnavailable)
		})
	}
}

func TestComplete_ErrorMessageFromBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"out of memory"}`))
	})

	_, err := c.Complete(context.Background(), novaTranscript())
	require.Error(t, err)
	assert.Equal(t, "out of memory", err.Error())
}

func TestComplete_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url, Timeout: time.Second})
	_, err := c.Complete(context.Background(), novaTranscript())

	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrServiceUnavailable)
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.True(t, IsNotRunning(err))
	assert.False(t, model.IsServiceError(nil))
	assert.True(t, model.IsServiceError(err))
}

func TestComplete_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Complete(context.Background(), novaTranscript())

	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, model.ErrServiceUnavailable)
}

func TestComplete_ContextDeadline(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, novaTranscript())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrServiceUnavailable)
}

func TestComplete_NoRetry(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Complete(context.Background(), novaTranscript())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

// =============================================================================
// HEALTH AND MODEL TESTS
// =============================================================================

func TestCheckRunning(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/", r.URL.Path)
		_, _ = w.Write([]byte("Ollama is running"))
	})
	assert.NoError(t, c.CheckRunning(context.Background()))
}

func TestCheckRunning_BadStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	err := c.CheckRunning(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrServiceResponse)
}

func TestListModels(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.1:latest","size":4920753328},{"name":"mistral:7b","size":2048}]}`))
	})

	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "llama3.1:latest", models[0].Name)
	assert.Equal(t, "4.6 GB", models[0].FormatSize())

	ok, err := c.ModelExists(context.Background(), "llama3.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ModelExists(context.Background(), "phi3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListModels_Decode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":`))
	})

	_, err := c.ListModels(context.Background())
	require.Error(t, err)
	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrTypeInvalidResponse, ce.Type)
}

// =============================================================================
// TYPE TESTS
// =============================================================================

func TestChatResponse_TokensPerSecond(t *testing.T) {
	tests := []struct {
		name         string
		evalCount    int
		evalDuration int64
		want         float64
	}{
		{"normal", 100, int64(time.Second), 100.0},
		{"zero duration", 100, 0, 0.0},
		{"fast", 1000, int64(100 * time.Millisecond), 10000.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := &ChatResponse{EvalCount: tc.evalCount, EvalDuration: tc.evalDuration}
			assert.InDelta(t, tc.want, resp.TokensPerSecond(), tc.want*0.01)
		})
	}
}

func TestModelInfo_FormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}
	for _, tc := range tests {
		m := &ModelInfo{Size: tc.size}
		assert.Equal(t, tc.want, m.FormatSize())
	}
}

func TestFromTurns(t *testing.T) {
	msgs := FromTurns([]model.Turn{model.SystemTurn("s"), model.UserTurn("u"), model.AssistantTurn("a")})
	assert.Equal(t, []Message{
		{Role: "system", Content: "s"},
		{Role: "user", Content: "u"},
		{Role: "assistant", Content: "a"},
	}, msgs)
}

func TestClientError_Is(t *testing.T) {
	assert.ErrorIs(t, ErrTimeout, model.ErrServiceUnavailable)
	assert.ErrorIs(t, ErrNotRunning, model.ErrServiceUnavailable)
	assert.ErrorIs(t, ErrModelNotFound, model.ErrServiceResponse)
	assert.ErrorIs(t, ErrEmptyReply, model.ErrServiceResponse)
	assert.NotErrorIs(t, ErrTimeout, ErrNotRunning)

	cause := errors.New("dial tcp: connection refused")
	wrapped := &ClientError{Type: ErrTypeConnection, Message: "failed", Cause: cause}
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, "failed: dial tcp: connection refused", wrapped.Error())
}
