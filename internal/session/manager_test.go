// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, 64, cfg.MaxSessions)
}

func TestManager_CreateGetRemove(t *testing.T) {
	m := NewManager(DefaultConfig())

	s, err := m.Create(nova, &stubCompleter{reply: "x"})
	require.NoError(t, err)
	assert.Equal(t, StateReady, s.State())
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Remove(s.ID()))
	_, err = m.Get(s.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, m.Remove(s.ID()), ErrSessionNotFound)
}

func TestManager_Reset(t *testing.T) {
	m := NewManager(DefaultConfig())
	s, err := m.Create(nova, &stubCompleter{reply: "x"})
	require.NoError(t, err)
	oldID := s.ID()
	_, err = s.Send(context.Background(), "hi")
	require.NoError(t, err)

	reset, err := m.Reset(oldID, nova)
	require.NoError(t, err)
	assert.Len(t, reset.Transcript(), 1)
	assert.NotEqual(t, oldID, reset.ID())

	_, err = m.Get(oldID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Get(reset.ID())
	assert.NoError(t, err)

	_, err = m.Reset("missing", nova)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_MaxSessions(t *testing.T) {
	m := NewManager(Config{MaxSessions: 2, IdleTimeout: time.Hour})

	for i := 0; i < 2; i++ {
		_, err := m.Create(nova, &stubCompleter{reply: "x"})
		require.NoError(t, err)
	}
	_, err := m.Create(nova, &stubCompleter{reply: "x"})
	assert.ErrorIs(t, err, ErrTooManySessions)
}

func TestManager_SweepExpired(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager(Config{
		IdleTimeout: 10 * time.Millisecond,
		Logger:      slog.New(slog.NewTextHandler(&buf, nil)),
	})

	s, err := m.Create(nova, &stubCompleter{reply: "x"})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	assert.True(t, m.IsExpired(s))
	assert.Equal(t, 1, m.Sweep())
	assert.Zero(t, m.Len())

	assert.Contains(t, buf.String(), "session.expired session="+s.ID())
}

func TestManager_PendingNeverExpires(t *testing.T) {
	m := NewManager(Config{IdleTimeout: 10 * time.Millisecond})
	blocker := newBlockingCompleter("x")
	s, err := m.Create(nova, blocker)
	require.NoError(t, err)

	go func() { _, _ = s.Send(context.Background(), "hi") }()
	waitEntered(t, blocker)
	defer close(blocker.release)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, m.IsExpired(s))
	assert.Zero(t, m.Sweep())
}

func TestManager_FullSweepsBeforeRejecting(t *testing.T) {
	m := NewManager(Config{MaxSessions: 1, IdleTimeout: 10 * time.Millisecond})
	_, err := m.Create(nova, &stubCompleter{reply: "x"})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, err = m.Create(nova, &stubCompleter{reply: "x"})
	assert.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}

func TestManager_Run(t *testing.T) {
	m := NewManager(Config{IdleTimeout: 5 * time.Millisecond})
	_, err := m.Create(nova, &stubCompleter{reply: "x"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestManager_IDsSorted(t *testing.T) {
	m := NewManager(DefaultConfig())
	for i := 0; i < 3; i++ {
		_, err := m.Create(nova, &stubCompleter{reply: "x"})
		require.NoError(t, err)
	}
	ids := m.IDs()
	require.Len(t, ids, 3)
	assert.IsNonDecreasing(t, ids)
}
