// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"system", RoleSystem, false},
		{"user", RoleUser, false},
		{"assistant", RoleAssistant, false},
		{"tool", "", true},
		{"", "", true},
		{"User", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseRole(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTurn_UnmarshalJSON(t *testing.T) {
	var turns []Turn
	require.NoError(t, json.Unmarshal([]byte(`[{"role":"system","content":"s"},{"role":"user","content":"hi"}]`), &turns))
	assert.Equal(t, []Turn{SystemTurn("s"), UserTurn("hi")}, turns)

	var turn Turn
	err := json.Unmarshal([]byte(`{"role":"tool","content":"x"}`), &turn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid role "tool"`)

	assert.Error(t, json.Unmarshal([]byte(`{"content":"no role"}`), &turn))
}

func TestRole_DisplayName(t *testing.T) {
	assert.Equal(t, "You", RoleUser.DisplayName())
	assert.Equal(t, "Assistant", RoleAssistant.DisplayName())
	assert.Equal(t, "System", RoleSystem.DisplayName())
	assert.Equal(t, "other", Role("other").DisplayName())
}

// =============================================================================
// TURN TESTS
// =============================================================================

func TestTurnConstructors(t *testing.T) {
	assert.Equal(t, Turn{Role: RoleSystem, Content: "s"}, SystemTurn("s"))
	assert.Equal(t, Turn{Role: RoleUser, Content: "u"}, UserTurn("u"))
	assert.Equal(t, Turn{Role: RoleAssistant, Content: "a"}, AssistantTurn("a"))
}

func TestTurn_Preview(t *testing.T) {
	turn := UserTurn("こんにちは世界、元気ですか")
	assert.Equal(t, "こんにちは...", turn.Preview(8))
	assert.Equal(t, turn.Content, turn.Preview(100))
}

func TestCloneTurns_Independent(t *testing.T) {
	orig := []Turn{SystemTurn("a"), UserTurn("b")}
	clone := CloneTurns(orig)
	clone[1].Content = "changed"

	assert.Equal(t, "b", orig[1].Content)
	assert.Nil(t, CloneTurns(nil))
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestIsServiceError(t *testing.T) {
	assert.True(t, IsServiceError(ErrServiceUnavailable))
	assert.True(t, IsServiceError(fmt.Errorf("wrapped: %w", ErrServiceResponse)))
	assert.False(t, IsServiceError(errors.New("other")))
	assert.False(t, IsServiceError(nil))
}
