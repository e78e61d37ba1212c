// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestNewTheme_Names(t *testing.T) {
	defer lipgloss.SetHasDarkBackground(lipgloss.HasDarkBackground())

	dark := NewTheme("Dark")
	assert.Equal(t, ThemeDark, dark.Name)
	assert.True(t, dark.IsDark)
	assert.Equal(t, "dark", dark.GlamourStyle())

	light := NewTheme(" light ")
	assert.Equal(t, ThemeLight, light.Name)
	assert.False(t, light.IsDark)
	assert.Equal(t, "light", light.GlamourStyle())

	assert.Equal(t, ThemeAuto, NewTheme("neon").Name)
}

func TestTheme_ContentWidth(t *testing.T) {
	theme := NewTheme(ThemeAuto)
	assert.Equal(t, 20, theme.ContentWidth())

	theme.SetSize(100, 40)
	assert.Equal(t, 96, theme.ContentWidth())
	assert.Equal(t, 40, theme.Height)
}

func TestRenderHelpers_CarryIndicators(t *testing.T) {
	assert.Contains(t, RenderError("boom"), "[X] boom")
	assert.Contains(t, RenderSuccess("saved"), "[OK] saved")
	assert.Contains(t, RenderWarning("slow"), "[!] slow")
	assert.Contains(t, RenderInfo("hint"), "[i] hint")
}
