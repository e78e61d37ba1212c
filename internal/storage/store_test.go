// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/persona-tui/internal/persona"
)

// =============================================================================
// SHARED CONFORMANCE TESTS
// =============================================================================

var fullPersona = persona.Persona{
	Name:        "Captain Vell",
	Description: "A weary starship captain.\nSpeaks slowly.",
	UserRole:    "a new recruit",
	ReplyStyle:  "- short sentences\n- no emoji",
	AvatarPath:  "/home/user/.persona/avatars/vell.png",
}

func storeBackends(t *testing.T) map[string]func(t *testing.T) PersonaStore {
	return map[string]func(t *testing.T) PersonaStore{
		"file-json": func(t *testing.T) PersonaStore {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "personas"))
			require.NoError(t, err)
			return s
		},
		"file-yaml": func(t *testing.T) PersonaStore {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "personas"), WithFormat(FormatYAML))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) PersonaStore {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "personas.db"), nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)

			require.NoError(t, store.Save(fullPersona))

			got, err := store.Load("Captain Vell")
			require.NoError(t, err)
			assert.Equal(t, fullPersona, got)
		})
	}
}

func TestStore_SaveRejectsInvalidUTF8(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)

			err := store.Save(persona.Persona{Name: "Nova", Description: "bad\xffutf8"})
			assert.True(t, errors.Is(err, persona.ErrInvalidPersona), "got %v", err)

			_, err = store.Load("Nova")
			assert.True(t, IsNotFound(err), "got %v", err)
		})
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)

			require.NoError(t, store.Save(persona.Persona{Name: "Nova", Description: "v1", UserRole: "old"}))
			require.NoError(t, store.Save(persona.Persona{Name: "Nova", Description: "v2"}))

			got, err := store.Load("Nova")
			require.NoError(t, err)
			assert.Equal(t, "v2", got.Description)
			assert.Empty(t, got.UserRole)

			keys, err := store.ListKeys()
			require.NoError(t, err)
			assert.Equal(t, []string{"Nova"}, keys)
		})
	}
}

func TestStore_LoadMissing(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := newStore(t).Load("Nobody")
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
		})
	}
}

func TestStore_DeleteMissing(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			err := newStore(t).Delete("Nobody")
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			require.NoError(t, store.Save(persona.Persona{Name: "Nova", Description: "d"}))

			require.NoError(t, store.Delete("Nova"))

			_, err := store.Load("Nova")
			assert.True(t, IsNotFound(err))
			assert.True(t, IsNotFound(store.Delete("Nova")), "second delete must fail")
		})
	}
}

func TestStore_SaveRejectsInvalid(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			err := newStore(t).Save(persona.Persona{Name: "  ", Description: "d"})
			assert.True(t, errors.Is(err, persona.ErrInvalidPersona))
		})
	}
}

func TestStore_ListKeysSorted(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			for _, n := range []string{"Zed", "Amy", "Mia/Two", "Émile"} {
				require.NoError(t, store.Save(persona.Persona{Name: n, Description: "d"}))
			}

			keys, err := store.ListKeys()
			require.NoError(t, err)
			assert.Equal(t, []string{"Amy", "Mia/Two", "Zed", "Émile"}, keys)

			for _, k := range keys {
				_, err := store.Load(k)
				assert.NoError(t, err, "listed key %q must load", k)
			}
		})
	}
}

func TestStore_EmptyList(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			keys, err := newStore(t).ListKeys()
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestStore_Rename(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			require.NoError(t, store.Save(fullPersona))
			require.NoError(t, store.Save(persona.Persona{Name: "Taken", Description: "d"}))

			_, err := Rename(store, "Captain Vell", "Taken")
			assert.True(t, errors.Is(err, ErrExists))

			renamed, err := Rename(store, "Captain Vell", "Admiral Vell")
			require.NoError(t, err)
			assert.Equal(t, "Admiral Vell", renamed.Name)
			assert.Equal(t, fullPersona.AvatarPath, renamed.AvatarPath)

			assert.False(t, Exists(store, "Captain Vell"))
			assert.True(t, Exists(store, "Admiral Vell"))

			_, err = Rename(store, "Ghost", "Anything")
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestStore_ConcurrentSaveLoad(t *testing.T) {
	for name, newStore := range storeBackends(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			require.NoError(t, store.Save(persona.Persona{Name: "Nova", Description: "v0"}))

			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(2)
				go func(i int) {
					defer wg.Done()
					_ = store.Save(persona.Persona{Name: "Nova", Description: fmt.Sprintf("v%d", i)})
				}(i)
				go func() {
					defer wg.Done()
					p, err := store.Load("Nova")
					// Readers never observe a half-written record.
					if assert.NoError(t, err) {
						assert.Equal(t, "Nova", p.Name)
					}
				}()
			}
			wg.Wait()
		})
	}
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestCorruptRecordError(t *testing.T) {
	cause := errors.New("bad json")
	err := error(&CorruptRecordError{Key: "Nova", Source: "/x/Nova.json", Err: cause})

	assert.True(t, errors.Is(err, ErrCorruptRecord))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsCorrupt(fmt.Errorf("wrapped: %w", err)))
	assert.Contains(t, err.Error(), `"Nova"`)
	assert.Contains(t, err.Error(), "bad json")
}

func TestStoreError_Is(t *testing.T) {
	assert.True(t, errors.Is(fmt.Errorf("x: %w", ErrNotFound), ErrNotFound))
	assert.False(t, errors.Is(ErrNotFound, ErrExists))
}

// =============================================================================
// KEY ENCODING TESTS
// =============================================================================

func TestEncodeKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Nova", "Nova"},
		{"Captain Vell", "Captain Vell"},
		{"dr.who", "dr.who"},
		{".hidden", "%2Ehidden"},
		{"Dr.", "Dr%2E"},
		{"a/b", "a%2Fb"},
		{"a_b", "a_b"},
		{"C:\\x", "C%3A%5Cx"},
		{"100%", "100%25"},
		{"Am\u00e9lie", "Am%C3%A9lie"},
		{"Ame\u0301lie", "Am%C3%A9lie"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, encodeKey(tc.name), "encodeKey(%q)", tc.name)
	}

	// Distinct names never share a stem.
	assert.NotEqual(t, encodeKey("a/b"), encodeKey("a%2Fb"))
}
