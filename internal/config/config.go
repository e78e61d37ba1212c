// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for persona.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/persona-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete persona configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Model service configuration
	Model ModelConfig `toml:"model" json:"model"`

	// Persona storage configuration
	Personas PersonasConfig `toml:"personas" json:"personas"`

	// Interactive shell configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Local HTTP API configuration
	Server ServerConfig `toml:"server" json:"server"`

	// Log output configuration
	Log LogConfig `toml:"log" json:"log"`
}

// ModelConfig selects and configures the model service client.
type ModelConfig struct {
	// Backend is "ollama" (native /api/chat) or "openai" (OpenAI-compatible)
	Backend string `toml:"backend" json:"backend"`

	// URL of the model endpoint. Empty means the backend's local default.
	URL string `toml:"url" json:"url"`

	// Name of the model to chat with (default: llama3.1)
	Name string `toml:"name" json:"name"`

	// APIKey is sent by the openai backend. Local servers ignore it.
	APIKey string `toml:"api_key" json:"api_key"`

	// TimeoutSecs bounds one model request (default: 120)
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// PersonasConfig selects the persona store.
type PersonasConfig struct {
	// Backend is "file" or "sqlite"
	Backend string `toml:"backend" json:"backend"`

	// Dir holds persona records for the file backend (default: ~/.persona/personas)
	Dir string `toml:"dir" json:"dir"`

	// Format of new records: "json" or "yaml"
	Format string `toml:"format" json:"format"`

	// DBPath for the sqlite backend (default: ~/.persona/personas.db)
	DBPath string `toml:"db_path" json:"db_path"`

	// Default persona started by chat and tui when none is given
	Default string `toml:"default" json:"default"`
}

// UIConfig contains shell settings.
type UIConfig struct {
	// Markdown renders replies with glamour
	Markdown bool `toml:"markdown" json:"markdown"`

	// Theme is "dark", "light" or "auto"
	Theme string `toml:"theme" json:"theme"`

	// ExitWords end the chat REPL
	ExitWords []string `toml:"exit_words" json:"exit_words"`
}

// ServerConfig configures "persona serve".
type ServerConfig struct {
	Addr            string `toml:"addr" json:"addr"`
	SessionIdleMins int    `toml:"session_idle_mins" json:"session_idle_mins"`
	MaxSessions     int    `toml:"max_sessions" json:"max_sessions"`

	// Token, when set, is required as "Authorization: Bearer <token>"
	Token string `toml:"token" json:"token"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	// Level is debug, info, warn or error
	Level string `toml:"level" json:"level"`

	// File receives log output (default: ~/.persona/persona.log)
	File string `toml:"file" json:"file"`
}

// Backend names.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"

	StoreFile   = "file"
	StoreSQLite = "sqlite"
)

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1.0.0",

		Model: ModelConfig{
			Backend:     BackendOllama,
			Name:        "llama3.1",
			TimeoutSecs: 120,
		},

		Personas: PersonasConfig{
			Backend: StoreFile,
			Format:  "json",
		},

		UI: UIConfig{
			Markdown:  true,
			Theme:     "dark",
			ExitWords: []string{"exit", "quit", "bye"},
		},

		Server: ServerConfig{
			Addr:            "127.0.0.1:8765",
			SessionIdleMins: 30,
			MaxSessions:     64,
		},

		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the persona configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".persona"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ExpandPath resolves a leading "~" against the home directory.
func ExpandPath(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, path[1:]), nil
}

// inConfigDir returns path expanded, or name inside ConfigDir when path is empty.
func inConfigDir(path, name string) (string, error) {
	if path != "" {
		return ExpandPath(path)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// PersonaDir returns the directory of the file persona store.
func (c *Config) PersonaDir() (string, error) {
	return inConfigDir(c.Personas.Dir, "personas")
}

// PersonaDBPath returns the database path of the sqlite persona store.
func (c *Config) PersonaDBPath() (string, error) {
	return inConfigDir(c.Personas.DBPath, "personas.db")
}

// LogFile returns the log file path.
func (c *Config) LogFile() (string, error) {
	return inConfigDir(c.Log.File, "persona.log")
}

// Timeout returns the model request timeout.
func (m ModelConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSecs) * time.Second
}

// SessionIdle returns how long an API session may sit unused.
func (s ServerConfig) SessionIdle() time.Duration {
	return time.Duration(s.SessionIdleMins) * time.Minute
}

// IsExitWord reports whether input ends the chat REPL.
func (u UIConfig) IsExitWord(input string) bool {
	input = strings.ToLower(strings.TrimSpace(input))
	for _, w := range u.ExitWords {
		if input == strings.ToLower(w) {
			return true
		}
	}
	return false
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML loads configuration from a TOML file over cfg.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return fillDefaults(cfg)
}

// LoadJSON loads configuration from a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return fillDefaults(cfg)
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		// Default to TOML
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Config) error {
	defaults := Default()

	if cfg.Version == "" {
		cfg.Version = defaults.Version
	}

	// Model
	if cfg.Model.Backend == "" {
		cfg.Model.Backend = defaults.Model.Backend
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = defaults.Model.Name
	}
	if cfg.Model.TimeoutSecs == 0 {
		cfg.Model.TimeoutSecs = defaults.Model.TimeoutSecs
	}

	// Personas
	if cfg.Personas.Backend == "" {
		cfg.Personas.Backend = defaults.Personas.Backend
	}
	if cfg.Personas.Format == "" {
		cfg.Personas.Format = defaults.Personas.Format
	}

	// UI
	if cfg.UI.Theme == "" {
		cfg.UI.Theme = defaults.UI.Theme
	}
	if len(cfg.UI.ExitWords) == 0 {
		cfg.UI.ExitWords = defaults.UI.ExitWords
	}

	// Server
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaults.Server.Addr
	}
	if cfg.Server.SessionIdleMins == 0 {
		cfg.Server.SessionIdleMins = defaults.Server.SessionIdleMins
	}
	if cfg.Server.MaxSessions == 0 {
		cfg.Server.MaxSessions = defaults.Server.MaxSessions
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}

	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML atomically writes the configuration to a TOML file with 0600
// permissions, since it may hold an API key or server token.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer

	// Write header comment
	fmt.Fprintln(&buf, "# persona configuration file")
	fmt.Fprintln(&buf, "# Generated by persona - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON atomically writes the configuration to a JSON file.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch c.Model.Backend {
	case BackendOllama, BackendOpenAI:
	default:
		add("model.backend", "must be %q or %q, got %q", BackendOllama, BackendOpenAI, c.Model.Backend)
	}
	if strings.TrimSpace(c.Model.Name) == "" {
		add("model.name", "must not be empty")
	}
	if c.Model.URL != "" {
		if err := validateURL(c.Model.URL); err != nil {
			add("model.url", "%v", err)
		}
	}
	if c.Model.TimeoutSecs < 0 || c.Model.TimeoutSecs > 3600 {
		add("model.timeout_secs", "must be between 0 and 3600, got %d", c.Model.TimeoutSecs)
	}

	switch c.Personas.Backend {
	case StoreFile, StoreSQLite:
	default:
		add("personas.backend", "must be %q or %q, got %q", StoreFile, StoreSQLite, c.Personas.Backend)
	}
	switch strings.ToLower(c.Personas.Format) {
	case "json", "yaml", "yml":
	default:
		add("personas.format", "must be json or yaml, got %q", c.Personas.Format)
	}

	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		add("ui.theme", "must be dark, light or auto, got %q", c.UI.Theme)
	}
	for i, w := range c.UI.ExitWords {
		if strings.TrimSpace(w) == "" {
			add(fmt.Sprintf("ui.exit_words[%d]", i), "must not be blank")
		}
	}

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		add("server.addr", "must be host:port: %v", err)
	}
	if c.Server.SessionIdleMins < 0 {
		add("server.session_idle_mins", "must not be negative")
	}
	if c.Server.MaxSessions < 0 {
		add("server.max_sessions", "must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		add("log.level", "must be debug, info, warn or error, got %q", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// validateURL accepts URLs with or without a scheme, as OLLAMA_HOST allows.
func validateURL(raw string) error {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PERSONA_MODEL: overrides model.name
//   - PERSONA_BACKEND: overrides model.backend
//   - PERSONA_MODEL_URL: overrides model.url
//   - OLLAMA_HOST: overrides model.url for the ollama backend when
//     PERSONA_MODEL_URL is unset
//   - PERSONA_API_KEY: overrides model.api_key
//   - PERSONA_DIR: overrides personas.dir
//   - PERSONA_SERVER_TOKEN: overrides server.token
//   - PERSONA_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if model := os.Getenv("PERSONA_MODEL"); model != "" {
		c.Model.Name = model
	}
	if backend := os.Getenv("PERSONA_BACKEND"); backend != "" {
		c.Model.Backend = strings.ToLower(backend)
	}
	if u := os.Getenv("PERSONA_MODEL_URL"); u != "" {
		c.Model.URL = u
	} else if host := os.Getenv("OLLAMA_HOST"); host != "" && c.Model.Backend == BackendOllama {
		c.Model.URL = host
	}
	if key := os.Getenv("PERSONA_API_KEY"); key != "" {
		c.Model.APIKey = key
	}
	if dir := os.Getenv("PERSONA_DIR"); dir != "" {
		c.Personas.Dir = dir
	}
	if token := os.Getenv("PERSONA_SERVER_TOKEN"); token != "" {
		c.Server.Token = token
	}
	if level := os.Getenv("PERSONA_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "model.name").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "model.name").
// The result is not validated; call Validate before saving.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(strVal, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("cannot assign nil")
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"model.backend",
		"model.url",
		"model.name",
		"model.api_key",
		"model.timeout_secs",
		"personas.backend",
		"personas.dir",
		"personas.format",
		"personas.db_path",
		"personas.default",
		"ui.markdown",
		"ui.theme",
		"ui.exit_words",
		"server.addr",
		"server.session_idle_mins",
		"server.max_sessions",
		"server.token",
		"log.level",
		"log.file",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	if c.UI.ExitWords != nil {
		clone.UI.ExitWords = append([]string(nil), c.UI.ExitWords...)
	}
	return &clone
}

// String returns a TOML rendering of the config with the API key redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.Model.APIKey != "" {
		safe.Model.APIKey = "[REDACTED]"
	}
	if safe.Server.Token != "" {
		safe.Server.Token = "[REDACTED]"
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(safe); err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return buf.String()
}
