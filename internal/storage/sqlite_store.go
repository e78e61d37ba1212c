// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jeranaias/persona-tui/internal/persona"
)

// SQLiteStore keeps personas in a single SQLite database (WAL mode).
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps the per-connection pragmas in effect for every query.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath, logger: logger}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS personas (
		name        TEXT PRIMARY KEY,
		description TEXT,
		user_role   TEXT NOT NULL DEFAULT '',
		reply_style TEXT NOT NULL DEFAULT '',
		avatar_path TEXT NOT NULL DEFAULT '',
		updated_at  TEXT NOT NULL
	);`)
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load retrieves the persona stored under key.
func (s *SQLiteStore) Load(key string) (persona.Persona, error) {
	key = persona.NormalizeName(key)
	row := s.db.QueryRow(
		`SELECT name, description, user_role, reply_style, avatar_path FROM personas WHERE name = ?`, key)

	p, err := scanPersona(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persona.Persona{}, ErrNotFound
	}
	if err != nil {
		return persona.Persona{}, &CorruptRecordError{Key: key, Source: "personas", Err: err}
	}
	return p, nil
}

// Save upserts p in a single statement.
func (s *SQLiteStore) Save(p persona.Persona) error {
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}

	_, err := s.db.Exec(`
	INSERT INTO personas (name, description, user_role, reply_style, avatar_path, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		description = excluded.description,
		user_role   = excluded.user_role,
		reply_style = excluded.reply_style,
		avatar_path = excluded.avatar_path,
		updated_at  = excluded.updated_at`,
		p.Name, p.Description, p.UserRole, p.ReplyStyle, p.AvatarPath,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save persona %q: %w", p.Name, err)
	}
	return nil
}

// Delete removes the record stored under key.
func (s *SQLiteStore) Delete(key string) error {
	res, err := s.db.Exec(`DELETE FROM personas WHERE name = ?`, persona.NormalizeName(key))
	if err != nil {
		return fmt.Errorf("failed to delete persona %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListKeys returns the names of all readable rows, sorted.
func (s *SQLiteStore) ListKeys() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT name, description, user_role, reply_style, avatar_path FROM personas ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			s.logger.Warn("store.skip_corrupt", "source", "personas", "error", err)
			continue
		}
		keys = append(keys, p.Name)
	}
	return keys, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPersona(row rowScanner) (persona.Persona, error) {
	var (
		name, desc                   sql.NullString
		userRole, replyStyle, avatar string
	)
	if err := row.Scan(&name, &desc, &userRole, &replyStyle, &avatar); err != nil {
		return persona.Persona{}, err
	}

	rec := record{UserRole: userRole, ReplyStyle: replyStyle, AvatarPath: avatar}
	if name.Valid {
		rec.Name = &name.String
	}
	if desc.Valid {
		rec.Description = &desc.String
	}
	return rec.toPersona("")
}
