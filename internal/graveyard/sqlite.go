package graveyard

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var _ Store = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS graves (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    graveyard    TEXT    NOT NULL,
    id           TEXT    NOT NULL,
    timestamp    INTEGER NOT NULL,
    source_lang  TEXT    NOT NULL,
    target_lang  TEXT    NOT NULL,
    mode         TEXT    NOT NULL,
    source_code  TEXT    NOT NULL,
    result_code  TEXT    NOT NULL,
    preview      TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_graves_graveyard ON graves (graveyard, timestamp DESC);`

// SQLiteStore keeps graves in a SQLite database through the pure-Go
// modernc.org/sqlite driver.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures its schema. An empty path opens a private in-memory database.
func NewSQLiteStore(ctx context.Context, path, key string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite graveyard: create dir: %w", err)
		}
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite graveyard: open: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps an in-memory
	// database alive for the life of the store.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite graveyard: migrate: %w", err)
	}
	return &SQLiteStore{db: db, key: key}, nil
}

// Append implements [Store].
func (s *SQLiteStore) Append(ctx context.Context, g Grave) error {
	const q = `
		INSERT INTO graves
		    (graveyard, id, timestamp, source_lang, target_lang, mode, source_code, result_code, preview)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		s.key, g.ID, g.Timestamp, g.SourceLang, g.TargetLang, string(g.Mode),
		g.SourceCode, g.ResultCode, g.Preview,
	)
	if err != nil {
		return fmt.Errorf("sqlite graveyard: append: %w", err)
	}
	return nil
}

// LoadAll implements [Store].
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]Grave, error) {
	const q = `
		SELECT id, timestamp, source_lang, target_lang, mode, source_code, result_code, preview
		FROM   graves
		WHERE  graveyard = ?
		ORDER  BY timestamp DESC, seq DESC`

	rows, err := s.db.QueryContext(ctx, q, s.key)
	if err != nil {
		return nil, fmt.Errorf("sqlite graveyard: load: %w", err)
	}
	defer rows.Close()

	var graves []Grave
	for rows.Next() {
		var g Grave
		if err := rows.Scan(&g.ID, &g.Timestamp, &g.SourceLang, &g.TargetLang, &g.Mode,
			&g.SourceCode, &g.ResultCode, &g.Preview); err != nil {
			return nil, fmt.Errorf("sqlite graveyard: scan: %w", err)
		}
		graves = append(graves, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite graveyard: load: %w", err)
	}
	return graves, nil
}

// Clear implements [Store].
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM graves WHERE graveyard = ?`, s.key); err != nil {
		return fmt.Errorf("sqlite graveyard: clear: %w", err)
	}
	return nil
}

// Close implements [Store].
func (s *SQLiteStore) Close() error { return s.db.Close() }
