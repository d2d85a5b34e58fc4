package graveyard

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/necromancer/internal/ritual"
)

var _ Store = (*PostgresStore)(nil)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS graves (
    seq          BIGSERIAL PRIMARY KEY,
    graveyard    TEXT      NOT NULL,
    id           TEXT      NOT NULL,
    timestamp    BIGINT    NOT NULL,
    source_lang  TEXT      NOT NULL,
    target_lang  TEXT      NOT NULL,
    mode         TEXT      NOT NULL,
    source_code  TEXT      NOT NULL,
    result_code  TEXT      NOT NULL,
    preview      TEXT      NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_graves_graveyard ON graves (graveyard, timestamp DESC);`

// PostgresStore keeps graves in PostgreSQL through a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	key  string
}

// NewPostgresStore connects to the database at dsn and runs the idempotent
// schema migration.
func NewPostgresStore(ctx context.Context, dsn, key string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres graveyard: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres graveyard: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres graveyard: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres graveyard: migrate: %w", err)
	}
	return &PostgresStore{pool: pool, key: key}, nil
}

// Append implements [Store].
func (s *PostgresStore) Append(ctx context.Context, g Grave) error {
	const q = `
		INSERT INTO graves
		    (graveyard, id, timestamp, source_lang, target_lang, mode, source_code, result_code, preview)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, q,
		s.key, g.ID, g.Timestamp, g.SourceLang, g.TargetLang, string(g.Mode),
		g.SourceCode, g.ResultCode, g.Preview,
	)
	if err != nil {
		return fmt.Errorf("postgres graveyard: append: %w", err)
	}
	return nil
}

// LoadAll implements [Store].
func (s *PostgresStore) LoadAll(ctx context.Context) ([]Grave, error) {
	const q = `
		SELECT id, timestamp, source_lang, target_lang, mode, source_code, result_code, preview
		FROM   graves
		WHERE  graveyard = $1
		ORDER  BY timestamp DESC, seq DESC`

	rows, err := s.pool.Query(ctx, q, s.key)
	if err != nil {
		return nil, fmt.Errorf("postgres graveyard: load: %w", err)
	}
	graves, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Grave, error) {
		var g Grave
		var mode string
		err := row.Scan(&g.ID, &g.Timestamp, &g.SourceLang, &g.TargetLang, &mode,
			&g.SourceCode, &g.ResultCode, &g.Preview)
		g.Mode = ritual.Mode(mode)
		return g, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres graveyard: scan: %w", err)
	}
	return graves, nil
}

// Clear implements [Store].
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM graves WHERE graveyard = $1`, s.key); err != nil {
		return fmt.Errorf("postgres graveyard: clear: %w", err)
	}
	return nil
}

// Close implements [Store].
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
