// Package graveyard keeps the history of past rituals. Every finished
// ritual is appended as a [Grave]; the history is read back newest first.
//
// Three backends implement [Store]: [FileStore] writes JSON lines,
// [SQLiteStore] and [PostgresStore] keep one table shared by any number of
// graveyards, each identified by its key.
package graveyard

import (
	"context"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/MrWong99/necromancer/internal/ritual"
)

// DefaultKey names the graveyard when no other key is configured.
const DefaultKey = "necromancer_graveyard"

const (
	maxSourceRunes  = 500
	previewRunes    = 50
	previewEllipsis = "..."
)

// Grave is one entry of the history log.
type Grave struct {
	ID         string      `json:"id"`
	Timestamp  int64       `json:"timestamp"`
	SourceLang string      `json:"sourceLang"`
	TargetLang string      `json:"targetLang"`
	Mode       ritual.Mode `json:"mode"`
	SourceCode string      `json:"sourceCode"`
	ResultCode string      `json:"resultCode"`
	Preview    string      `json:"preview"`
}

// Time returns the moment the grave was dug.
func (g Grave) Time() time.Time { return time.UnixMilli(g.Timestamp) }

// NewGrave records the result of req at now. The stored source is cut to
// 500 characters and the preview to the first 50 followed by "...".
func NewGrave(req ritual.Request, result string, now time.Time) Grave {
	ms := now.UnixMilli()
	return Grave{
		ID:         strconv.FormatInt(ms, 10),
		Timestamp:  ms,
		SourceLang: req.SourceLang,
		TargetLang: req.TargetLang,
		Mode:       req.Mode,
		SourceCode: truncate(req.Code, maxSourceRunes),
		ResultCode: result,
		Preview:    truncate(req.Code, previewRunes) + previewEllipsis,
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Store is the persistent history log.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Append adds g to the log.
	Append(ctx context.Context, g Grave) error

	// LoadAll returns every grave, newest first.
	LoadAll(ctx context.Context) ([]Grave, error)

	// Clear removes every grave.
	Clear(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// Backend names accepted by [Open].
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of file, sqlite or postgres. Empty means file.
	Backend string

	// Path is the directory of the file backend or the database file of the
	// sqlite backend.
	Path string

	// DSN is the postgres connection string.
	DSN string

	// Key names the graveyard. Empty means [DefaultKey].
	Key string
}

// Open returns the store described by cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	key := cfg.Key
	if key == "" {
		key = DefaultKey
	}
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case "", BackendFile:
		s, err = NewFileStore(cfg.Path, key)
	case BackendSQLite:
		s, err = NewSQLiteStore(ctx, cfg.Path, key)
	case BackendPostgres:
		s, err = NewPostgresStore(ctx, cfg.DSN, key)
	default:
		return nil, fmt.Errorf("graveyard: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
