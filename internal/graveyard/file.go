package graveyard

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

var _ Store = (*FileStore)(nil)

// FileStore persists graves as JSON lines in a local file named after the
// graveyard key. Appends only ever add a line.
// Thread-safe for concurrent use.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a FileStore writing to <dir>/<key>.jsonl. The
// directory is created if needed; the file is created on first append.
func NewFileStore(dir, key string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("graveyard: create dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, key+".jsonl")}, nil
}

// Path returns the file the store writes to.
func (s *FileStore) Path() string { return s.path }

// Append implements [Store].
func (s *FileStore) Append(_ context.Context, g Grave) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("graveyard: marshal: %w", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("graveyard: open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("graveyard: write: %w", err)
	}
	return nil
}

// LoadAll implements [Store]. Lines that fail to parse are skipped.
func (s *FileStore) LoadAll(ctx context.Context) ([]Grave, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("graveyard: open file: %w", err)
	}
	defer f.Close()

	var graves []Grave
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var g Grave
		if err := json.Unmarshal(sc.Bytes(), &g); err != nil {
			slog.WarnContext(ctx, "graveyard: skipping unreadable line", "path", s.path, "line", line, "err", err)
			continue
		}
		graves = append(graves, g)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("graveyard: read: %w", err)
	}
	slices.Reverse(graves)
	return graves, nil
}

// Clear implements [Store].
func (s *FileStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("graveyard: clear: %w", err)
	}
	return nil
}

// Close implements [Store].
func (s *FileStore) Close() error { return nil }
