package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"todobridge/core/logger"
)

// FileStore keeps all sessions in one flat JSON object on disk, keyed by
// user id. Every mutation rewrites the file atomically (temp file + rename),
// so a crash mid-write leaves the previous contents intact.
type FileStore struct {
	path string

	mu   sync.Mutex
	data map[string]Session
}

// OpenFileStore loads the file at path, treating a missing file as an empty
// store.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, data: make(map[string]Session)}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("session file: read %s: %w", path, err)
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("session file: parse %s: %w", path, err)
		}
	}

	logger.Debug(context.Background(), "store", "file.open",
		slog.String("status", "ok"),
		slog.String("backend", "file"),
		slog.Int("sessions", len(s.data)),
	)
	return s, nil
}

// Get returns the stored session or a default one for unknown users.
func (s *FileStore) Get(ctx context.Context, userID string) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.data[userID]; ok {
		return sess, nil
	}
	return Default(), nil
}

// Put stores the session and flushes the whole store to disk before returning.
func (s *FileStore) Put(ctx context.Context, userID string, sess Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.data[userID]
	s.data[userID] = sess
	if err := s.flushLocked(); err != nil {
		// Roll the in-memory map back so memory and disk stay consistent.
		if had {
			s.data[userID] = prev
		} else {
			delete(s.data, userID)
		}
		return err
	}
	return nil
}

// All returns a copy of every stored session.
func (s *FileStore) All(ctx context.Context) (map[string]Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Session, len(s.data))
	for id, sess := range s.data {
		out[id] = sess
	}
	return out, nil
}

// Replace swaps the entire store contents and persists them.
func (s *FileStore) Replace(ctx context.Context, sessions map[string]Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.data
	s.data = make(map[string]Session, len(sessions))
	for id, sess := range sessions {
		s.data[id] = sess
	}
	if err := s.flushLocked(); err != nil {
		s.data = prev
		return err
	}
	logger.Info(context.Background(), "store", "file.replace",
		slog.String("status", "ok"),
		slog.Int("sessions", len(s.data)),
	)
	return nil
}

func (s *FileStore) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("session file: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".sessions-*")
	if err != nil {
		return fmt.Errorf("session file: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("session file: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("session file: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("session file: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("session file: rename: %w", err)
	}
	return nil
}
