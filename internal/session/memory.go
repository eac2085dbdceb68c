package session

import (
	"context"
	"sync"
)

// MemoryStore is a Store kept entirely in memory, for tests and development.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Session
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Session)}
}

// Get returns the stored session or a default one for unknown users.
func (s *MemoryStore) Get(_ context.Context, userID string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.data[userID]; ok {
		return sess, nil
	}
	return Default(), nil
}

// Put stores the session.
func (s *MemoryStore) Put(_ context.Context, userID string, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[userID] = sess
	return nil
}

// All returns a copy of every stored session.
func (s *MemoryStore) All(_ context.Context) (map[string]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Session, len(s.data))
	for id, sess := range s.data {
		out[id] = sess
	}
	return out, nil
}

// Replace swaps the entire store contents.
func (s *MemoryStore) Replace(_ context.Context, sessions map[string]Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]Session, len(sessions))
	for id, sess := range sessions {
		s.data[id] = sess
	}
	return nil
}
