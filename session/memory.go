package session

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and single-node development.
// Production deployments use the SQL-backed store so session rows share a
// transaction with account creation.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Record)}
}

// Insert implements Store.
func (s *MemoryStore) Insert(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[rec.Token] = *rec
	return nil
}

// FindByToken implements Store.
func (s *MemoryStore) FindByToken(_ context.Context, tok string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rows[tok]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec
	return &out, nil
}

// DeleteByToken implements Store.
func (s *MemoryStore) DeleteByToken(_ context.Context, tok string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, tok)
	return nil
}

// DeleteByUser implements Store.
func (s *MemoryStore) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, rec := range s.rows {
		if rec.UserID == userID {
			delete(s.rows, tok)
		}
	}
	return nil
}

// Len reports the number of live rows. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
