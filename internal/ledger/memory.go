package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mpcoop/portal/internal/auth"
)

// MemoryStore guarda registros em memória. Serve para testes e para rodar um
// único processo sem Redis/Postgres; não sobrevive a reinícios.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore cria store vazio.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Put grava registro novo.
func (s *MemoryStore) Put(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("ledger: registro %s já existe", rec.ID)
	}
	s.records[rec.ID] = rec
	return nil
}

// Get busca registro pelo id.
func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return Record{}, auth.ErrTokenNotFound
	}
	return rec, nil
}

// Invalidate troca valid para false sob o mutex.
func (s *MemoryStore) Invalidate(ctx context.Context, id, ownerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return false, auth.ErrTokenNotFound
	}
	if rec.OwnerID != ownerID {
		return false, auth.ErrOwnerMismatch
	}
	if !rec.Valid {
		return false, nil
	}
	rec.Valid = false
	s.records[id] = rec
	return true, nil
}

// PurgeExpired remove registros vencidos antes de before.
func (s *MemoryStore) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, rec := range s.records {
		if rec.ExpiresAt.Before(before) {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}
