package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/caseflow-io/caseflow/pkg/domain"
)

// IdempotencyStore implements ports.IdempotencyStore in memory. The
// create-if-absent check and the final-record guard both run under a
// single mutex, matching the atomicity the refund guard requires.
type IdempotencyStore struct {
	records map[string]*domain.IdempotencyRecord
	mu      sync.Mutex
}

// NewIdempotencyStore creates a new in-memory idempotency store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		records: make(map[string]*domain.IdempotencyRecord),
	}
}

// Get returns the record for a key.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	copied := *record
	return &copied, nil
}

// Create stores a provisional record if and only if the key is absent.
func (s *IdempotencyStore) Create(ctx context.Context, record *domain.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.Key]; ok {
		return domain.ErrRecordExists
	}
	copied := *record
	s.records[record.Key] = &copied
	return nil
}

// Update transitions an existing record. Final records are immutable.
func (s *IdempotencyStore) Update(ctx context.Context, record *domain.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[record.Key]
	if !ok {
		return domain.ErrRecordNotFound
	}
	if existing.Final() {
		return fmt.Errorf("cannot update final idempotency record %s (status %s)", record.Key, existing.Status)
	}
	copied := *record
	s.records[record.Key] = &copied
	return nil
}

// Remove deletes a provisional record. Removing a final record is
// refused: a recorded outcome must survive retries.
func (s *IdempotencyStore) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[key]; ok && existing.Final() {
		return fmt.Errorf("cannot remove final idempotency record %s", key)
	}
	delete(s.records, key)
	return nil
}
