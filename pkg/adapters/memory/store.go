package memory

import (
	"context"
	"sync"

	"github.com/caseflow-io/caseflow/pkg/domain"
)

// Store implements ports.StateStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Conversation
	mu   sync.RWMutex
}

// NewStore creates a new in-memory conversation store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Conversation),
	}
}

// Save persists the state in memory. The state is cloned so later
// mutation by the caller cannot reach into the store.
func (s *Store) Save(ctx context.Context, conversationID string, state *domain.Conversation) error {
	copied := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[conversationID] = copied
	return nil
}

// Load retrieves the state from memory as a copy-on-read.
func (s *Store) Load(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return state.Clone(), nil
}

// Delete removes the conversation.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, conversationID)
	return nil
}

// List returns stored conversation IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}
