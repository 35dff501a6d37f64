package ports

import (
	"context"

	"github.com/caseflow-io/caseflow/pkg/domain"
)

// StateStore defines the interface for persisting conversation state.
// Save is atomic per conversation ID: concurrent saves for the same ID
// are serialized by the session manager's lock, and no partial write is
// ever observable.
type StateStore interface {
	// Save persists the state for a conversation ID.
	Save(ctx context.Context, conversationID string, state *domain.Conversation) error

	// Load retrieves the state for a conversation ID.
	// Returns domain.ErrConversationNotFound if it does not exist.
	Load(ctx context.Context, conversationID string) (*domain.Conversation, error)

	// Delete removes the state for a conversation ID.
	Delete(ctx context.Context, conversationID string) error

	// List returns the IDs of all stored conversations.
	List(ctx context.Context) ([]string, error)
}
