package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caseflow-io/caseflow/pkg/domain"
)

// Store implements ports.StateStore on the local filesystem, one JSON
// file per conversation. Good enough for single-host durability; use
// the redis adapter for anything shared.
type Store struct {
	BasePath string
}

// New creates a new Store rooted at basePath.
// If basePath is empty, it defaults to ".caseflow/conversations".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".caseflow", "conversations")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(conversationID string) string {
	return filepath.Join(s.BasePath, conversationID+".json")
}

// Save persists the state atomically: write to a temp file in the same
// directory, fsync, then rename over the destination. A crash mid-save
// never leaves a partial file observable.
func (s *Store) Save(ctx context.Context, conversationID string, state *domain.Conversation) error {
	if conversationID == "" {
		return fmt.Errorf("conversationID cannot be empty")
	}

	if err := os.MkdirAll(s.BasePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure conversation directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.BasePath, "tmp-"+conversationID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path(conversationID)); err != nil {
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}
	return nil
}

// Load retrieves the conversation from its JSON file.
func (s *Store) Load(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("conversationID cannot be empty")
	}

	data, err := os.ReadFile(s.path(conversationID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var state domain.Conversation
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &state, nil
}

// Delete removes the conversation file.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		return fmt.Errorf("conversationID cannot be empty")
	}

	if err := os.Remove(s.path(conversationID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete conversation file: %w", err)
	}
	return nil
}

// List returns all stored conversation IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, "tmp-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
