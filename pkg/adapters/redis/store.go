package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/caseflow-io/caseflow/pkg/domain"
)

// Store implements ports.StateStore using Redis. Conversations are
// stored as JSON values plus a ZSET index for listing with lazy expiry
// cleanup.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the retention for conversations. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "caseflow:conversation:",
		ttl:    0,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(conversationID string) string {
	return s.prefix + conversationID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the conversation and updates the index in one pipeline.
func (s *Store) Save(ctx context.Context, conversationID string, state *domain.Conversation) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(conversationID), data, s.ttl)

	// Index score = expiry time; far-future when retention is unbounded.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  score,
		Member: conversationID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves the conversation.
func (s *Store) Load(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	val, err := s.client.Get(ctx, s.key(conversationID)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var state domain.Conversation
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &state, nil
}

// Delete removes the conversation and its index entry.
func (s *Store) Delete(ctx context.Context, conversationID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(conversationID))
	pipe.ZRem(ctx, s.indexKey(), conversationID)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns stored conversation IDs, pruning expired index entries
// lazily on the way.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())

	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired conversations: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return ids, nil
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
