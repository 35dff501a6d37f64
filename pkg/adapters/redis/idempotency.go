package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	backend "github.com/redis/go-redis/v9"

	"github.com/caseflow-io/caseflow/pkg/domain"
)

// Lua scripts keep the check-then-write transitions atomic on the
// server. A final record (succeeded/rejected) must never be overwritten
// or removed, even under concurrent retries from multiple replicas.
const (
	updateScript = `
		local cur = redis.call("get", KEYS[1])
		if not cur then
			return redis.error_reply("NOTFOUND")
		end
		local rec = cjson.decode(cur)
		if rec.status == "succeeded" or rec.status == "rejected" then
			return redis.error_reply("FINAL")
		end
		redis.call("set", KEYS[1], ARGV[1])
		return 1
	`
	removeScript = `
		local cur = redis.call("get", KEYS[1])
		if not cur then
			return 0
		end
		local rec = cjson.decode(cur)
		if rec.status == "succeeded" or rec.status == "rejected" then
			return redis.error_reply("FINAL")
		end
		return redis.call("del", KEYS[1])
	`
)

// IdempotencyStore implements ports.IdempotencyStore using Redis.
// Create relies on SET NX; transitions go through Lua so the
// final-record guard holds across replicas.
type IdempotencyStore struct {
	client *backend.Client
	prefix string
}

// NewIdempotencyStore creates a redis-backed idempotency store.
func NewIdempotencyStore(client *backend.Client, prefix string) *IdempotencyStore {
	if prefix == "" {
		prefix = "caseflow:"
	}
	return &IdempotencyStore{
		client: client,
		prefix: prefix + "idempotency:",
	}
}

func (s *IdempotencyStore) key(recordKey string) string {
	return s.prefix + recordKey
}

// Get returns the record for a key.
func (s *IdempotencyStore) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	val, err := s.client.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get idempotency record: %w", err)
	}

	var record domain.IdempotencyRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency record: %w", err)
	}
	return &record, nil
}

// Create stores a provisional record with SET NX semantics.
func (s *IdempotencyStore) Create(ctx context.Context, record *domain.IdempotencyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.key(record.Key), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create idempotency record: %w", err)
	}
	if !ok {
		return domain.ErrRecordExists
	}
	return nil
}

// Update transitions a non-final record.
func (s *IdempotencyStore) Update(ctx context.Context, record *domain.IdempotencyRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}

	if err := s.client.Eval(ctx, updateScript, []string{s.key(record.Key)}, string(data)).Err(); err != nil {
		switch {
		case errContains(err, "NOTFOUND"):
			return domain.ErrRecordNotFound
		case errContains(err, "FINAL"):
			return fmt.Errorf("cannot update final idempotency record %s", record.Key)
		default:
			return fmt.Errorf("failed to update idempotency record: %w", err)
		}
	}
	return nil
}

// Remove deletes a provisional record.
func (s *IdempotencyStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Eval(ctx, removeScript, []string{s.key(key)}).Err(); err != nil {
		if errContains(err, "FINAL") {
			return fmt.Errorf("cannot remove final idempotency record %s", key)
		}
		return fmt.Errorf("failed to remove idempotency record: %w", err)
	}
	return nil
}

func errContains(err error, marker string) bool {
	return err != nil && strings.Contains(err.Error(), marker)
}
