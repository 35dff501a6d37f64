package redis_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"

	"github.com/caseflow-io/caseflow/pkg/adapters/redis"
	"github.com/caseflow-io/caseflow/pkg/ports"
)

func newTestClient(t *testing.T) *backend.Client {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	return backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
}

func TestRedisStore_Contract(t *testing.T) {
	store := redis.NewFromClient(newTestClient(t))
	ports.RunStateStoreContract(t, store)
}

func TestRedisIdempotencyStore_Contract(t *testing.T) {
	store := redis.NewIdempotencyStore(newTestClient(t), "test:")
	ports.RunIdempotencyStoreContract(t, store)
}
