package memory_test

import (
	"testing"

	"github.com/caseflow-io/caseflow/pkg/adapters/memory"
	"github.com/caseflow-io/caseflow/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunStateStoreContract(t, memory.NewStore())
}

func TestMemoryIdempotencyStore_Contract(t *testing.T) {
	ports.RunIdempotencyStoreContract(t, memory.NewIdempotencyStore())
}
