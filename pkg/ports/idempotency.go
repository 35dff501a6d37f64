package ports

import (
	"context"

	"github.com/caseflow-io/caseflow/pkg/domain"
)

// IdempotencyStore records side-effect outcomes keyed by
// domain.IdempotencyKey. It is the single mechanism preventing duplicate
// execution under restarts, duplicate delivery, or operator retries, so
// Create must be atomic create-if-absent.
type IdempotencyStore interface {
	// Get returns the record for a key, or domain.ErrRecordNotFound.
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)

	// Create stores a provisional in-flight record if and only if no
	// record exists for the key. Returns domain.ErrRecordExists (and the
	// existing record untouched) otherwise.
	Create(ctx context.Context, record *domain.IdempotencyRecord) error

	// Update transitions an existing record. A record whose status is
	// final (succeeded or rejected) is never overwritten; attempting to
	// do so is an implementation error and must return an error.
	Update(ctx context.Context, record *domain.IdempotencyRecord) error

	// Remove deletes a provisional record so a future attempt can retry.
	// Final records must not be removed through this method.
	Remove(ctx context.Context, key string) error
}
