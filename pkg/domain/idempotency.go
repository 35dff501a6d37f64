package domain

import "fmt"

// ActionRefund is the action name used in refund idempotency keys.
const ActionRefund = "refund"

// IdempotencyStatus is the lifecycle of a guarded side effect.
type IdempotencyStatus string

const (
	// IdempotencyInFlight marks a provisional record: the effect is
	// being attempted. Removable on transient failure.
	IdempotencyInFlight IdempotencyStatus = "in_flight"
	// IdempotencySucceeded is final. Replays reuse the stored outcome.
	IdempotencySucceeded IdempotencyStatus = "succeeded"
	// IdempotencyRejected is final: the backend permanently refused.
	IdempotencyRejected IdempotencyStatus = "rejected"
)

// IdempotencyRecord maps a key to the outcome of a completed (or
// in-flight) side effect. A succeeded record is never overwritten.
type IdempotencyRecord struct {
	Key            string            `json:"key"`
	ConversationID string            `json:"conversation_id"`
	Action         string            `json:"action"`
	OrderID        string            `json:"order_id"`
	Status         IdempotencyStatus `json:"status"`

	// Reference is the backend's receipt on success.
	Reference string `json:"reference,omitempty"`

	// Reason explains a permanent rejection.
	Reason string `json:"reason,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Final reports whether the record can no longer change.
func (r *IdempotencyRecord) Final() bool {
	return r.Status == IdempotencySucceeded || r.Status == IdempotencyRejected
}

// IdempotencyKey builds the deterministic key for a side effect. The
// same (conversation, action, order) triple always yields the same key,
// which is what makes replays observe the prior outcome.
func IdempotencyKey(conversationID, action, orderID string) string {
	return fmt.Sprintf("%s:%s:%s", conversationID, action, orderID)
}
