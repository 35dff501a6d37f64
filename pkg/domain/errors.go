package domain

import (
	"errors"
	"fmt"
)

// ErrConversationNotFound is returned when a conversation ID cannot be
// found in the store.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrRecordNotFound is returned when no idempotency record exists for a key.
var ErrRecordNotFound = errors.New("idempotency record not found")

// ErrRecordExists is returned by conditional creation when a record is
// already present for the key.
var ErrRecordExists = errors.New("idempotency record already exists")

// ErrNoPendingInterrupt is returned when resume input arrives for a
// conversation with no live interrupt token.
var ErrNoPendingInterrupt = errors.New("no pending interrupt")

// ErrStaleInterrupt is returned when resume input references an
// invalidated or superseded token sequence.
var ErrStaleInterrupt = errors.New("stale interrupt token")

// ErrClassifierUnavailable signals a transient classifier outage. The
// classify node treats it as low confidence and escalates.
var ErrClassifierUnavailable = errors.New("classifier unavailable")

// GraphConfigError reports a malformed graph: a referenced node that is
// not registered, or an invalid transition table. Fatal for the turn
// and an operational alarm, never a user-facing message.
type GraphConfigError struct {
	Node   NodeID
	Reason string
}

func (e *GraphConfigError) Error() string {
	return fmt.Sprintf("graph configuration error at node %q: %s", e.Node, e.Reason)
}

// StepLimitError reports an advance chain exceeding the per-turn bound,
// which indicates a cyclic misconfiguration of the graph.
type StepLimitError struct {
	ConversationID string
	Steps          int
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("conversation %s exceeded %d steps in a single turn; graph is likely cyclic", e.ConversationID, e.Steps)
}
