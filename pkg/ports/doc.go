/*
Package ports defines the driven ports (interfaces) for the caseflow engine.

These interfaces decouple the core from external implementations: state
persistence, idempotency bookkeeping, distributed locking, and the two
collaborators (intent classifier and refund backend).

# Key Interfaces

  - StateStore: persists Conversation state per conversation ID.
  - IdempotencyStore: records side-effect outcomes with atomic
    create-if-absent semantics.
  - DistributedLocker: coordinates per-conversation access across replicas.
  - Classifier / RefundBackend: collaborator boundaries, specified only
    at their interface.

The exported Run*Contract helpers verify adapter implementations against
the interface semantics and are reused by every adapter's test suite.
*/
package ports
