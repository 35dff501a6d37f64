/*
Package domain contains the core entities of the caseflow engine.

The central entity is the Conversation: a versioned record of one
customer interaction, owned by the store between turns and handed to
exactly one executing node at a time. Alongside it live the
InterruptToken (a durable suspension point awaiting human input) and the
IdempotencyRecord (the outcome of a side effect that must never run
twice).

Types here are transport-agnostic and carry no behavior beyond
invariant-preserving mutation helpers.
*/
package domain
