/*
Package session serializes access to conversations.

The Manager guarantees mutual exclusion per conversation ID: two
concurrent inbound messages for the same conversation never interleave
their read-modify-write of state or idempotency records. Locks are
reference counted so idle conversations hold no memory, and an optional
DistributedLocker extends the guarantee across engine replicas.
*/
package session
