package domain

// InterruptToken represents a durable suspension point. It is created
// when a node suspends, persisted alongside the conversation, and
// consumed exactly once when matching input resumes the graph. A token
// survives process restarts: resumption is a fresh invocation, never a
// kept-alive call stack.
type InterruptToken struct {
	ConversationID string `json:"conversation_id"`

	// Node is where execution paused and where the resume re-enters.
	Node NodeID `json:"node"`

	// Prompt describes what input is awaited.
	Prompt string `json:"prompt"`

	// Seq is the monotonically increasing token sequence for this
	// conversation. Resume input carrying a stale Seq is rejected.
	Seq uint64 `json:"seq"`

	// IssuedAt is the unix timestamp of token creation, used for expiry.
	IssuedAt int64 `json:"issued_at"`

	// Attempts counts re-prompts after unrecognized answers.
	Attempts int `json:"attempts,omitempty"`
}

// IssueInterrupt creates and attaches a new token for the conversation,
// replacing any previous one and bumping the sequence counter.
func (c *Conversation) IssueInterrupt(node NodeID, prompt string, now int64) *InterruptToken {
	c.InterruptSeq++
	tok := &InterruptToken{
		ConversationID: c.ID,
		Node:           node,
		Prompt:         prompt,
		Seq:            c.InterruptSeq,
		IssuedAt:       now,
	}
	c.Interrupt = tok
	c.Status = StatusSuspended
	return tok
}

// ResumeToken validates that the conversation can accept resume input
// and returns the live token. ErrNoPendingInterrupt if nothing is
// suspended; ErrStaleInterrupt if the token does not match the current
// sequence (a leftover from an older suspension).
func (c *Conversation) ResumeToken() (*InterruptToken, error) {
	if c.Status != StatusSuspended || c.Interrupt == nil {
		return nil, ErrNoPendingInterrupt
	}
	if c.Interrupt.Seq != c.InterruptSeq {
		return nil, ErrStaleInterrupt
	}
	return c.Interrupt, nil
}

// ConsumeInterrupt invalidates the live token, if any.
func (c *Conversation) ConsumeInterrupt() {
	c.Interrupt = nil
	if c.Status == StatusSuspended {
		c.Status = StatusIdle
	}
}

// Expired reports whether the token is older than ttlSeconds at now.
// A zero ttl means tokens never expire.
func (t *InterruptToken) Expired(now, ttlSeconds int64) bool {
	if t == nil || ttlSeconds <= 0 {
		return false
	}
	return now-t.IssuedAt > ttlSeconds
}
