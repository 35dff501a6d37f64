package domain

// ConversationStatus defines the current mode of the engine mechanics.
type ConversationStatus string

const (
	// StatusIdle means no suspension is live; the next inbound message
	// starts a fresh turn at the entry node.
	StatusIdle ConversationStatus = "idle"
	// StatusSuspended means an InterruptToken is live and the next
	// inbound message is the answer to its prompt.
	StatusSuspended ConversationStatus = "suspended"
	// StatusTerminal means the automated workflow is done for this
	// conversation (e.g. after escalation to a human).
	StatusTerminal ConversationStatus = "terminal"
)

// Intent is the classified purpose of the latest user message.
type Intent string

const (
	IntentRefund  Intent = "refund"
	IntentConsult Intent = "consult"
	IntentUnknown Intent = "unknown"
)

// Confirmation tracks the human decision gate in front of the refund.
// Transitions are one-way: unset -> pending -> confirmed|declined.
type Confirmation string

const (
	ConfirmationUnset     Confirmation = ""
	ConfirmationPending   Confirmation = "pending"
	ConfirmationConfirmed Confirmation = "confirmed"
	ConfirmationDeclined  Confirmation = "declined"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Turn is one entry in the conversation history.
type Turn struct {
	Speaker   Speaker `json:"speaker" yaml:"speaker"`
	Text      string  `json:"text" yaml:"text"`
	Timestamp int64   `json:"timestamp" yaml:"timestamp"`
}

// Conversation is the versioned state of one customer interaction.
// It is mutated exclusively by the node currently executing, under the
// session manager's per-ID lock, and persisted after every turn.
type Conversation struct {
	ID string `json:"id"`

	// Version increments on every save. Useful for debugging replays;
	// the engine never branches on it.
	Version int64 `json:"version"`

	Turns []Turn `json:"turns,omitempty"`

	// CurrentNode is where the next turn (or the resume) enters the graph.
	CurrentNode NodeID             `json:"current_node"`
	Status      ConversationStatus `json:"status"`

	// Classification output. Confidence is only meaningful when
	// Classified is true.
	Intent     Intent  `json:"intent,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Classified bool    `json:"classified,omitempty"`

	// OrderID is the order a refund request refers to, once extracted.
	OrderID string `json:"order_id,omitempty"`

	Confirmation Confirmation `json:"confirmation,omitempty"`

	// RefundIssued is monotone: once true it is never cleared.
	RefundIssued    bool   `json:"refund_issued,omitempty"`
	RefundReference string `json:"refund_reference,omitempty"`

	// Escalated marks the conversation as handed off to a human.
	Escalated bool `json:"escalated,omitempty"`

	// Interrupt is the live suspension token, if any. At most one per
	// conversation.
	Interrupt *InterruptToken `json:"interrupt,omitempty"`

	// InterruptSeq is the sequence counter for issued tokens. Monotone.
	InterruptSeq uint64 `json:"interrupt_seq,omitempty"`

	// Meta holds extension fields for future nodes. Reserved for data
	// that has no first-class attribute yet.
	Meta map[string]any `json:"meta,omitempty"`
}

// NewConversation creates a fresh conversation parked at the entry node.
func NewConversation(id string) *Conversation {
	return &Conversation{
		ID:          id,
		CurrentNode: NodeClassify,
		Status:      StatusIdle,
		Intent:      IntentUnknown,
		Meta:        make(map[string]any),
	}
}

// Clone returns a copy safe to mutate without touching the original.
// Turns and Meta are copied; token pointers are duplicated.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	next := *c
	next.Turns = make([]Turn, len(c.Turns))
	copy(next.Turns, c.Turns)
	next.Meta = make(map[string]any, len(c.Meta))
	for k, v := range c.Meta {
		next.Meta[k] = v
	}
	if c.Interrupt != nil {
		tok := *c.Interrupt
		next.Interrupt = &tok
	}
	return &next
}

// Append records a turn at the end of the history.
func (c *Conversation) Append(speaker Speaker, text string, ts int64) {
	c.Turns = append(c.Turns, Turn{Speaker: speaker, Text: text, Timestamp: ts})
}

// LastUserText returns the most recent user turn, or "".
func (c *Conversation) LastUserText() string {
	for i := len(c.Turns) - 1; i >= 0; i-- {
		if c.Turns[i].Speaker == SpeakerUser {
			return c.Turns[i].Text
		}
	}
	return ""
}

// MarkRefundIssued sets the monotone refund marker. It never unsets.
func (c *Conversation) MarkRefundIssued(reference string) {
	c.RefundIssued = true
	if reference != "" {
		c.RefundReference = reference
	}
}
