package domain

// Message is an inbound user message delivered to the engine.
type Message struct {
	ConversationID string `json:"conversationId"`
	Text           string `json:"text"`
	Timestamp      int64  `json:"timestamp"`
}

// OutcomeType discriminates the result of one engine turn.
type OutcomeType string

const (
	// OutcomeReply is terminal output for this turn.
	OutcomeReply OutcomeType = "reply"
	// OutcomeAwaitingConfirmation means the graph is suspended; the
	// caller must eventually deliver a yes/no answer as a new message.
	OutcomeAwaitingConfirmation OutcomeType = "awaiting_confirmation"
	// OutcomeError reports a failure, with a retryable hint.
	OutcomeError OutcomeType = "error"
)

// Error kinds surfaced in Outcome. User-visible text never contains
// these identifiers; they are for callers and logs.
const (
	ErrKindBackendUnavailable = "backend_unavailable"
	ErrKindBackendRejected    = "backend_rejected"
	ErrKindConfiguration      = "configuration"
)

// Outcome is what the engine returns to its caller after one turn.
type Outcome struct {
	Type OutcomeType `json:"type"`

	// Text is set for OutcomeReply.
	Text string `json:"text,omitempty"`

	// Prompt is set for OutcomeAwaitingConfirmation.
	Prompt string `json:"prompt,omitempty"`

	// Kind and Retryable are set for OutcomeError.
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// ReplyOutcome builds a terminal reply outcome.
func ReplyOutcome(text string) Outcome {
	return Outcome{Type: OutcomeReply, Text: text}
}

// AwaitingOutcome builds a suspension outcome carrying the prompt.
func AwaitingOutcome(prompt string) Outcome {
	return Outcome{Type: OutcomeAwaitingConfirmation, Prompt: prompt}
}

// ErrorOutcome builds an error outcome.
func ErrorOutcome(kind string, retryable bool) Outcome {
	return Outcome{Type: OutcomeError, Kind: kind, Retryable: retryable}
}
