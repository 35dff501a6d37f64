package domain

// NodeID identifies a step in the workflow graph. The set is closed:
// the executor validates every referenced ID against its registry at
// construction time.
type NodeID string

const (
	// NodeClassify is the entry node: intent recognition plus basic
	// info extraction from the latest user message.
	NodeClassify NodeID = "classify"
	// NodeHandoff escalates the conversation to a human agent.
	NodeHandoff NodeID = "handoff"
	// NodeRefundConfirm gates the refund behind an explicit yes/no.
	NodeRefundConfirm NodeID = "refund_confirm"
	// NodeRefundProcess performs the refund side effect, guarded for
	// at-most-once execution.
	NodeRefundProcess NodeID = "refund_process"
	// NodeRefundStatus reports an already-issued refund.
	NodeRefundStatus NodeID = "refund_status"
	// NodeAnswerConsult handles the non-refund path.
	NodeAnswerConsult NodeID = "answer_consult"

	// NodeEnd is the terminal sentinel. It is a valid transition target
	// but never executes.
	NodeEnd NodeID = "end"
)

// ResultKind is the control-flow decision a node hands back to the
// executor. Nodes declare intent only; suspension and resumption
// bookkeeping belong to the executor.
type ResultKind string

const (
	ResultAdvance  ResultKind = "advance"
	ResultSuspend  ResultKind = "suspend"
	ResultComplete ResultKind = "complete"
	ResultFail     ResultKind = "fail"
)

// NodeResult is the outcome of a single node execution.
type NodeResult struct {
	Kind ResultKind

	// Next is the node to continue to (ResultAdvance only).
	Next NodeID

	// Prompt describes the awaited input (ResultSuspend only).
	Prompt string

	// Reply is the user-facing text for this turn (ResultComplete).
	Reply string

	// ErrKind and Retryable describe a node-local failure (ResultFail).
	ErrKind   string
	Retryable bool
}

// Advance continues the graph immediately to next.
func Advance(next NodeID) NodeResult {
	return NodeResult{Kind: ResultAdvance, Next: next}
}

// Suspend pauses the graph awaiting external input.
func Suspend(prompt string) NodeResult {
	return NodeResult{Kind: ResultSuspend, Prompt: prompt}
}

// Complete terminates the turn with a reply to the user.
func Complete(reply string) NodeResult {
	return NodeResult{Kind: ResultComplete, Reply: reply}
}

// Fail reports a node-local failure.
func Fail(kind string, retryable bool) NodeResult {
	return NodeResult{Kind: ResultFail, ErrKind: kind, Retryable: retryable}
}
