package ports

import "context"

// Classification is the result of intent recognition on a message.
type Classification struct {
	Label string `json:"label"`
	// Confidence is in [0,1].
	Confidence float64 `json:"confidence"`
	// OrderID is an order identifier extracted from the text, if any.
	OrderID string `json:"order_id,omitempty"`
	// Distress reports explicit anger or complaint markers in the text.
	Distress bool `json:"distress,omitempty"`
}

// Classifier is the intent-classification collaborator. Internals
// (model, prompt, heuristics) are out of scope; a transient outage is
// signaled with domain.ErrClassifierUnavailable and treated by the
// classify node as low confidence.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// RefundStatus is the backend's verdict on a refund request.
type RefundStatus string

const (
	// RefundSuccess means the monetary transfer was performed.
	RefundSuccess RefundStatus = "success"
	// RefundRejected is a permanent refusal; retrying is pointless.
	RefundRejected RefundStatus = "rejected"
	// RefundUnavailable is a transient failure; retrying may succeed.
	RefundUnavailable RefundStatus = "unavailable"
)

// RefundResult is the refund backend's response.
type RefundResult struct {
	Status RefundStatus `json:"status"`
	// Reference is the backend receipt, set on success.
	Reference string `json:"reference,omitempty"`
	// Reason explains a rejection.
	Reason string `json:"reason,omitempty"`
}

// RefundBackend is the payment collaborator: an opaque, possibly slow,
// possibly failing remote call. A transport error or timeout must be
// surfaced as RefundUnavailable (or an error), never as a false success.
type RefundBackend interface {
	// IssueRefund refunds the order. amountCents of 0 means the full
	// order amount.
	IssueRefund(ctx context.Context, orderID string, amountCents int64) (RefundResult, error)
}
