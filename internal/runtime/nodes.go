package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/caseflow-io/caseflow/pkg/classify"
	"github.com/caseflow-io/caseflow/pkg/domain"
)

// ParseConfirm normalizes a yes/no answer. Accepts the usual
// affirmative and negative spellings; anything else is unrecognized.
func ParseConfirm(input string) (bool, bool) {
	clean := strings.ToLower(strings.TrimSpace(input))
	switch clean {
	case "y", "yes", "yep", "true", "1", "ok", "confirm":
		return true, true
	case "n", "no", "nope", "false", "0", "cancel":
		return false, true
	}
	return false, false
}

// classifyNode is the entry node: intent recognition plus basic info
// extraction from the latest user message.
func (e *Engine) classifyNode(ctx context.Context, state *domain.Conversation, input string) (domain.NodeResult, error) {
	text := state.LastUserText()

	// A bare yes after a completed confirmation is duplicate delivery of
	// the answer, not a new request. Route it back through the guarded
	// node so the caller gets the same reply as the first delivery.
	if ans, ok := ParseConfirm(text); ok && state.OrderID != "" {
		if state.Confirmation == domain.ConfirmationConfirmed && ans {
			return domain.Advance(domain.NodeRefundProcess), nil
		}
		if state.Confirmation == domain.ConfirmationDeclined && !ans {
			return domain.Complete("Understood, no refund will be issued. Anything else I can help with?"), nil
		}
	}

	c, err := e.classifier.Classify(ctx, text)
	if err != nil {
		if !errors.Is(err, domain.ErrClassifierUnavailable) {
			e.logger.WarnContext(ctx, "classifier failed", "conversation_id", state.ID, "err", err)
		}
		// Transient outage reads as zero confidence: a human takes over.
		state.Intent = domain.IntentUnknown
		state.Confidence = 0
		state.Classified = true
		return domain.Advance(domain.NodeHandoff), nil
	}

	state.Intent = intentFromLabel(c.Label)
	state.Confidence = c.Confidence
	state.Classified = true
	if c.OrderID != "" {
		state.OrderID = c.OrderID
	}

	if state.Intent == domain.IntentRefund {
		if c.Distress {
			return domain.Advance(domain.NodeHandoff), nil
		}
		if c.Confidence < e.confidenceThreshold {
			return domain.Advance(domain.NodeHandoff), nil
		}
		if state.RefundIssued {
			return domain.Advance(domain.NodeRefundStatus), nil
		}
		// A fresh refund request reopens the confirmation gate.
		if state.Confirmation == domain.ConfirmationDeclined {
			state.Confirmation = domain.ConfirmationUnset
		}
		return domain.Advance(domain.NodeRefundConfirm), nil
	}

	if c.Distress {
		return domain.Advance(domain.NodeHandoff), nil
	}
	return domain.Advance(domain.NodeAnswerConsult), nil
}

func intentFromLabel(label string) domain.Intent {
	switch label {
	case string(domain.IntentRefund):
		return domain.IntentRefund
	case string(domain.IntentConsult):
		return domain.IntentConsult
	default:
		return domain.IntentUnknown
	}
}

// handoffNode escalates to a human and ends the automated path.
func (e *Engine) handoffNode(ctx context.Context, state *domain.Conversation, input string) (domain.NodeResult, error) {
	state.Escalated = true

	summary := e.handoffSummary(state)
	e.logger.InfoContext(ctx, "conversation escalated",
		"conversation_id", state.ID,
		"summary", summary,
	)

	return domain.Complete("I understand this is frustrating. I'm connecting you with a human agent who will take over from here. Feel free to add any details, like your order number."), nil
}

// handoffSummary builds the human-facing context line for the agent who
// picks the conversation up.
func (e *Engine) handoffSummary(state *domain.Conversation) string {
	parts := []string{fmt.Sprintf("intent=%s", state.Intent)}
	if state.Classified {
		parts = append(parts, fmt.Sprintf("confidence=%.2f", state.Confidence))
	}
	if state.OrderID != "" {
		parts = append(parts, "order="+state.OrderID)
	}
	if state.RefundIssued {
		parts = append(parts, "refund_reference="+state.RefundReference)
	}
	parts = append(parts, fmt.Sprintf("turns=%d", len(state.Turns)))
	return strings.Join(parts, " ")
}

// refundConfirmNode gates the refund behind an explicit yes/no. It is
// deliberately free of side effects: on resume the node re-runs from
// the top, so everything irreversible lives in refundProcessNode.
func (e *Engine) refundConfirmNode(ctx context.Context, state *domain.Conversation, input string) (domain.NodeResult, error) {
	switch state.Confirmation {
	case domain.ConfirmationConfirmed:
		return domain.Advance(domain.NodeRefundProcess), nil

	case domain.ConfirmationDeclined:
		return domain.Complete("Understood, no refund will be issued. Anything else I can help with?"), nil

	case domain.ConfirmationPending:
		answer, ok := ParseConfirm(input)
		if !ok {
			// Clarification loop: same prompt, no state advance.
			return domain.Suspend(confirmPrompt(state.OrderID)), nil
		}
		if answer {
			state.Confirmation = domain.ConfirmationConfirmed
			return domain.Advance(domain.NodeRefundProcess), nil
		}
		state.Confirmation = domain.ConfirmationDeclined
		return domain.Complete("Understood, no refund will be issued. Anything else I can help with?"), nil

	default: // unset
		if state.OrderID == "" {
			if extracted := classify.ExtractOrderID(input); extracted != "" {
				state.OrderID = extracted
			} else {
				return domain.Suspend("I can help with that refund. What is the order number (e.g. \"order 123456\")?"), nil
			}
		}
		state.Confirmation = domain.ConfirmationPending
		return domain.Suspend(confirmPrompt(state.OrderID)), nil
	}
}

func confirmPrompt(orderID string) string {
	return fmt.Sprintf("Please confirm: issue a refund for order %s? Reply yes or no.", orderID)
}

// refundStatusNode reports an already-issued refund.
func (e *Engine) refundStatusNode(ctx context.Context, state *domain.Conversation, input string) (domain.NodeResult, error) {
	if !state.RefundIssued {
		// Only reachable via classify when the marker is set.
		return domain.NodeResult{}, &domain.GraphConfigError{Node: domain.NodeRefundStatus, Reason: "reached without an issued refund"}
	}
	return domain.Complete(refundIssuedReply(state.OrderID, state.RefundReference)), nil
}

// answerConsultNode handles the non-refund path.
func (e *Engine) answerConsultNode(ctx context.Context, state *domain.Conversation, input string) (domain.NodeResult, error) {
	return domain.Complete("Happy to help with general questions. If you want a refund, just say \"refund\" and include your order number."), nil
}
