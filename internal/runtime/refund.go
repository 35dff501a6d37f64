package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/caseflow-io/caseflow/pkg/domain"
	"github.com/caseflow-io/caseflow/pkg/ports"
)

// refundProcessNode performs the refund side effect, guarded for
// at-most-once execution. The guard sequence is:
//
//  1. Get the idempotency record; a final record replays its outcome
//     without touching the backend.
//  2. Create a provisional in-flight record (atomic create-if-absent).
//  3. Call the backend exactly once under the provisional record.
//  4. Finalize: succeeded or rejected records are written once and
//     never change; a transient failure removes the provisional record
//     so a later attempt can retry.
//
// The caller holds the per-conversation lock for the whole turn, so an
// existing in-flight record can only be an orphan from a crashed
// process, never a live concurrent attempt.
func (e *Engine) refundProcessNode(ctx context.Context, state *domain.Conversation, input string) (domain.NodeResult, error) {
	if state.Confirmation != domain.ConfirmationConfirmed {
		return domain.NodeResult{}, &domain.GraphConfigError{Node: domain.NodeRefundProcess, Reason: "reached without a confirmed refund"}
	}
	if state.OrderID == "" {
		return domain.NodeResult{}, &domain.GraphConfigError{Node: domain.NodeRefundProcess, Reason: "reached without an order id"}
	}

	key := domain.IdempotencyKey(state.ID, domain.ActionRefund, state.OrderID)

	rec, err := e.records.Get(ctx, key)
	switch {
	case err == nil:
		if rec.Final() {
			return e.replayRecord(ctx, state, rec), nil
		}
		// Orphaned in-flight record: the previous attempt crashed
		// between reserving the key and recording the outcome. The lock
		// guarantees nobody else is mid-call, so take it over.
		e.logger.WarnContext(ctx, "taking over orphaned refund attempt",
			"conversation_id", state.ID,
			"key", key,
		)
	case errors.Is(err, domain.ErrRecordNotFound):
		now := e.now().Unix()
		rec = &domain.IdempotencyRecord{
			Key:            key,
			ConversationID: state.ID,
			Action:         domain.ActionRefund,
			OrderID:        state.OrderID,
			Status:         domain.IdempotencyInFlight,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if createErr := e.records.Create(ctx, rec); createErr != nil {
			if !errors.Is(createErr, domain.ErrRecordExists) {
				e.logger.ErrorContext(ctx, "failed to reserve refund attempt",
					"conversation_id", state.ID, "key", key, "err", createErr)
				return domain.Fail(domain.ErrKindBackendUnavailable, true), nil
			}
			// Lost a race with another process despite the lock (clock
			// skew on lock expiry). Re-read and replay if final.
			existing, getErr := e.records.Get(ctx, key)
			if getErr != nil {
				return domain.Fail(domain.ErrKindBackendUnavailable, true), nil
			}
			if existing.Final() {
				return e.replayRecord(ctx, state, existing), nil
			}
			rec = existing
		}
	default:
		e.logger.ErrorContext(ctx, "idempotency store unavailable",
			"conversation_id", state.ID, "key", key, "err", err)
		return domain.Fail(domain.ErrKindBackendUnavailable, true), nil
	}

	details, _, err := domain.RefundDetailsFromMeta(state)
	if err != nil {
		e.logger.WarnContext(ctx, "ignoring malformed refund details",
			"conversation_id", state.ID, "err", err)
		details = domain.RefundDetails{}
	}

	result, err := e.backend.IssueRefund(ctx, state.OrderID, details.AmountCents)
	if err != nil {
		// Ambiguous: the transfer may or may not have happened. Do not
		// fabricate an outcome; release the reservation and let the
		// user retry.
		e.logger.WarnContext(ctx, "refund backend call failed",
			"conversation_id", state.ID, "order_id", state.OrderID, "err", err)
		if rmErr := e.records.Remove(ctx, key); rmErr != nil {
			e.logger.ErrorContext(ctx, "failed to release refund reservation",
				"conversation_id", state.ID, "key", key, "err", rmErr)
		}
		return domain.Fail(domain.ErrKindBackendUnavailable, true), nil
	}

	switch result.Status {
	case ports.RefundSuccess:
		rec.Status = domain.IdempotencySucceeded
		rec.Reference = result.Reference
		rec.UpdatedAt = e.now().Unix()
		if upErr := e.records.Update(ctx, rec); upErr != nil {
			// The money moved. Losing the record risks a duplicate on
			// replay, so this is not a quiet failure.
			e.logger.ErrorContext(ctx, "failed to finalize refund record",
				"conversation_id", state.ID, "key", key, "err", upErr)
		}
		state.MarkRefundIssued(result.Reference)
		details.OrderID = state.OrderID
		details.Reference = result.Reference
		details.Store(state)
		e.emitRefundIssued(ctx, state, state.OrderID, result.Reference)
		return domain.Complete(refundIssuedReply(state.OrderID, result.Reference)), nil

	case ports.RefundRejected:
		rec.Status = domain.IdempotencyRejected
		rec.Reason = result.Reason
		rec.UpdatedAt = e.now().Unix()
		if upErr := e.records.Update(ctx, rec); upErr != nil {
			e.logger.ErrorContext(ctx, "failed to finalize refund record",
				"conversation_id", state.ID, "key", key, "err", upErr)
		}
		return domain.Fail(domain.ErrKindBackendRejected, false), nil

	default: // unavailable
		if rmErr := e.records.Remove(ctx, key); rmErr != nil {
			e.logger.ErrorContext(ctx, "failed to release refund reservation",
				"conversation_id", state.ID, "key", key, "err", rmErr)
		}
		return domain.Fail(domain.ErrKindBackendUnavailable, true), nil
	}
}

// replayRecord reproduces the outcome stored in a final record without
// touching the backend. A replayed success also repairs the
// conversation markers in case the prior turn crashed before saving.
func (e *Engine) replayRecord(ctx context.Context, state *domain.Conversation, rec *domain.IdempotencyRecord) domain.NodeResult {
	e.logger.InfoContext(ctx, "replaying recorded refund outcome",
		"conversation_id", state.ID,
		"key", rec.Key,
		"status", rec.Status,
	)
	if rec.Status == domain.IdempotencySucceeded {
		state.MarkRefundIssued(rec.Reference)
		return domain.Complete(refundIssuedReply(rec.OrderID, rec.Reference))
	}
	return domain.Fail(domain.ErrKindBackendRejected, false)
}

func refundIssuedReply(orderID, reference string) string {
	return fmt.Sprintf("Refund issued for order %s. Reference: %s.", orderID, reference)
}
