package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-io/caseflow/pkg/domain"
)

// RunStateStoreContract runs a suite of tests to verify that a
// StateStore implementation adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	conversationID := "contract-test-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewConversation(conversationID)
		state.Append(domain.SpeakerUser, "I want a refund, order 123456", 1700000000)
		state.OrderID = "123456"
		state.Confirmation = domain.ConfirmationPending
		state.Meta["channel"] = "chat"

		err := store.Save(ctx, conversationID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, conversationID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.CurrentNode, loaded.CurrentNode)
		assert.Equal(t, "123456", loaded.OrderID)
		assert.Equal(t, domain.ConfirmationPending, loaded.Confirmation)
		require.Len(t, loaded.Turns, 1)
		assert.Equal(t, domain.SpeakerUser, loaded.Turns[0].Speaker)
		// JSON persistence may change numeric types inside Meta, but the
		// key must survive.
		assert.NotNil(t, loaded.Meta["channel"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+conversationID)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("Save preserves interrupt token", func(t *testing.T) {
		state := domain.NewConversation(conversationID + "-tok")
		state.IssueInterrupt(domain.NodeRefundConfirm, "confirm refund for order 42? (yes/no)", 1700000001)
		require.NoError(t, store.Save(ctx, state.ID, state))
		defer func() { _ = store.Delete(ctx, state.ID) }()

		loaded, err := store.Load(ctx, state.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded.Interrupt)
		assert.Equal(t, domain.NodeRefundConfirm, loaded.Interrupt.Node)
		assert.Equal(t, uint64(1), loaded.Interrupt.Seq)
		assert.Equal(t, domain.StatusSuspended, loaded.Status)
	})

	t.Run("Isolation", func(t *testing.T) {
		// Mutating a loaded copy must not leak into the store.
		id := conversationID + "-iso"
		state := domain.NewConversation(id)
		require.NoError(t, store.Save(ctx, id, state))
		defer func() { _ = store.Delete(ctx, id) }()

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		loaded.RefundIssued = true
		loaded.Meta["dirty"] = true

		fresh, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.False(t, fresh.RefundIssued)
		assert.NotContains(t, fresh.Meta, "dirty")
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, conversationID, domain.NewConversation(conversationID))
		require.NoError(t, err)

		err = store.Delete(ctx, conversationID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, conversationID)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound, "Load after Delete should return ErrConversationNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := conversationID + "-1"
		id2 := conversationID + "-2"
		_ = store.Save(ctx, id1, domain.NewConversation(id1))
		_ = store.Save(ctx, id2, domain.NewConversation(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		conversations, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, conversations, id1)
		assert.Contains(t, conversations, id2)
	})
}

// RunIdempotencyStoreContract verifies that an IdempotencyStore
// implementation provides the atomic create-if-absent and
// never-overwrite-final semantics the refund guard depends on.
func RunIdempotencyStoreContract(t *testing.T, store IdempotencyStore) {
	ctx := context.Background()
	key := domain.IdempotencyKey("contract-"+time.Now().Format("150405.000"), domain.ActionRefund, "123456")

	record := func(status domain.IdempotencyStatus) *domain.IdempotencyRecord {
		return &domain.IdempotencyRecord{
			Key:            key,
			ConversationID: "contract",
			Action:         domain.ActionRefund,
			OrderID:        "123456",
			Status:         status,
			CreatedAt:      time.Now().Unix(),
			UpdatedAt:      time.Now().Unix(),
		}
	}

	t.Run("Get Missing", func(t *testing.T) {
		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("Create If Absent", func(t *testing.T) {
		err := store.Create(ctx, record(domain.IdempotencyInFlight))
		require.NoError(t, err, "first Create should succeed")

		err = store.Create(ctx, record(domain.IdempotencyInFlight))
		assert.ErrorIs(t, err, domain.ErrRecordExists, "second Create must observe the existing record")
	})

	t.Run("Remove Provisional Allows Retry", func(t *testing.T) {
		require.NoError(t, store.Remove(ctx, key))

		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)

		require.NoError(t, store.Create(ctx, record(domain.IdempotencyInFlight)))
	})

	t.Run("Transition To Success", func(t *testing.T) {
		success := record(domain.IdempotencySucceeded)
		success.Reference = "refund_123456_abcd1234"
		require.NoError(t, store.Update(ctx, success))

		loaded, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.IdempotencySucceeded, loaded.Status)
		assert.Equal(t, "refund_123456_abcd1234", loaded.Reference)
	})

	t.Run("Success Is Never Overwritten", func(t *testing.T) {
		err := store.Update(ctx, record(domain.IdempotencyInFlight))
		assert.Error(t, err, "downgrading a final record must fail")

		loaded, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, domain.IdempotencySucceeded, loaded.Status)
		assert.Equal(t, "refund_123456_abcd1234", loaded.Reference)
	})
}
