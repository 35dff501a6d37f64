package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation_CloneIsolation(t *testing.T) {
	c := NewConversation("conv-1")
	c.Append(SpeakerUser, "hello", 100)
	c.IssueInterrupt(NodeRefundConfirm, "yes or no?", 100)
	c.Meta["refund"] = map[string]any{"order_id": "123"}

	clone := c.Clone()
	clone.Append(SpeakerAgent, "hi", 101)
	clone.Interrupt.Attempts = 5
	clone.Meta["refund"] = map[string]any{"order_id": "456"}

	assert.Len(t, c.Turns, 1)
	assert.Zero(t, c.Interrupt.Attempts)
	assert.Equal(t, map[string]any{"order_id": "123"}, c.Meta["refund"])
}

func TestConversation_LastUserText(t *testing.T) {
	c := NewConversation("conv-1")
	assert.Empty(t, c.LastUserText())

	c.Append(SpeakerUser, "first", 1)
	c.Append(SpeakerAgent, "reply", 2)
	c.Append(SpeakerUser, "second", 3)
	assert.Equal(t, "second", c.LastUserText())
}

func TestConversation_MarkRefundIssuedIsMonotone(t *testing.T) {
	c := NewConversation("conv-1")
	c.MarkRefundIssued("ref-1")
	require.True(t, c.RefundIssued)

	// Replays may carry an empty reference; the original survives.
	c.MarkRefundIssued("")
	assert.True(t, c.RefundIssued)
	assert.Equal(t, "ref-1", c.RefundReference)
}

func TestInterruptLifecycle(t *testing.T) {
	c := NewConversation("conv-1")

	tok := c.IssueInterrupt(NodeRefundConfirm, "yes or no?", 1000)
	require.NotNil(t, tok)
	assert.Equal(t, StatusSuspended, c.Status)
	assert.Equal(t, uint64(1), tok.Seq)

	c.ConsumeInterrupt()
	assert.Nil(t, c.Interrupt)
	assert.Equal(t, StatusIdle, c.Status)

	// Sequence numbers never repeat across tokens.
	tok2 := c.IssueInterrupt(NodeRefundConfirm, "again?", 2000)
	assert.Equal(t, uint64(2), tok2.Seq)
}

func TestConversation_ResumeToken(t *testing.T) {
	c := NewConversation("conv-1")

	_, err := c.ResumeToken()
	assert.ErrorIs(t, err, ErrNoPendingInterrupt)

	issued := c.IssueInterrupt(NodeRefundConfirm, "yes or no?", 1000)
	tok, err := c.ResumeToken()
	require.NoError(t, err)
	assert.Equal(t, issued, tok)

	// A token left over from an older suspension is stale.
	c.InterruptSeq++
	_, err = c.ResumeToken()
	assert.ErrorIs(t, err, ErrStaleInterrupt)
}

func TestInterruptToken_Expired(t *testing.T) {
	tok := &InterruptToken{IssuedAt: 1000}

	assert.False(t, tok.Expired(1000, 900))
	assert.False(t, tok.Expired(1900, 900))
	assert.True(t, tok.Expired(1901, 900))
	assert.False(t, tok.Expired(5000, 0), "zero ttl never expires")
}

func TestIdempotencyKey(t *testing.T) {
	key := IdempotencyKey("conv-1", ActionRefund, "123456")
	assert.Equal(t, "conv-1:refund:123456", key)
	assert.Equal(t, key, IdempotencyKey("conv-1", ActionRefund, "123456"))
}

func TestIdempotencyRecord_Final(t *testing.T) {
	rec := &IdempotencyRecord{Status: IdempotencyInFlight}
	assert.False(t, rec.Final())

	rec.Status = IdempotencySucceeded
	assert.True(t, rec.Final())

	rec.Status = IdempotencyRejected
	assert.True(t, rec.Final())
}

func TestRefundDetails_MetaRoundTrip(t *testing.T) {
	c := NewConversation("conv-1")

	_, ok, err := RefundDetailsFromMeta(c)
	require.NoError(t, err)
	assert.False(t, ok)

	RefundDetails{OrderID: "123456", AmountCents: 2599, Reference: "ref-1"}.Store(c)

	// Simulate a JSON persistence round trip: numbers come back as
	// float64 inside map[string]any.
	c.Meta["refund"] = map[string]any{
		"order_id":     "123456",
		"amount_cents": float64(2599),
		"reference":    "ref-1",
	}

	details, ok, err := RefundDetailsFromMeta(c)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, RefundDetails{OrderID: "123456", AmountCents: 2599, Reference: "ref-1"}, details)
}
