package caseflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-io/caseflow"
	"github.com/caseflow-io/caseflow/pkg/adapters/memory"
	"github.com/caseflow-io/caseflow/pkg/domain"
	"github.com/caseflow-io/caseflow/pkg/observability"
	"github.com/caseflow-io/caseflow/pkg/refund"
)

func TestEngine_RefundFlowEndToEnd(t *testing.T) {
	engine, err := caseflow.New(nil)
	require.NoError(t, err)

	ctx := context.Background()
	msg := func(text string) domain.Message {
		return domain.Message{ConversationID: "conv-e2e", Text: text}
	}

	outcome, err := engine.Handle(ctx, msg("I want a refund for order 123456"))
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAwaitingConfirmation, outcome.Type)

	outcome, err = engine.Handle(ctx, msg("yes"))
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.Contains(t, outcome.Text, "Refund issued for order 123456")

	state, err := engine.Conversation(ctx, "conv-e2e")
	require.NoError(t, err)
	assert.True(t, state.RefundIssued)
	assert.Equal(t, domain.StatusIdle, state.Status)
}

// A suspended conversation must survive an engine restart: a second
// engine built over the same stores resumes it where it stopped.
func TestEngine_SuspensionSurvivesRestart(t *testing.T) {
	store := memory.NewStore()
	records := memory.NewIdempotencyStore()
	backend := refund.NewSimulated()

	ctx := context.Background()
	msg := domain.Message{ConversationID: "conv-restart", Text: "refund order 9001 please"}

	first, err := caseflow.New(nil,
		caseflow.WithStateStore(store),
		caseflow.WithIdempotencyStore(records),
		caseflow.WithRefundBackend(backend),
	)
	require.NoError(t, err)

	outcome, err := first.Handle(ctx, msg)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAwaitingConfirmation, outcome.Type)

	// "Restart": a fresh engine over the same persistence.
	second, err := caseflow.New(nil,
		caseflow.WithStateStore(store),
		caseflow.WithIdempotencyStore(records),
		caseflow.WithRefundBackend(backend),
	)
	require.NoError(t, err)

	outcome, err = second.Handle(ctx, domain.Message{ConversationID: "conv-restart", Text: "yes"})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.Contains(t, outcome.Text, "Refund issued for order 9001")
	assert.Equal(t, 1, backend.CallCount())
}

// Concurrent duplicate deliveries of the confirmation must collapse to
// one backend call; every caller sees the same reply.
func TestEngine_ConcurrentConfirmationsExecuteOnce(t *testing.T) {
	backend := refund.NewSimulated()
	engine, err := caseflow.New(nil, caseflow.WithRefundBackend(backend))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = engine.Handle(ctx, domain.Message{ConversationID: "conv-race", Text: "refund order 555123"})
	require.NoError(t, err)

	const deliveries = 8
	replies := make([]string, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := engine.Handle(ctx, domain.Message{ConversationID: "conv-race", Text: "yes"})
			assert.NoError(t, err)
			replies[i] = outcome.Text
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, backend.CallCount())
	for i := 1; i < deliveries; i++ {
		assert.Equal(t, replies[0], replies[i])
	}
}

func TestEngine_ConversationsAreIndependent(t *testing.T) {
	engine, err := caseflow.New(nil)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("conv-%d", i)
		_, err := engine.Handle(ctx, domain.Message{ConversationID: id, Text: "hello"})
		require.NoError(t, err)
	}

	ids, err := engine.Conversations(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestEngine_MetricsRecordTurns(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	engine, err := caseflow.New(nil, caseflow.WithMetrics(metrics))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = engine.Handle(ctx, domain.Message{ConversationID: "conv-m", Text: "refund order 123456"})
	require.NoError(t, err)
	_, err = engine.Handle(ctx, domain.Message{ConversationID: "conv-m", Text: "yes"})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["caseflow_turns_total"])
	assert.True(t, names["caseflow_refunds_issued_total"])
}

func TestEngine_UnknownConversation(t *testing.T) {
	engine, err := caseflow.New(nil)
	require.NoError(t, err)

	_, err = engine.Conversation(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}
