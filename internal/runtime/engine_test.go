package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-io/caseflow/internal/config"
	"github.com/caseflow-io/caseflow/pkg/adapters/memory"
	"github.com/caseflow-io/caseflow/pkg/classify"
	"github.com/caseflow-io/caseflow/pkg/domain"
	"github.com/caseflow-io/caseflow/pkg/ports"
	"github.com/caseflow-io/caseflow/pkg/refund"
)

// scriptedClassifier returns canned classifications in order, repeating
// the last one. Used where the rule-based classifier cannot produce the
// shape a test needs (outages, arbitrary confidence).
type scriptedClassifier struct {
	results []ports.Classification
	errs    []error
	calls   int
}

func (s *scriptedClassifier) Classify(ctx context.Context, text string) (ports.Classification, error) {
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.results[i], err
}

type testHarness struct {
	engine  *Engine
	backend *refund.Simulated
	records *memory.IdempotencyStore
	state   *domain.Conversation
	clock   *time.Time
}

func newHarness(t *testing.T, opts ...EngineOption) *testHarness {
	t.Helper()

	cfg := config.Default().Engine
	backend := refund.NewSimulated()
	records := memory.NewIdempotencyStore()
	classifier := classify.New(cfg.DistressMarkers)

	now := time.Unix(1700000000, 0)
	h := &testHarness{backend: backend, records: records, clock: &now}

	opts = append([]EngineOption{WithClock(func() time.Time { return *h.clock })}, opts...)
	engine, err := NewEngine(classifier, backend, records, cfg, opts...)
	require.NoError(t, err)

	h.engine = engine
	h.state = domain.NewConversation("conv-1")
	return h
}

// send runs one turn and rolls the returned state forward, the way a
// persisting caller would.
func (h *testHarness) send(t *testing.T, text string) domain.Outcome {
	t.Helper()
	next, outcome, err := h.engine.Step(context.Background(), h.state, domain.Message{
		ConversationID: h.state.ID,
		Text:           text,
		Timestamp:      h.clock.Unix(),
	})
	require.NoError(t, err)
	h.state = next
	return outcome
}

func TestEngine_ConsultPath(t *testing.T) {
	h := newHarness(t)

	outcome := h.send(t, "what are your shipping times?")

	assert.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.Equal(t, domain.StatusIdle, h.state.Status)
	assert.Equal(t, domain.IntentConsult, h.state.Intent)
	assert.Zero(t, h.backend.CallCount())
}

func TestEngine_RefundHappyPath(t *testing.T) {
	h := newHarness(t)

	outcome := h.send(t, "I want a refund for order 123456")
	require.Equal(t, domain.OutcomeAwaitingConfirmation, outcome.Type)
	assert.Contains(t, outcome.Prompt, "order 123456")
	assert.Equal(t, domain.StatusSuspended, h.state.Status)
	require.NotNil(t, h.state.Interrupt)
	assert.Equal(t, domain.NodeRefundConfirm, h.state.Interrupt.Node)
	assert.Zero(t, h.backend.CallCount(), "no side effect before confirmation")

	outcome = h.send(t, "yes")
	require.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.Contains(t, outcome.Text, "Refund issued for order 123456")
	assert.True(t, h.state.RefundIssued)
	assert.NotEmpty(t, h.state.RefundReference)
	assert.Nil(t, h.state.Interrupt, "token consumed on resume")
	assert.Equal(t, domain.StatusIdle, h.state.Status)
	assert.Equal(t, 1, h.backend.CallCount())
}

func TestEngine_DuplicateConfirmationReplaysOutcome(t *testing.T) {
	h := newHarness(t)

	h.send(t, "refund order 123456 please")
	first := h.send(t, "yes")
	require.Equal(t, domain.OutcomeReply, first.Type)

	// The answer arrives again (client retry). Same reply, no second
	// backend call.
	second := h.send(t, "yes")
	require.Equal(t, domain.OutcomeReply, second.Type)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, 1, h.backend.CallCount())
}

func TestEngine_RepeatedRefundRequestReportsStatus(t *testing.T) {
	h := newHarness(t)

	h.send(t, "refund order 123456")
	h.send(t, "yes")
	require.Equal(t, 1, h.backend.CallCount())

	outcome := h.send(t, "I want that refund again")
	require.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.Contains(t, outcome.Text, h.state.RefundReference)
	assert.Equal(t, 1, h.backend.CallCount(), "issued refund is never re-executed")
}

func TestEngine_DeclineSkipsBackend(t *testing.T) {
	h := newHarness(t)

	h.send(t, "refund order 777123")
	outcome := h.send(t, "no")

	require.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.Contains(t, outcome.Text, "no refund")
	assert.Equal(t, domain.ConfirmationDeclined, h.state.Confirmation)
	assert.False(t, h.state.RefundIssued)
	assert.Zero(t, h.backend.CallCount())

	// A fresh refund request reopens the gate.
	outcome = h.send(t, "actually I do want a refund for order 777123")
	require.Equal(t, domain.OutcomeAwaitingConfirmation, outcome.Type)

	outcome = h.send(t, "yes")
	require.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.True(t, h.state.RefundIssued)
	assert.Equal(t, 1, h.backend.CallCount())
}

func TestEngine_AsksForMissingOrderID(t *testing.T) {
	h := newHarness(t)

	outcome := h.send(t, "I want a refund")
	require.Equal(t, domain.OutcomeAwaitingConfirmation, outcome.Type)
	assert.Contains(t, outcome.Prompt, "order number")

	outcome = h.send(t, "it was order 9001")
	require.Equal(t, domain.OutcomeAwaitingConfirmation, outcome.Type)
	assert.Contains(t, outcome.Prompt, "order 9001")
	assert.Equal(t, "9001", h.state.OrderID)

	outcome = h.send(t, "yes")
	require.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.True(t, h.state.RefundIssued)
}

func TestEngine_ClarificationLoopEscalates(t *testing.T) {
	h := newHarness(t)

	h.send(t, "refund order 123456")

	// Two unrecognized answers re-prompt with the same question.
	outcome := h.send(t, "maybe")
	require.Equal(t, domain.OutcomeAwaitingConfirmation, outcome.Type)
	outcome = h.send(t, "what do you mean")
	require.Equal(t, domain.OutcomeAwaitingConfirmation, outcome.Type)

	// The third exhausts the limit and hands off.
	outcome = h.send(t, "hmm")
	require.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.Contains(t, outcome.Text, "human agent")
	assert.True(t, h.state.Escalated)
	assert.Equal(t, domain.StatusTerminal, h.state.Status)
	assert.Nil(t, h.state.Interrupt)
	assert.Zero(t, h.backend.CallCount())
}

func TestEngine_DistressEscalatesImmediately(t *testing.T) {
	h := newHarness(t)

	outcome := h.send(t, "I am furious, refund order 123456 right now or I report you")

	require.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.Contains(t, outcome.Text, "human agent")
	assert.True(t, h.state.Escalated)
	assert.Equal(t, domain.StatusTerminal, h.state.Status)
	assert.Zero(t, h.backend.CallCount())

	// Terminal conversations stay with the human.
	outcome = h.send(t, "hello?")
	require.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.Contains(t, outcome.Text, "human agent")
}

func TestEngine_LowConfidenceEscalates(t *testing.T) {
	classifier := &scriptedClassifier{
		results: []ports.Classification{{Label: "refund", Confidence: 0.3, OrderID: "123456"}},
	}
	cfg := config.Default().Engine
	backend := refund.NewSimulated()
	engine, err := NewEngine(classifier, backend, memory.NewIdempotencyStore(), cfg)
	require.NoError(t, err)

	state := domain.NewConversation("conv-low")
	next, outcome, err := engine.Step(context.Background(), state, domain.Message{Text: "refnud pls???"})
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.True(t, next.Escalated)
	assert.Zero(t, backend.CallCount())
}

func TestEngine_ClassifierOutageEscalates(t *testing.T) {
	classifier := &scriptedClassifier{
		results: []ports.Classification{{}},
		errs:    []error{domain.ErrClassifierUnavailable},
	}
	engine, err := NewEngine(classifier, refund.NewSimulated(), memory.NewIdempotencyStore(), config.Default().Engine)
	require.NoError(t, err)

	next, outcome, err := engine.Step(context.Background(), domain.NewConversation("conv-out"), domain.Message{Text: "help"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.True(t, next.Escalated)
}

func TestEngine_BackendUnavailableIsRetryable(t *testing.T) {
	h := newHarness(t)
	h.backend.FailNext(ports.RefundUnavailable)

	h.send(t, "refund order 123456")
	outcome := h.send(t, "yes")

	require.Equal(t, domain.OutcomeError, outcome.Type)
	assert.Equal(t, domain.ErrKindBackendUnavailable, outcome.Kind)
	assert.True(t, outcome.Retryable)
	assert.False(t, h.state.RefundIssued)

	// The provisional record was released; the retry runs the backend
	// again and succeeds.
	key := domain.IdempotencyKey(h.state.ID, domain.ActionRefund, "123456")
	_, err := h.records.Get(context.Background(), key)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	outcome = h.send(t, "try again")
	require.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.True(t, h.state.RefundIssued)
	assert.Equal(t, 2, h.backend.CallCount())
}

func TestEngine_BackendRejectionIsPermanent(t *testing.T) {
	h := newHarness(t)
	h.backend.FailNext(ports.RefundRejected)

	h.send(t, "refund order 123456")
	outcome := h.send(t, "yes")

	require.Equal(t, domain.OutcomeError, outcome.Type)
	assert.Equal(t, domain.ErrKindBackendRejected, outcome.Kind)
	assert.False(t, outcome.Retryable)
	assert.False(t, h.state.RefundIssued)

	// Asking again replays the stored rejection without a second call.
	h.send(t, "refund order 123456")
	outcome = h.send(t, "yes")
	require.Equal(t, domain.OutcomeError, outcome.Type)
	assert.Equal(t, domain.ErrKindBackendRejected, outcome.Kind)
	assert.Equal(t, 1, h.backend.CallCount())
}

func TestEngine_OrphanedInFlightRecordIsTakenOver(t *testing.T) {
	h := newHarness(t)

	// Simulate a crash between reserving the key and the backend call.
	key := domain.IdempotencyKey("conv-1", domain.ActionRefund, "123456")
	require.NoError(t, h.records.Create(context.Background(), &domain.IdempotencyRecord{
		Key:            key,
		ConversationID: "conv-1",
		Action:         domain.ActionRefund,
		OrderID:        "123456",
		Status:         domain.IdempotencyInFlight,
	}))

	h.send(t, "refund order 123456")
	outcome := h.send(t, "yes")

	require.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.True(t, h.state.RefundIssued)
	assert.Equal(t, 1, h.backend.CallCount())

	rec, err := h.records.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencySucceeded, rec.Status)
}

func TestEngine_ExpiredInterruptHandsOff(t *testing.T) {
	h := newHarness(t)

	h.send(t, "refund order 123456")
	require.Equal(t, domain.StatusSuspended, h.state.Status)

	*h.clock = h.clock.Add(16 * time.Minute)

	outcome := h.send(t, "yes")
	require.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.Contains(t, outcome.Text, "human agent")
	assert.True(t, h.state.Escalated)
	assert.Zero(t, h.backend.CallCount(), "stale confirmation must not execute the refund")
}

func TestEngine_ExpiredInterruptDropPolicyReclassifies(t *testing.T) {
	cfg := config.Default().Engine
	cfg.ExpiryPolicy = config.ExpiryDrop

	now := time.Unix(1700000000, 0)
	backend := refund.NewSimulated()
	engine, err := NewEngine(classify.New(cfg.DistressMarkers), backend, memory.NewIdempotencyStore(), cfg,
		WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	state := domain.NewConversation("conv-drop")
	state, _, err = engine.Step(context.Background(), state, domain.Message{Text: "refund order 123456"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusSuspended, state.Status)

	now = now.Add(time.Hour)

	// The stale "yes" is treated as a fresh message. It parses as a
	// confirmation with no confirmed gate, so it falls through to
	// consult rather than executing anything.
	state, outcome, err := engine.Step(context.Background(), state, domain.Message{Text: "what gives"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeReply, outcome.Type)
	assert.False(t, state.Escalated)
	assert.Zero(t, backend.CallCount())
}

func TestEngine_InputIsolation(t *testing.T) {
	h := newHarness(t)

	before := h.state
	turns := len(before.Turns)
	h.send(t, "refund order 123456")

	assert.Len(t, before.Turns, turns, "input state must not be mutated")
	assert.Equal(t, int64(1), h.state.Version-before.Version)
}

func TestEngine_VersionIncrementsPerTurn(t *testing.T) {
	h := newHarness(t)

	h.send(t, "refund order 123456")
	v1 := h.state.Version
	h.send(t, "yes")
	assert.Equal(t, v1+1, h.state.Version)
}

func TestNewEngine_RejectsBadTTL(t *testing.T) {
	cfg := config.Default().Engine
	cfg.InterruptTTL = "soon"

	_, err := NewEngine(classify.New(nil), refund.NewSimulated(), memory.NewIdempotencyStore(), cfg)
	require.Error(t, err)
}

func TestEngine_HooksFire(t *testing.T) {
	var nodes []domain.NodeID
	var suspends, resumes, refunds, handoffs int

	hooks := domain.LifecycleHooks{
		OnNodeEnter:    func(_ context.Context, e *domain.NodeEvent) { nodes = append(nodes, e.Node) },
		OnSuspend:      func(_ context.Context, e *domain.InterruptEvent) { suspends++ },
		OnResume:       func(_ context.Context, e *domain.InterruptEvent) { resumes++ },
		OnRefundIssued: func(_ context.Context, e *domain.RefundEvent) { refunds++ },
		OnHandoff:      func(_ context.Context, e *domain.NodeEvent) { handoffs++ },
	}

	h := newHarness(t, WithLifecycleHooks(hooks))
	h.send(t, "refund order 123456")
	h.send(t, "yes")

	assert.Equal(t, []domain.NodeID{
		domain.NodeClassify,
		domain.NodeRefundConfirm,
		domain.NodeRefundConfirm,
		domain.NodeRefundProcess,
	}, nodes)
	assert.Equal(t, 1, suspends)
	assert.Equal(t, 1, resumes)
	assert.Equal(t, 1, refunds)
	assert.Zero(t, handoffs)
}
