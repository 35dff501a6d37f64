package caseflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/caseflow-io/caseflow/internal/config"
	"github.com/caseflow-io/caseflow/internal/logging"
	"github.com/caseflow-io/caseflow/internal/runtime"
	"github.com/caseflow-io/caseflow/pkg/adapters/memory"
	"github.com/caseflow-io/caseflow/pkg/classify"
	"github.com/caseflow-io/caseflow/pkg/domain"
	"github.com/caseflow-io/caseflow/pkg/observability"
	"github.com/caseflow-io/caseflow/pkg/ports"
	"github.com/caseflow-io/caseflow/pkg/refund"
	"github.com/caseflow-io/caseflow/pkg/session"
)

// Version is the caseflow release version.
const Version = "0.1.0"

// Engine is the high-level entry point for the Caseflow library. It
// wires the graph executor to session management so callers get the
// full turn contract (serialized per conversation, persisted before
// the outcome is returned) from a single Handle call.
type Engine struct {
	runtime  *runtime.Engine
	sessions *session.Manager
	metrics  *observability.Metrics
	logger   *slog.Logger

	store      ports.StateStore
	records    ports.IdempotencyStore
	locker     ports.DistributedLocker
	classifier ports.Classifier
	backend    ports.RefundBackend
	hooks      domain.LifecycleHooks
	now        func() time.Time
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStateStore injects the conversation store. Defaults to in-memory.
func WithStateStore(store ports.StateStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithIdempotencyStore injects the side-effect record store. It should
// live in the same durability class as the state store: losing records
// while keeping conversations reopens the duplicate-refund window.
func WithIdempotencyStore(records ports.IdempotencyStore) Option {
	return func(e *Engine) {
		e.records = records
	}
}

// WithLocker adds a distributed lock layer for multi-process
// deployments sharing one store.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithClassifier injects the intent classifier. Defaults to the
// rule-based one.
func WithClassifier(classifier ports.Classifier) Option {
	return func(e *Engine) {
		e.classifier = classifier
	}
}

// WithRefundBackend injects the payment collaborator. Defaults to the
// simulated backend.
func WithRefundBackend(backend ports.RefundBackend) Option {
	return func(e *Engine) {
		e.backend = backend
	}
}

// WithMetrics attaches Prometheus instrumentation. The metrics hooks
// are merged with any hooks set via WithLifecycleHooks.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New initializes a Caseflow Engine from configuration. Adapters not
// injected through options fall back to in-memory implementations, so a
// zero-infrastructure engine works out of the box.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.records == nil {
		e.records = memory.NewIdempotencyStore()
	}
	if e.classifier == nil {
		e.classifier = classify.New(cfg.Engine.DistressMarkers)
	}
	if e.backend == nil {
		e.backend = refund.NewSimulated()
	}

	hooks := e.hooks
	if e.metrics != nil {
		hooks = mergeHooks(e.metrics.Hooks(), hooks)
	}

	rt, err := runtime.NewEngine(e.classifier, e.backend, e.records, cfg.Engine,
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(hooks),
		runtime.WithClock(e.now),
	)
	if err != nil {
		return nil, err
	}
	e.runtime = rt

	sessionOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(e.locker))
	}
	e.sessions = session.NewManager(e.store, sessionOpts...)

	return e, nil
}

// Handle runs one conversational turn: load (or start) the
// conversation, execute the graph, persist the new state, and return
// the outcome. Turns for the same conversation are serialized; turns
// for different conversations run concurrently. The outcome is only
// returned after the state that produced it is durable.
func (e *Engine) Handle(ctx context.Context, msg domain.Message) (domain.Outcome, error) {
	start := e.now()

	var outcome domain.Outcome
	err := e.sessions.Turn(ctx, msg.ConversationID, func(ctx context.Context, state *domain.Conversation) (*domain.Conversation, error) {
		next, out, err := e.runtime.Step(ctx, state, msg)
		if err != nil {
			return nil, err
		}
		outcome = out
		return next, nil
	})

	if e.metrics != nil {
		outcomeType := outcome.Type
		if err != nil {
			outcomeType = "engine_error"
		}
		e.metrics.ObserveTurn(outcomeType, e.now().Sub(start).Seconds())
	}
	if err != nil {
		return domain.Outcome{}, err
	}
	return outcome, nil
}

// Conversation returns the persisted state for a conversation, or
// domain.ErrConversationNotFound.
func (e *Engine) Conversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	return e.sessions.Load(ctx, conversationID)
}

// Conversations lists known conversation IDs.
func (e *Engine) Conversations(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// mergeHooks chains two hook sets; both fire, a first then b.
func mergeHooks(a, b domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter:    chainNode(a.OnNodeEnter, b.OnNodeEnter),
		OnNodeLeave:    chainNode(a.OnNodeLeave, b.OnNodeLeave),
		OnSuspend:      chainInterrupt(a.OnSuspend, b.OnSuspend),
		OnResume:       chainInterrupt(a.OnResume, b.OnResume),
		OnRefundIssued: chainRefund(a.OnRefundIssued, b.OnRefundIssued),
		OnHandoff:      chainNode(a.OnHandoff, b.OnHandoff),
	}
}

func chainNode(a, b func(context.Context, *domain.NodeEvent)) func(context.Context, *domain.NodeEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *domain.NodeEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainInterrupt(a, b func(context.Context, *domain.InterruptEvent)) func(context.Context, *domain.InterruptEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *domain.InterruptEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainRefund(a, b func(context.Context, *domain.RefundEvent)) func(context.Context, *domain.RefundEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *domain.RefundEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
