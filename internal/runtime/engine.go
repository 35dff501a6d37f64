// Package runtime is the core graph executor: a closed set of nodes
// driven one turn at a time over conversation state, with durable
// suspension and an idempotency guard around the refund side effect.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caseflow-io/caseflow/internal/config"
	"github.com/caseflow-io/caseflow/internal/logging"
	"github.com/caseflow-io/caseflow/pkg/domain"
	"github.com/caseflow-io/caseflow/pkg/ports"
)

// nodeFunc executes one step. input carries the raw user text only for
// the node that starts (or resumes) the turn; advance chains pass "".
type nodeFunc func(ctx context.Context, state *domain.Conversation, input string) (domain.NodeResult, error)

// Engine drives the workflow graph. It is stateless between turns:
// everything it needs to resume lives in the Conversation.
type Engine struct {
	classifier ports.Classifier
	backend    ports.RefundBackend
	records    ports.IdempotencyStore

	logger *slog.Logger
	hooks  domain.LifecycleHooks
	now    func() time.Time

	confidenceThreshold float64
	maxSteps            int
	repromptLimit       int
	interruptTTL        time.Duration
	expiryPolicy        string

	registry    map[domain.NodeID]nodeFunc
	transitions map[domain.NodeID][]domain.NodeID
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine builds the executor and validates the transition table:
// every node a registered node can advance to must itself be registered
// (or the terminal sentinel). A dangling reference is a fatal
// configuration error, surfaced here rather than mid-conversation.
func NewEngine(classifier ports.Classifier, backend ports.RefundBackend, records ports.IdempotencyStore, cfg config.Engine, opts ...EngineOption) (*Engine, error) {
	ttl, err := cfg.TTL()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		classifier:          classifier,
		backend:             backend,
		records:             records,
		logger:              logging.NewNop(),
		now:                 time.Now,
		confidenceThreshold: cfg.ConfidenceThreshold,
		maxSteps:            cfg.MaxStepsPerTurn,
		repromptLimit:       cfg.RepromptLimit,
		interruptTTL:        ttl,
		expiryPolicy:        cfg.ExpiryPolicy,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.registry = map[domain.NodeID]nodeFunc{
		domain.NodeClassify:      e.classifyNode,
		domain.NodeHandoff:       e.handoffNode,
		domain.NodeRefundConfirm: e.refundConfirmNode,
		domain.NodeRefundProcess: e.refundProcessNode,
		domain.NodeRefundStatus:  e.refundStatusNode,
		domain.NodeAnswerConsult: e.answerConsultNode,
	}
	e.transitions = map[domain.NodeID][]domain.NodeID{
		domain.NodeClassify:      {domain.NodeHandoff, domain.NodeRefundConfirm, domain.NodeRefundProcess, domain.NodeRefundStatus, domain.NodeAnswerConsult, domain.NodeEnd},
		domain.NodeHandoff:       {domain.NodeEnd},
		domain.NodeRefundConfirm: {domain.NodeRefundProcess, domain.NodeHandoff, domain.NodeEnd},
		domain.NodeRefundProcess: {domain.NodeEnd},
		domain.NodeRefundStatus:  {domain.NodeEnd},
		domain.NodeAnswerConsult: {domain.NodeEnd},
	}

	if err := e.validateGraph(); err != nil {
		return nil, err
	}
	return e, nil
}

// validateGraph checks transition-table completeness at startup.
func (e *Engine) validateGraph() error {
	for node := range e.registry {
		targets, ok := e.transitions[node]
		if !ok {
			return &domain.GraphConfigError{Node: node, Reason: "no transitions defined"}
		}
		for _, target := range targets {
			if target == domain.NodeEnd {
				continue
			}
			if _, ok := e.registry[target]; !ok {
				return &domain.GraphConfigError{Node: node, Reason: fmt.Sprintf("transition target %q is not registered", target)}
			}
		}
	}
	for node := range e.transitions {
		if _, ok := e.registry[node]; !ok {
			return &domain.GraphConfigError{Node: node, Reason: "transitions defined for unregistered node"}
		}
	}
	return nil
}

// allowed reports whether from may advance to target.
func (e *Engine) allowed(from, target domain.NodeID) bool {
	for _, t := range e.transitions[from] {
		if t == target {
			return true
		}
	}
	return false
}

// Step runs one full turn for an inbound message against a loaded
// conversation. The caller holds the per-conversation lock and persists
// the returned state. The state passed in is not mutated; the returned
// state reflects the turn.
func (e *Engine) Step(ctx context.Context, current *domain.Conversation, msg domain.Message) (*domain.Conversation, domain.Outcome, error) {
	state := current.Clone()
	state.Version++
	state.Append(domain.SpeakerUser, msg.Text, msg.Timestamp)

	// A human owns escalated conversations; the automated graph stays out.
	if state.Status == domain.StatusTerminal {
		reply := "A human agent is handling this conversation and will follow up shortly."
		state.Append(domain.SpeakerAgent, reply, e.now().Unix())
		return state, domain.ReplyOutcome(reply), nil
	}

	entry, input, err := e.entryPoint(ctx, state, msg)
	if err != nil {
		return nil, domain.Outcome{}, err
	}

	outcome, err := e.run(ctx, state, entry, input)
	if err != nil {
		return nil, domain.Outcome{}, err
	}
	return state, outcome, nil
}

// run drives the graph from node, bounded by maxSteps.
func (e *Engine) run(ctx context.Context, state *domain.Conversation, node domain.NodeID, input string) (domain.Outcome, error) {
	for steps := 0; steps < e.maxSteps; steps++ {
		fn, ok := e.registry[node]
		if !ok {
			return domain.Outcome{}, &domain.GraphConfigError{Node: node, Reason: "node is not registered"}
		}

		e.emitNodeEnter(ctx, state, node)
		state.CurrentNode = node
		result, err := fn(ctx, state, input)
		e.emitNodeLeave(ctx, state, node)
		if err != nil {
			return domain.Outcome{}, err
		}
		input = "" // only the entering node sees the raw message

		switch result.Kind {
		case domain.ResultAdvance:
			if !e.allowed(node, result.Next) {
				return domain.Outcome{}, &domain.GraphConfigError{Node: node, Reason: fmt.Sprintf("illegal transition to %q", result.Next)}
			}
			// Advancing out of a suspended node means the resume input
			// matched; the token is consumed exactly here.
			if tok := state.Interrupt; tok != nil && tok.Node == node {
				state.ConsumeInterrupt()
			}
			node = result.Next

		case domain.ResultSuspend:
			return e.suspend(ctx, state, node, result.Prompt)

		case domain.ResultComplete:
			return e.complete(ctx, state, node, result.Reply), nil

		case domain.ResultFail:
			return e.fail(ctx, state, node, result), nil

		default:
			return domain.Outcome{}, &domain.GraphConfigError{Node: node, Reason: fmt.Sprintf("unknown result kind %q", result.Kind)}
		}
	}

	return domain.Outcome{}, &domain.StepLimitError{ConversationID: state.ID, Steps: e.maxSteps}
}

// complete finishes the turn with a reply. The graph goes idle with the
// pointer back at the entry node; escalated conversations go terminal.
func (e *Engine) complete(ctx context.Context, state *domain.Conversation, node domain.NodeID, reply string) domain.Outcome {
	state.ConsumeInterrupt()
	state.CurrentNode = domain.NodeClassify
	state.Status = domain.StatusIdle
	if state.Escalated {
		state.Status = domain.StatusTerminal
		e.emitHandoff(ctx, state, node)
	}
	state.Append(domain.SpeakerAgent, reply, e.now().Unix())
	return domain.ReplyOutcome(reply)
}

// fail finishes the turn with a node-local failure. Transient failures
// keep the pointer on the failing node so the next message retries it;
// permanent ones reset to the entry node. The user sees plain language
// either way, never internal identifiers.
func (e *Engine) fail(ctx context.Context, state *domain.Conversation, node domain.NodeID, result domain.NodeResult) domain.Outcome {
	state.ConsumeInterrupt()

	var reply string
	if result.Retryable {
		state.CurrentNode = node
		state.Status = domain.StatusIdle
		reply = "Sorry, I couldn't complete that just now. Please try again in a moment."
	} else {
		state.CurrentNode = domain.NodeClassify
		state.Status = domain.StatusIdle
		reply = "I'm sorry, this request was declined and cannot be retried. A specialist can review it if you reply here."
	}
	state.Append(domain.SpeakerAgent, reply, e.now().Unix())

	e.logger.WarnContext(ctx, "node failed",
		"conversation_id", state.ID,
		"node", node,
		"kind", result.ErrKind,
		"retryable", result.Retryable,
	)
	return domain.ErrorOutcome(result.ErrKind, result.Retryable)
}
