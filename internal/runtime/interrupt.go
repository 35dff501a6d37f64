package runtime

import (
	"context"
	"time"

	"github.com/caseflow-io/caseflow/internal/config"
	"github.com/caseflow-io/caseflow/pkg/domain"
)

// entryPoint decides where the turn enters the graph. Idle
// conversations enter at the recorded current node with the raw message
// text; suspended ones route the message back into the suspended node
// as the answer to the pending prompt. Expired tokens are discarded
// first, per the configured abandonment policy.
func (e *Engine) entryPoint(ctx context.Context, state *domain.Conversation, msg domain.Message) (domain.NodeID, string, error) {
	if state.Status != domain.StatusSuspended {
		node := state.CurrentNode
		if node == "" || node == domain.NodeEnd {
			node = domain.NodeClassify
		}
		return node, msg.Text, nil
	}

	tok, err := state.ResumeToken()
	if err != nil {
		// A missing or stale token should not happen; recover by
		// discarding it and treating the message as fresh input.
		e.logger.WarnContext(ctx, "discarding unusable interrupt token",
			"conversation_id", state.ID, "err", err)
		state.ConsumeInterrupt()
		state.Status = domain.StatusIdle
		return domain.NodeClassify, msg.Text, nil
	}

	if tok.Expired(e.now().Unix(), int64(e.interruptTTL/time.Second)) {
		e.logger.InfoContext(ctx, "interrupt token expired",
			"conversation_id", state.ID,
			"node", tok.Node,
			"seq", tok.Seq,
			"policy", e.expiryPolicy,
		)
		state.ConsumeInterrupt()
		if e.expiryPolicy == config.ExpiryHandoff {
			return domain.NodeHandoff, msg.Text, nil
		}
		return domain.NodeClassify, msg.Text, nil
	}

	if _, ok := e.registry[tok.Node]; !ok {
		return "", "", &domain.GraphConfigError{Node: tok.Node, Reason: "interrupt token references unregistered node"}
	}

	e.emitResume(ctx, state, tok)
	return tok.Node, msg.Text, nil
}

// suspend parks the graph at node with a prompt. Re-issuing the same
// node's prompt (a clarification loop) bumps the attempt counter
// instead of minting a new sequence; exceeding the configured limit
// escalates to a human rather than looping forever.
func (e *Engine) suspend(ctx context.Context, state *domain.Conversation, node domain.NodeID, prompt string) (domain.Outcome, error) {
	// Same node re-issuing the same prompt is a clarification loop; a
	// different prompt from the same node is progress and gets a fresh
	// token.
	if prev := state.Interrupt; prev != nil && prev.Node == node && prev.Prompt == prompt {
		prev.Attempts++
		state.Status = domain.StatusSuspended

		if prev.Attempts >= e.repromptLimit {
			e.logger.InfoContext(ctx, "re-prompt limit reached, escalating",
				"conversation_id", state.ID,
				"node", node,
				"attempts", prev.Attempts,
			)
			state.ConsumeInterrupt()
			return e.run(ctx, state, domain.NodeHandoff, "")
		}

		e.emitSuspend(ctx, state, prev, true)
		state.Append(domain.SpeakerAgent, prompt, e.now().Unix())
		return domain.AwaitingOutcome(prompt), nil
	}

	tok := state.IssueInterrupt(node, prompt, e.now().Unix())
	e.emitSuspend(ctx, state, tok, false)
	state.Append(domain.SpeakerAgent, prompt, e.now().Unix())
	return domain.AwaitingOutcome(prompt), nil
}

func (e *Engine) emitNodeEnter(ctx context.Context, state *domain.Conversation, node domain.NodeID) {
	if e.hooks.OnNodeEnter == nil {
		return
	}
	e.hooks.OnNodeEnter(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventNodeEnter, ConversationID: state.ID},
		Node:      node,
	})
}

func (e *Engine) emitNodeLeave(ctx context.Context, state *domain.Conversation, node domain.NodeID) {
	if e.hooks.OnNodeLeave == nil {
		return
	}
	e.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventNodeLeave, ConversationID: state.ID},
		Node:      node,
	})
}

func (e *Engine) emitSuspend(ctx context.Context, state *domain.Conversation, tok *domain.InterruptToken, reprompt bool) {
	if e.hooks.OnSuspend == nil {
		return
	}
	e.hooks.OnSuspend(ctx, &domain.InterruptEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventSuspend, ConversationID: state.ID},
		Node:      tok.Node,
		Seq:       tok.Seq,
		Prompt:    tok.Prompt,
		Reprompt:  reprompt,
	})
}

func (e *Engine) emitResume(ctx context.Context, state *domain.Conversation, tok *domain.InterruptToken) {
	if e.hooks.OnResume == nil {
		return
	}
	e.hooks.OnResume(ctx, &domain.InterruptEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventResume, ConversationID: state.ID},
		Node:      tok.Node,
		Seq:       tok.Seq,
	})
}

func (e *Engine) emitHandoff(ctx context.Context, state *domain.Conversation, node domain.NodeID) {
	if e.hooks.OnHandoff == nil {
		return
	}
	e.hooks.OnHandoff(ctx, &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventHandoff, ConversationID: state.ID},
		Node:      node,
	})
}

func (e *Engine) emitRefundIssued(ctx context.Context, state *domain.Conversation, orderID, reference string) {
	if e.hooks.OnRefundIssued == nil {
		return
	}
	e.hooks.OnRefundIssued(ctx, &domain.RefundEvent{
		EventBase: domain.EventBase{Timestamp: e.now(), Type: domain.EventRefundIssued, ConversationID: state.ID},
		OrderID:   orderID,
		Reference: reference,
	})
}
