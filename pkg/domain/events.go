package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter    EventType = "node_enter"
	EventNodeLeave    EventType = "node_leave"
	EventSuspend      EventType = "suspend"
	EventResume       EventType = "resume"
	EventRefundIssued EventType = "refund_issued"
	EventHandoff      EventType = "handoff"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp      time.Time `json:"timestamp"`
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id"`
}

// NodeEvent represents entry or exit from a node.
type NodeEvent struct {
	EventBase
	Node NodeID `json:"node"`
}

// InterruptEvent represents a suspension or resumption.
type InterruptEvent struct {
	EventBase
	Node   NodeID `json:"node"`
	Seq    uint64 `json:"seq"`
	Prompt string `json:"prompt,omitempty"`
	// Reprompt is true when a suspension re-issues an existing prompt
	// after an unrecognized answer.
	Reprompt bool `json:"reprompt,omitempty"`
}

// RefundEvent represents an issued refund.
type RefundEvent struct {
	EventBase
	OrderID   string `json:"order_id"`
	Reference string `json:"reference"`
}

// LifecycleHooks defines callbacks for engine observability. Any field
// may be nil; hooks run synchronously inside the turn and must be fast.
type LifecycleHooks struct {
	OnNodeEnter    func(context.Context, *NodeEvent)
	OnNodeLeave    func(context.Context, *NodeEvent)
	OnSuspend      func(context.Context, *InterruptEvent)
	OnResume       func(context.Context, *InterruptEvent)
	OnRefundIssued func(context.Context, *RefundEvent)
	OnHandoff      func(context.Context, *NodeEvent)
}
