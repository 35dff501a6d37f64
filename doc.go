/*
Package caseflow is a multi-step, human-interruptible conversational workflow engine for customer-service automation.

It drives a closed graph of nodes over durable conversation state: intent classification, escalation to a human agent, an explicit confirmation gate that suspends the conversation mid-flow, and a refund side effect guarded for at-most-once execution.

# Concept

Each inbound message runs exactly one turn. A turn enters the graph, executes nodes until one suspends awaiting human input, completes with a reply, or fails, and the resulting state is persisted before the outcome reaches the caller. A suspended conversation survives process restarts; the next user message resumes it at the suspended node. Persistence, classification, and the payment backend sit behind ports, so the same engine runs against in-memory adapters in tests and redis in a multi-process deployment.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/caseflow-io/caseflow"
		"github.com/caseflow-io/caseflow/pkg/domain"
	)

	func main() {
		engine, err := caseflow.New(nil) // nil config means built-in defaults
		if err != nil {
			log.Fatal(err)
		}

		outcome, err := engine.Handle(context.Background(), domain.Message{
			ConversationID: "conv-42",
			Text:           "I want a refund for order 123456",
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(outcome.Prompt) // asks for an explicit yes/no
	}

Guarantees, in short: turns for one conversation are serialized; the refund backend is called at most once per (conversation, order); a duplicate confirmation replays the recorded outcome instead of re-executing; the turn outcome is only visible after the state that produced it is durable.
*/
package caseflow
