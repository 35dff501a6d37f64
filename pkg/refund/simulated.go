// Package refund provides refund backend adapters. The Simulated
// backend stands in for a real payment provider and is scriptable for
// failure-path testing.
package refund

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/caseflow-io/caseflow/pkg/ports"
)

// Simulated implements ports.RefundBackend in memory. Every successful
// call mints a fresh reference, which is exactly what makes duplicate
// execution visible in tests.
type Simulated struct {
	mu sync.Mutex

	// Calls records every IssueRefund invocation, in order.
	Calls []string

	// next failure injections, consumed one call at a time
	failures []ports.RefundStatus
}

// NewSimulated creates a backend that succeeds unless told otherwise.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// FailNext queues failure statuses for upcoming calls. Each queued
// status is consumed by one IssueRefund call before the backend goes
// back to succeeding.
func (s *Simulated) FailNext(statuses ...ports.RefundStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// CallCount returns how many times IssueRefund ran.
func (s *Simulated) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// IssueRefund simulates the remote call.
func (s *Simulated) IssueRefund(ctx context.Context, orderID string, amountCents int64) (ports.RefundResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.RefundResult{Status: ports.RefundUnavailable}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.Calls = append(s.Calls, orderID)

	if len(s.failures) > 0 {
		status := s.failures[0]
		s.failures = s.failures[1:]
		result := ports.RefundResult{Status: status}
		if status == ports.RefundRejected {
			result.Reason = "order not eligible for refund"
		}
		return result, nil
	}

	if orderID == "" {
		orderID = "unknown"
	}
	return ports.RefundResult{
		Status:    ports.RefundSuccess,
		Reference: "refund_" + orderID + "_" + shortID(),
	}, nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
