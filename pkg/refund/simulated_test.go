package refund_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-io/caseflow/pkg/ports"
	"github.com/caseflow-io/caseflow/pkg/refund"
)

func TestSimulated_Success(t *testing.T) {
	backend := refund.NewSimulated()

	result, err := backend.IssueRefund(context.Background(), "123456", 0)
	require.NoError(t, err)
	assert.Equal(t, ports.RefundSuccess, result.Status)
	assert.Contains(t, result.Reference, "refund_123456_")
	assert.Equal(t, 1, backend.CallCount())

	// Distinct calls mint distinct references.
	again, err := backend.IssueRefund(context.Background(), "123456", 0)
	require.NoError(t, err)
	assert.NotEqual(t, result.Reference, again.Reference)
}

func TestSimulated_ScriptedFailures(t *testing.T) {
	backend := refund.NewSimulated()
	backend.FailNext(ports.RefundUnavailable, ports.RefundRejected)

	first, err := backend.IssueRefund(context.Background(), "1", 0)
	require.NoError(t, err)
	assert.Equal(t, ports.RefundUnavailable, first.Status)

	second, err := backend.IssueRefund(context.Background(), "1", 0)
	require.NoError(t, err)
	assert.Equal(t, ports.RefundRejected, second.Status)
	assert.NotEmpty(t, second.Reason)

	third, err := backend.IssueRefund(context.Background(), "1", 0)
	require.NoError(t, err)
	assert.Equal(t, ports.RefundSuccess, third.Status)
}
