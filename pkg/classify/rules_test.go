package classify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caseflow-io/caseflow/pkg/classify"
)

func TestRules_Classify(t *testing.T) {
	r := classify.New([]string{"furious", "scam"})
	ctx := context.Background()

	tests := []struct {
		name     string
		text     string
		label    string
		distress bool
		orderID  string
	}{
		{"refund with order", "I want a refund, order 123456", "refund", false, "123456"},
		{"refund with distress", "I want a refund, I'm furious, order 123456", "refund", true, "123456"},
		{"refund uppercase", "REFUND my Order #98765 now", "refund", false, "98765"},
		{"consult", "where is my package?", "consult", false, ""},
		{"empty", "   ", "unknown", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := r.Classify(ctx, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.label, c.Label)
			assert.Equal(t, tt.distress, c.Distress)
			assert.Equal(t, tt.orderID, c.OrderID)
		})
	}
}

func TestExtractOrderID(t *testing.T) {
	assert.Equal(t, "123456", classify.ExtractOrderID("refund order 123456 please"))
	assert.Equal(t, "123456", classify.ExtractOrderID("Order: 123456"))
	assert.Equal(t, "", classify.ExtractOrderID("order twelve"))
	assert.Equal(t, "", classify.ExtractOrderID("order 12"), "short digit runs are not order IDs")
}
