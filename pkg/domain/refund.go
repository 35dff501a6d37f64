package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// metaRefundKey is the Meta namespace for refund extension data.
const metaRefundKey = "refund"

// RefundDetails is the extension payload a refund flow accumulates in
// Conversation.Meta. Kept out of first-class attributes so future nodes
// can extend it without a schema migration.
type RefundDetails struct {
	OrderID     string `json:"order_id" mapstructure:"order_id"`
	AmountCents int64  `json:"amount_cents" mapstructure:"amount_cents"`
	Reference   string `json:"reference,omitempty" mapstructure:"reference"`
}

// RefundDetailsFromMeta decodes the refund extension payload from the
// conversation, if present. Stores round-trip Meta through JSON, so the
// payload may arrive as map[string]any with float64 numbers; decoding
// goes through mapstructure to tolerate that.
func RefundDetailsFromMeta(c *Conversation) (RefundDetails, bool, error) {
	raw, ok := c.Meta[metaRefundKey]
	if !ok {
		return RefundDetails{}, false, nil
	}

	var details RefundDetails
	cfg := &mapstructure.DecoderConfig{
		Result:           &details,
		WeaklyTypedInput: true,
	}
	dec, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return RefundDetails{}, false, fmt.Errorf("failed to build refund decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return RefundDetails{}, false, fmt.Errorf("failed to decode refund details: %w", err)
	}
	return details, true, nil
}

// Store writes the payload back into the conversation's Meta as a plain
// map so it survives JSON persistence.
func (d RefundDetails) Store(c *Conversation) {
	if c.Meta == nil {
		c.Meta = make(map[string]any)
	}
	m := map[string]any{
		"order_id":     d.OrderID,
		"amount_cents": d.AmountCents,
	}
	if d.Reference != "" {
		m["reference"] = d.Reference
	}
	c.Meta[metaRefundKey] = m
}
