// Package classify provides a rule-based intent classifier. It is a
// stand-in for a real model behind the same port: keyword matching for
// the label, a regex for order extraction, and a marker list for
// distress detection.
package classify

import (
	"context"
	"regexp"
	"strings"

	"github.com/caseflow-io/caseflow/pkg/ports"
)

var orderIDPattern = regexp.MustCompile(`(?i)order[^0-9]*([0-9]{3,})`)

// Rules implements ports.Classifier with keyword heuristics.
type Rules struct {
	distressMarkers []string
}

// New creates a rule-based classifier. markers are lowercase substrings
// that signal explicit anger or complaint.
func New(markers []string) *Rules {
	lowered := make([]string, len(markers))
	for i, m := range markers {
		lowered[i] = strings.ToLower(m)
	}
	return &Rules{distressMarkers: lowered}
}

// Classify labels the text. It never fails; outages only exist for
// remote classifiers behind the same port.
func (r *Rules) Classify(ctx context.Context, text string) (ports.Classification, error) {
	lowered := strings.ToLower(text)

	c := ports.Classification{
		OrderID:  ExtractOrderID(text),
		Distress: r.distress(lowered),
	}

	switch {
	case strings.Contains(lowered, "refund"):
		c.Label = string(labelRefund)
		c.Confidence = 0.9
	case strings.TrimSpace(text) != "":
		c.Label = string(labelConsult)
		c.Confidence = 0.6
	default:
		c.Label = string(labelUnknown)
		c.Confidence = 0.0
	}

	return c, nil
}

func (r *Rules) distress(lowered string) bool {
	for _, marker := range r.distressMarkers {
		if marker != "" && strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// ExtractOrderID pulls an order identifier out of free text, e.g.
// "order 123456" or "order #123456". Returns "" if none found.
func ExtractOrderID(text string) string {
	m := orderIDPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return m[1]
}

type label string

const (
	labelRefund  label = "refund"
	labelConsult label = "consult"
	labelUnknown label = "unknown"
)
