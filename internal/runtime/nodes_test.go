package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseConfirm(t *testing.T) {
	tests := []struct {
		input  string
		answer bool
		ok     bool
	}{
		{"yes", true, true},
		{"  YES  ", true, true},
		{"y", true, true},
		{"ok", true, true},
		{"1", true, true},
		{"no", false, true},
		{"Nope", false, true},
		{"0", false, true},
		{"cancel", false, true},
		{"maybe", false, false},
		{"yes please", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			answer, ok := ParseConfirm(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.answer, answer)
			}
		})
	}
}
