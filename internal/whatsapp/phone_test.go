package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plus and dashes", "+1-555-123-4567", "15551234567"},
		{"spaces and parens", "+44 (20) 7946 0958", "442079460958"},
		{"already digits", "919876543210", "919876543210"},
		{"dots", "55.11.91234.5678", "5511912345678"},
		{"empty", "", ""},
		{"letters stripped", "call +1 555 HELP", "1555"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.input))
		})
	}
}

func TestNormalizePhoneIdempotent(t *testing.T) {
	inputs := []string{"+1 (555) 123-4567", "5511912345678", "+91-98765-43210"}
	for _, input := range inputs {
		once := NormalizePhone(input)
		assert.Equal(t, once, NormalizePhone(once))
	}
}
