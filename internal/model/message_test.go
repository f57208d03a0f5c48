package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    MessageStatus
		to      MessageStatus
		allowed bool
	}{
		{"sending to sent", MessageStatusSending, MessageStatusSent, true},
		{"sending to failed", MessageStatusSending, MessageStatusFailed, true},
		{"sending to delivered skips sent", MessageStatusSending, MessageStatusDelivered, false},
		{"sent to delivered", MessageStatusSent, MessageStatusDelivered, true},
		{"sent to read", MessageStatusSent, MessageStatusRead, true},
		{"delivered to read", MessageStatusDelivered, MessageStatusRead, true},
		{"delivered back to sent", MessageStatusDelivered, MessageStatusSent, false},
		{"read back to delivered", MessageStatusRead, MessageStatusDelivered, false},
		{"failed never becomes sent", MessageStatusFailed, MessageStatusSent, false},
		{"delivered can still fail", MessageStatusDelivered, MessageStatusFailed, true},
		{"same state is a no-op", MessageStatusSent, MessageStatusSent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransition(tt.to))
		})
	}
}

func TestDeliveredAndReadRequireSent(t *testing.T) {
	// A message that never left SENDING can only reach DELIVERED or READ by
	// first passing through SENT.
	assert.False(t, MessageStatusSending.CanTransition(MessageStatusDelivered))
	assert.False(t, MessageStatusSending.CanTransition(MessageStatusRead))
	assert.True(t, MessageStatusSending.CanTransition(MessageStatusSent))
	assert.True(t, MessageStatusSent.CanTransition(MessageStatusDelivered))
}
