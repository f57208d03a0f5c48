package model

import (
	"time"
)

// ProcessedWebhookEvent records a provider callback that has already been
// applied, keyed by a dedupe token. The provider may redeliver the same
// event; insert-if-absent on EventKey makes reprocessing a no-op.
type ProcessedWebhookEvent struct {
	EventKey   string    `json:"event_key" db:"event_key"`
	ReceivedAt time.Time `json:"received_at" db:"received_at"`
}
