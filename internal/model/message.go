package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MessageDirection string

const (
	DirectionOutbound MessageDirection = "outbound"
	DirectionInbound  MessageDirection = "inbound"
)

type MessageType string

const (
	MessageTypeTemplate MessageType = "template"
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
	MessageTypeAudio    MessageType = "audio"
)

type MessageStatus string

const (
	MessageStatusSending   MessageStatus = "SENDING"
	MessageStatusSent      MessageStatus = "SENT"
	MessageStatusDelivered MessageStatus = "DELIVERED"
	MessageStatusRead      MessageStatus = "READ"
	MessageStatusFailed    MessageStatus = "FAILED"
	MessageStatusError     MessageStatus = "ERROR"
	MessageStatusSkipped   MessageStatus = "SKIPPED"
)

// messageTransitions encodes the per-message state machine. The runner
// only drives SENDING→SENT/FAILED; DELIVERED and READ are reached through
// webhook reconciliation. Any non-terminal read state may still be reported
// FAILED by the provider's asynchronous view.
var messageTransitions = map[MessageStatus][]MessageStatus{
	MessageStatusSending:   {MessageStatusSent, MessageStatusFailed},
	MessageStatusSent:      {MessageStatusDelivered, MessageStatusRead, MessageStatusFailed},
	MessageStatusDelivered: {MessageStatusRead, MessageStatusFailed},
	MessageStatusFailed:    {},
	MessageStatusRead:      {},
	MessageStatusError:     {},
	MessageStatusSkipped:   {},
}

// CanTransition reports whether moving from s to next is legal. Repeated
// delivery of the same state is treated as a no-op, not a violation.
func (s MessageStatus) CanTransition(next MessageStatus) bool {
	if s == next {
		return false
	}
	for _, allowed := range messageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// MessageContent is the payload snapshot stored with each record.
type MessageContent struct {
	Text             string   `json:"text,omitempty"`
	MediaURL         string   `json:"media_url,omitempty"`
	TemplateName     string   `json:"template_name,omitempty"`
	TemplateLanguage string   `json:"template_language,omitempty"`
	HeaderValue      string   `json:"header_value,omitempty"`
	BodyParameters   []string `json:"body_parameters,omitempty"`
}

func (mc MessageContent) Value() (driver.Value, error) {
	return json.Marshal(mc)
}

func (mc *MessageContent) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, mc)
	case string:
		return json.Unmarshal([]byte(v), mc)
	case nil:
		*mc = MessageContent{}
		return nil
	default:
		return fmt.Errorf("unsupported type for MessageContent: %T", src)
	}
}

// WebhookEvent is one append-only entry of a message's status history.
type WebhookEvent struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

type WebhookEvents []WebhookEvent

func (we WebhookEvents) Value() (driver.Value, error) {
	return json.Marshal(we)
}

func (we *WebhookEvents) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, we)
	case string:
		return json.Unmarshal([]byte(v), we)
	case nil:
		*we = nil
		return nil
	default:
		return fmt.Errorf("unsupported type for WebhookEvents: %T", src)
	}
}

// Message is one outbound dispatch attempt or one received item. The
// provider message id is the only join key the webhook reconciler has back
// to this record.
type Message struct {
	ID                    uuid.UUID        `json:"id" db:"id"`
	AccountID             uuid.UUID        `json:"account_id" db:"account_id"`
	ContactID             uuid.UUID        `json:"contact_id" db:"contact_id"`
	TemplateID            *uuid.UUID       `json:"template_id,omitempty" db:"template_id"`
	CampaignID            *uuid.UUID       `json:"campaign_id,omitempty" db:"campaign_id"`
	ReplyToMessageID      *uuid.UUID       `json:"reply_to_message_id,omitempty" db:"reply_to_message_id"`
	WhatsAppMessageID     string           `json:"whatsapp_message_id" db:"whatsapp_message_id"`
	PhoneNumber           string           `json:"phone_number" db:"phone_number"`
	NormalizedPhoneNumber string           `json:"normalized_phone_number" db:"normalized_phone_number"`
	Direction             MessageDirection `json:"direction" db:"direction"`
	Type                  MessageType      `json:"type" db:"type"`
	Status                MessageStatus    `json:"status" db:"status"`
	Content               MessageContent   `json:"content" db:"content"`
	SentDate              *time.Time       `json:"sent_date,omitempty" db:"sent_date"`
	DeliveredDate         *time.Time       `json:"delivered_date,omitempty" db:"delivered_date"`
	ReadDate              *time.Time       `json:"read_date,omitempty" db:"read_date"`
	FailureReason         string           `json:"failure_reason" db:"failure_reason"`
	ErrorMessage          string           `json:"error_message" db:"error_message"`
	WebhookEvents         WebhookEvents    `json:"webhook_events" db:"webhook_events"`
	CreatedAt             time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at" db:"updated_at"`
}

// MessageFilters narrows message listings.
type MessageFilters struct {
	ContactID  *uuid.UUID       `form:"contact_id"`
	CampaignID *uuid.UUID       `form:"campaign_id"`
	Direction  MessageDirection `form:"direction"`
	Status     MessageStatus    `form:"status"`
	Limit      int              `form:"limit"`
	Offset     int              `form:"offset"`
}
