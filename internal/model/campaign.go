package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// campaignTransitions lists the legal forward edges of the campaign state
// machine. completed and cancelled are terminal.
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusDraft:     {CampaignStatusScheduled, CampaignStatusRunning, CampaignStatusCancelled},
	CampaignStatusScheduled: {CampaignStatusRunning, CampaignStatusCancelled},
	CampaignStatusRunning:   {CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled},
	CampaignStatusPaused:    {CampaignStatusRunning, CampaignStatusCancelled},
}

// CanTransition reports whether moving from s to next is legal.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s CampaignStatus) Terminal() bool {
	return len(campaignTransitions[s]) == 0
}

// CampaignStats are write-only from the batch runner during a run and
// read-only for API consumers.
type CampaignStats struct {
	TotalContacts     int `json:"total_contacts" db:"total_contacts"`
	MessagesSent      int `json:"messages_sent" db:"messages_sent"`
	MessagesDelivered int `json:"messages_delivered" db:"messages_delivered"`
	MessagesRead      int `json:"messages_read" db:"messages_read"`
	MessagesFailed    int `json:"messages_failed" db:"messages_failed"`
	MessagesSkipped   int `json:"messages_skipped" db:"messages_skipped"`
}

type CampaignSettings struct {
	BatchSize            int  `json:"batch_size" db:"batch_size" validate:"gte=1,lte=1000"`
	DelayBetweenMessages int  `json:"delay_between_messages" db:"delay_between_messages" validate:"gte=0,lte=60000"`
	RetryFailedMessages  bool `json:"retry_failed_messages" db:"retry_failed_messages"`
	MaxRetries           int  `json:"max_retries" db:"max_retries" validate:"gte=0,lte=10"`
}

const (
	DefaultBatchSize            = 50
	DefaultDelayBetweenMessages = 500 // milliseconds
	DefaultMaxRetries           = 3
)

// DefaultCampaignSettings returns the pacing defaults applied when a
// campaign is created without explicit settings.
func DefaultCampaignSettings() CampaignSettings {
	return CampaignSettings{
		BatchSize:            DefaultBatchSize,
		DelayBetweenMessages: DefaultDelayBetweenMessages,
		MaxRetries:           DefaultMaxRetries,
	}
}

// Campaign is one unit of bulk work: a template, a contact list resolved
// once at creation time, parameter values, pacing settings and aggregate
// stats.
type Campaign struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	AccountID      uuid.UUID        `json:"account_id" db:"account_id"`
	Name           string           `json:"name" db:"name"`
	Description    string           `json:"description" db:"description"`
	TemplateID     uuid.UUID        `json:"template_id" db:"template_id"`
	Status         CampaignStatus   `json:"status" db:"status"`
	ScheduledDate  *time.Time       `json:"scheduled_date,omitempty" db:"scheduled_date"`
	StartDate      *time.Time       `json:"start_date,omitempty" db:"start_date"`
	EndDate        *time.Time       `json:"end_date,omitempty" db:"end_date"`
	ContactIDs     []uuid.UUID      `json:"contact_ids" db:"-"`
	HeaderValue    string           `json:"header_value" db:"header_value"`
	BodyParameters pq.StringArray   `json:"body_parameters" db:"body_parameters"`
	Stats          CampaignStats    `json:"stats" db:"-"`
	Settings       CampaignSettings `json:"settings" db:"-"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// Sendable reports whether a send action may start a run. Scheduled
// campaigns are sendable so the scheduler worker and a manual send-now
// share one path.
func (c *Campaign) Sendable() bool {
	return c.Status == CampaignStatusDraft ||
		c.Status == CampaignStatusScheduled ||
		c.Status == CampaignStatusPaused
}
