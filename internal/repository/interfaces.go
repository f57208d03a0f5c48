package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/waflow/waflow/internal/model"
)

type AccountRepository interface {
	Create(ctx context.Context, account *model.Account) error
	Get(ctx context.Context, id uuid.UUID) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
	Update(ctx context.Context, account *model.Account) error

	// GetQuota returns the freshest used/limit pair for the account.
	GetQuota(ctx context.Context, id uuid.UUID) (used, limit int, err error)
	// ConsumeQuota atomically increments usage while it is below the limit
	// and reports whether a unit was consumed.
	ConsumeQuota(ctx context.Context, id uuid.UUID) (bool, error)
	// ReleaseQuota returns one previously consumed unit, flooring at zero.
	ReleaseQuota(ctx context.Context, id uuid.UUID) error

	GetWhatsAppConfig(ctx context.Context, accountID uuid.UUID) (*model.WhatsAppConfig, error)
	SaveWhatsAppConfig(ctx context.Context, config *model.WhatsAppConfig) error
	// GetAccountIDByPhoneNumberID resolves inbound webhook traffic to the
	// owning account via the phone_number_routes table.
	GetAccountIDByPhoneNumberID(ctx context.Context, phoneNumberID string) (uuid.UUID, error)
}

type ContactRepository interface {
	Create(ctx context.Context, contact *model.Contact) error
	Get(ctx context.Context, accountID, id uuid.UUID) (*model.Contact, error)
	GetByNormalizedPhone(ctx context.Context, accountID uuid.UUID, normalized string) (*model.Contact, error)
	List(ctx context.Context, accountID uuid.UUID, filters *model.ContactFilters) ([]*model.Contact, error)
	// ListSendableByIDs returns the subset of the given contacts that are
	// active and subscribed, preserving creation order.
	ListSendableByIDs(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) ([]*model.Contact, error)
	Update(ctx context.Context, contact *model.Contact) error
	Delete(ctx context.Context, accountID, id uuid.UUID) error
	SetUnsubscribed(ctx context.Context, id uuid.UUID, unsubscribed bool, at time.Time) error
	// IncrementMessageStats bumps message_count and last_message_date after
	// a successful send or receive.
	IncrementMessageStats(ctx context.Context, id uuid.UUID, at time.Time) error
}

type TemplateRepository interface {
	Upsert(ctx context.Context, template *model.Template) error
	Get(ctx context.Context, accountID, id uuid.UUID) (*model.Template, error)
	GetByName(ctx context.Context, accountID uuid.UUID, name string) (*model.Template, error)
	List(ctx context.Context, accountID uuid.UUID) ([]*model.Template, error)
	DeleteByName(ctx context.Context, accountID uuid.UUID, name string) error
}

type CampaignRepository interface {
	Create(ctx context.Context, campaign *model.Campaign) error
	Get(ctx context.Context, accountID, id uuid.UUID) (*model.Campaign, error)
	List(ctx context.Context, accountID uuid.UUID) ([]*model.Campaign, error)
	Update(ctx context.Context, campaign *model.Campaign) error
	Delete(ctx context.Context, accountID, id uuid.UUID) error

	// GetStatus is the runner's cheap per-contact cancellation poll.
	GetStatus(ctx context.Context, id uuid.UUID) (model.CampaignStatus, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.CampaignStatus) error
	MarkRunning(ctx context.Context, id uuid.UUID, start time.Time) error
	MarkCompleted(ctx context.Context, id uuid.UUID, end time.Time, stats model.CampaignStats) error
	UpdateStats(ctx context.Context, id uuid.UUID, stats model.CampaignStats) error
	// IncrementDeliveryStat bumps the delivered/read aggregate when webhook
	// reconciliation confirms a terminal state for a campaign message.
	IncrementDeliveryStat(ctx context.Context, id uuid.UUID, status model.MessageStatus) error

	GetContactIDs(ctx context.Context, campaignID uuid.UUID) ([]uuid.UUID, error)
	// ListDueScheduled returns scheduled campaigns whose start time has
	// passed, for the scheduler worker.
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*model.Campaign, error)
}

type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	Get(ctx context.Context, accountID, id uuid.UUID) (*model.Message, error)
	GetByWhatsAppID(ctx context.Context, whatsappMessageID string) (*model.Message, error)
	List(ctx context.Context, accountID uuid.UUID, filters *model.MessageFilters) ([]*model.Message, error)
	MarkSent(ctx context.Context, id uuid.UUID, whatsappMessageID string, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, failureReason, errorMessage string) error
	// UpdateDeliveryStatus applies a webhook-confirmed state together with
	// its status timestamp column.
	UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, status model.MessageStatus, at time.Time, failureReason, errorMessage string) error
	AppendWebhookEvent(ctx context.Context, id uuid.UUID, event model.WebhookEvent) error
	ExistsInbound(ctx context.Context, whatsappMessageID string) (bool, error)
}

type WebhookEventRepository interface {
	// MarkProcessed inserts the dedupe key if absent and reports whether
	// this is the first time the event has been seen.
	MarkProcessed(ctx context.Context, eventKey string) (bool, error)
	// ClearProcessed removes a claimed key so the provider's retry of an
	// event that failed transiently is not discarded as a duplicate.
	ClearProcessed(ctx context.Context, eventKey string) error
}
