package webhook

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/internal/repository"
	"github.com/waflow/waflow/internal/whatsapp"
	apperrors "github.com/waflow/waflow/pkg/errors"
	"github.com/waflow/waflow/pkg/messaging"
	"github.com/waflow/waflow/pkg/metrics"
)

// providerObject is the webhook payload discriminator; anything else is
// acknowledged and dropped.
const providerObject = "whatsapp_business_account"

// Reconciler applies provider-pushed delivery statuses and inbound
// messages to local state. It runs concurrently with any in-flight
// campaign run and has no ordering relationship to it.
type Reconciler struct {
	messages  repository.MessageRepository
	contacts  repository.ContactRepository
	campaigns repository.CampaignRepository
	accounts  repository.AccountRepository
	events    repository.WebhookEventRepository
	broker    messaging.Broker
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewReconciler(
	messages repository.MessageRepository,
	contacts repository.ContactRepository,
	campaigns repository.CampaignRepository,
	accounts repository.AccountRepository,
	events repository.WebhookEventRepository,
	broker messaging.Broker,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Reconciler {
	return &Reconciler{
		messages:  messages,
		contacts:  contacts,
		campaigns: campaigns,
		accounts:  accounts,
		events:    events,
		broker:    broker,
		metrics:   m,
		logger:    logger.With().Str("component", "webhook_reconciler").Logger(),
	}
}

// Process walks one webhook payload. Per-event failures are contained:
// a bad entry never blocks its siblings, and Process itself never returns
// an error for content problems, only for payloads it cannot read at all.
func (r *Reconciler) Process(ctx context.Context, payload *whatsapp.WebhookPayload) error {
	if r.metrics != nil {
		r.metrics.WebhookPayloads.Inc()
	}
	if payload.Object != providerObject {
		return nil
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, status := range change.Value.Statuses {
				if err := r.applyStatus(ctx, status); err != nil {
					r.logger.Error().Err(err).Str("provider_id", status.ID).Msg("status event failed")
				}
			}
			for _, inbound := range change.Value.Messages {
				if err := r.applyInbound(ctx, change.Value, inbound); err != nil {
					r.logger.Error().Err(err).Str("provider_id", inbound.ID).Msg("inbound event failed")
				}
			}
		}
	}
	return nil
}

// statusMapping translates provider status strings to local states.
var statusMapping = map[string]model.MessageStatus{
	"sent":      model.MessageStatusSent,
	"delivered": model.MessageStatusDelivered,
	"read":      model.MessageStatusRead,
	"failed":    model.MessageStatusFailed,
}

func (r *Reconciler) applyStatus(ctx context.Context, event whatsapp.StatusEvent) error {
	eventKey := fmt.Sprintf("status:%s:%s:%s", event.ID, event.Status, event.Timestamp)
	first, err := r.events.MarkProcessed(ctx, eventKey)
	if err != nil {
		return fmt.Errorf("failed to dedupe status event: %w", err)
	}
	if !first {
		if r.metrics != nil {
			r.metrics.WebhookDuplicates.Inc()
		}
		return nil
	}

	message, err := r.messages.GetByWhatsAppID(ctx, event.ID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrNotFound) {
			// The provider may report statuses for sends outside this
			// system's visibility.
			if r.metrics != nil {
				r.metrics.WebhookOrphans.Inc()
			}
			r.logger.Debug().Str("provider_id", event.ID).Msg("status for unknown message")
			return nil
		}
		r.releaseEvent(ctx, eventKey)
		return fmt.Errorf("failed to look up message: %w", err)
	}

	next, ok := statusMapping[strings.ToLower(event.Status)]
	if !ok {
		r.logger.Warn().Str("status", event.Status).Msg("unmapped provider status")
		return nil
	}

	at := eventTime(event.Timestamp)
	var failureReason, errorMessage string
	if next == model.MessageStatusFailed && len(event.Errors) > 0 {
		failureReason = event.Errors[0].Title
		errorMessage = event.Errors[0].Message
		if failureReason == "" {
			failureReason = "provider reported failure"
		}
	}

	if message.Status.CanTransition(next) {
		if err := r.messages.UpdateDeliveryStatus(ctx, message.ID, next, at, failureReason, errorMessage); err != nil {
			r.releaseEvent(ctx, eventKey)
			return fmt.Errorf("failed to apply delivery status: %w", err)
		}
		if message.CampaignID != nil {
			if err := r.campaigns.IncrementDeliveryStat(ctx, *message.CampaignID, next); err != nil {
				r.logger.Warn().Err(err).Msg("failed to bump campaign delivery stat")
			}
		}
		if r.metrics != nil {
			r.metrics.WebhookStatusUpdates.WithLabelValues(string(next)).Inc()
		}
		r.publishStatus(ctx, message, next)
	}

	historyEntry := model.WebhookEvent{
		Status:       event.Status,
		Timestamp:    at,
		ErrorMessage: errorMessage,
	}
	if len(event.Errors) > 0 {
		historyEntry.ErrorCode = strconv.Itoa(event.Errors[0].Code)
	}
	if err := r.messages.AppendWebhookEvent(ctx, message.ID, historyEntry); err != nil {
		r.releaseEvent(ctx, eventKey)
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

// releaseEvent hands a claimed dedupe key back after a transient failure.
// Without this the provider's redelivery of the same event would be
// dropped as a duplicate and the failure would become permanent.
func (r *Reconciler) releaseEvent(ctx context.Context, eventKey string) {
	if err := r.events.ClearProcessed(ctx, eventKey); err != nil {
		r.logger.Error().Err(err).Str("event_key", eventKey).Msg("failed to release dedupe key")
	}
}

func (r *Reconciler) applyInbound(ctx context.Context, value whatsapp.WebhookValue, inbound whatsapp.InboundMessage) error {
	eventKey := "inbound:" + inbound.ID
	first, err := r.events.MarkProcessed(ctx, eventKey)
	if err != nil {
		return fmt.Errorf("failed to dedupe inbound event: %w", err)
	}
	if !first {
		if r.metrics != nil {
			r.metrics.WebhookDuplicates.Inc()
		}
		return nil
	}

	// Second-line guard behind the dedupe table: an inbound row with this
	// provider id means the event was already applied, even if the key was
	// lost (retention trim, restore from backup).
	exists, err := r.messages.ExistsInbound(ctx, inbound.ID)
	if err != nil {
		r.releaseEvent(ctx, eventKey)
		return fmt.Errorf("failed to check for existing inbound message: %w", err)
	}
	if exists {
		if r.metrics != nil {
			r.metrics.WebhookDuplicates.Inc()
		}
		return nil
	}

	accountID, err := r.accounts.GetAccountIDByPhoneNumberID(ctx, value.Metadata.PhoneNumberID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrNotFound) {
			if r.metrics != nil {
				r.metrics.WebhookOrphans.Inc()
			}
			r.logger.Warn().
				Str("phone_number_id", value.Metadata.PhoneNumberID).
				Msg("inbound message for unrouted phone number")
			return nil
		}
		r.releaseEvent(ctx, eventKey)
		return fmt.Errorf("failed to resolve account: %w", err)
	}

	normalized := whatsapp.NormalizePhone(inbound.From)
	contact, err := r.contacts.GetByNormalizedPhone(ctx, accountID, normalized)
	if err != nil {
		if !apperrors.IsCode(err, apperrors.ErrNotFound) {
			r.releaseEvent(ctx, eventKey)
			return fmt.Errorf("failed to look up contact: %w", err)
		}
		contact = &model.Contact{
			AccountID:             accountID,
			PhoneNumber:           inbound.From,
			NormalizedPhoneNumber: normalized,
			FirstName:             profileName(value.Contacts, inbound.From),
			Status:                model.ContactStatusActive,
		}
		if err := r.contacts.Create(ctx, contact); err != nil {
			r.releaseEvent(ctx, eventKey)
			return fmt.Errorf("failed to create contact: %w", err)
		}
	}

	// A bare "unsubscribe" text is a global opt-out for this contact.
	if inbound.Type == "text" && inbound.Text != nil &&
		strings.EqualFold(strings.TrimSpace(inbound.Text.Body), "unsubscribe") {
		if err := r.contacts.SetUnsubscribed(ctx, contact.ID, true, time.Now()); err != nil {
			r.logger.Warn().Err(err).Str("contact_id", contact.ID.String()).Msg("failed to mark unsubscribed")
		} else {
			r.logger.Info().Str("contact_id", contact.ID.String()).Msg("contact unsubscribed")
		}
	}

	at := eventTime(inbound.Timestamp)
	var text string
	if inbound.Text != nil {
		text = inbound.Text.Body
	}
	message := &model.Message{
		AccountID:             accountID,
		ContactID:             contact.ID,
		WhatsAppMessageID:     inbound.ID,
		PhoneNumber:           inbound.From,
		NormalizedPhoneNumber: normalized,
		Direction:             model.DirectionInbound,
		Type:                  inboundType(inbound.Type),
		Status:                model.MessageStatusDelivered,
		Content: model.MessageContent{
			Text:     text,
			MediaURL: inbound.Media().MediaURL(),
		},
		SentDate:      &at,
		DeliveredDate: &at,
	}
	if err := r.messages.Create(ctx, message); err != nil {
		r.releaseEvent(ctx, eventKey)
		return fmt.Errorf("failed to create inbound message: %w", err)
	}

	if err := r.contacts.IncrementMessageStats(ctx, contact.ID, time.Now()); err != nil {
		r.logger.Warn().Err(err).Msg("failed to bump contact counters")
	}
	if r.metrics != nil {
		r.metrics.WebhookInboundCreated.Inc()
	}
	r.publishInbound(ctx, message)
	return nil
}

func (r *Reconciler) publishStatus(ctx context.Context, message *model.Message, status model.MessageStatus) {
	if r.broker == nil {
		return
	}
	event := messaging.MessageStatusEvent{
		MessageID:         message.ID.String(),
		WhatsAppMessageID: message.WhatsAppMessageID,
		Status:            string(status),
	}
	if err := r.broker.Publish(ctx, messaging.ChannelMessageStatus, event); err != nil {
		r.logger.Warn().Err(err).Msg("status publish failed")
	}
}

func (r *Reconciler) publishInbound(ctx context.Context, message *model.Message) {
	if r.broker == nil {
		return
	}
	event := messaging.MessageStatusEvent{
		MessageID:         message.ID.String(),
		WhatsAppMessageID: message.WhatsAppMessageID,
		Status:            string(message.Status),
	}
	if err := r.broker.Publish(ctx, messaging.ChannelInboundMessages, event); err != nil {
		r.logger.Warn().Err(err).Msg("inbound publish failed")
	}
}

// eventTime converts the provider's epoch-seconds string timestamp. An
// unparseable value falls back to the current time.
func eventTime(timestamp string) time.Time {
	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return time.Now()
	}
	return time.Unix(seconds, 0)
}

func inboundType(provider string) model.MessageType {
	switch provider {
	case "text":
		return model.MessageTypeText
	case "image":
		return model.MessageTypeImage
	case "video":
		return model.MessageTypeVideo
	case "document":
		return model.MessageTypeDocument
	case "audio":
		return model.MessageTypeAudio
	}
	return model.MessageTypeText
}

func profileName(contacts []whatsapp.InboundContact, waID string) string {
	for _, c := range contacts {
		if c.WaID == waID {
			return c.Profile.Name
		}
	}
	return ""
}
