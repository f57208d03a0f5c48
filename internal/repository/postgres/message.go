package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/internal/repository"
	apperrors "github.com/waflow/waflow/pkg/errors"
)

type messageRepository struct {
	BaseRepository
}

func NewMessageRepository(base BaseRepository) repository.MessageRepository {
	return &messageRepository{base}
}

const messageColumns = `
	id, account_id, contact_id, template_id, campaign_id, reply_to_message_id,
	whatsapp_message_id, phone_number, normalized_phone_number, direction, type,
	status, content, sent_date, delivered_date, read_date, failure_reason,
	error_message, webhook_events, created_at, updated_at
`

func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	query := `
		INSERT INTO messages (
			id, account_id, contact_id, template_id, campaign_id,
			reply_to_message_id, whatsapp_message_id, phone_number,
			normalized_phone_number, direction, type, status, content,
			sent_date, failure_reason, error_message, webhook_events,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	message.CreatedAt = time.Now()
	message.UpdatedAt = message.CreatedAt
	if message.WebhookEvents == nil {
		message.WebhookEvents = model.WebhookEvents{}
	}

	_, err := r.db.ExecContext(ctx, query,
		message.ID,
		message.AccountID,
		message.ContactID,
		message.TemplateID,
		message.CampaignID,
		message.ReplyToMessageID,
		message.WhatsAppMessageID,
		message.PhoneNumber,
		message.NormalizedPhoneNumber,
		message.Direction,
		message.Type,
		message.Status,
		message.Content,
		message.SentDate,
		message.FailureReason,
		message.ErrorMessage,
		message.WebhookEvents,
		message.CreatedAt,
		message.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *messageRepository) Get(ctx context.Context, accountID, id uuid.UUID) (*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE account_id = $1 AND id = $2`

	var message model.Message
	err := r.db.GetContext(ctx, &message, query, accountID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("message", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return &message, nil
}

func (r *messageRepository) GetByWhatsAppID(ctx context.Context, whatsappMessageID string) (*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE whatsapp_message_id = $1`

	var message model.Message
	err := r.db.GetContext(ctx, &message, query, whatsappMessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("message", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message by provider id: %w", err)
	}
	return &message, nil
}

func (r *messageRepository) List(ctx context.Context, accountID uuid.UUID, filters *model.MessageFilters) ([]*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE account_id = $1`
	args := []interface{}{accountID}

	if filters != nil {
		if filters.ContactID != nil {
			args = append(args, *filters.ContactID)
			query += fmt.Sprintf(" AND contact_id = $%d", len(args))
		}
		if filters.CampaignID != nil {
			args = append(args, *filters.CampaignID)
			query += fmt.Sprintf(" AND campaign_id = $%d", len(args))
		}
		if filters.Direction != "" {
			args = append(args, filters.Direction)
			query += fmt.Sprintf(" AND direction = $%d", len(args))
		}
		if filters.Status != "" {
			args = append(args, filters.Status)
			query += fmt.Sprintf(" AND status = $%d", len(args))
		}
	}
	query += " ORDER BY created_at DESC"

	limit := 50
	offset := 0
	if filters != nil {
		if filters.Limit > 0 {
			limit = filters.Limit
		}
		if filters.Offset > 0 {
			offset = filters.Offset
		}
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	var messages []*model.Message
	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (r *messageRepository) MarkSent(ctx context.Context, id uuid.UUID, whatsappMessageID string, at time.Time) error {
	query := `
		UPDATE messages
		SET status = $1, whatsapp_message_id = $2, sent_date = $3, updated_at = $3
		WHERE id = $4
	`
	if _, err := r.db.ExecContext(ctx, query, model.MessageStatusSent, whatsappMessageID, at, id); err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}
	return nil
}

func (r *messageRepository) MarkFailed(ctx context.Context, id uuid.UUID, failureReason, errorMessage string) error {
	query := `
		UPDATE messages
		SET status = $1, failure_reason = $2, error_message = $3, updated_at = $4
		WHERE id = $5
	`
	if _, err := r.db.ExecContext(ctx, query, model.MessageStatusFailed, failureReason, errorMessage, time.Now(), id); err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}
	return nil
}

func (r *messageRepository) UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, status model.MessageStatus, at time.Time, failureReason, errorMessage string) error {
	var dateColumn string
	switch status {
	case model.MessageStatusDelivered:
		dateColumn = "delivered_date"
	case model.MessageStatusRead:
		dateColumn = "read_date"
	}

	query := `UPDATE messages SET status = $1, failure_reason = $2, error_message = $3, updated_at = $4`
	args := []interface{}{status, failureReason, errorMessage, time.Now()}
	if dateColumn != "" {
		args = append(args, at)
		query += fmt.Sprintf(", %s = $%d", dateColumn, len(args))
	}
	args = append(args, id)
	query += fmt.Sprintf(" WHERE id = $%d", len(args))

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update message delivery status: %w", err)
	}
	return nil
}

// AppendWebhookEvent pushes one history entry onto the jsonb array without
// rewriting the rest of the row.
func (r *messageRepository) AppendWebhookEvent(ctx context.Context, id uuid.UUID, event model.WebhookEvent) error {
	payload, err := model.WebhookEvents{event}.Value()
	if err != nil {
		return fmt.Errorf("failed to encode webhook event: %w", err)
	}

	query := `
		UPDATE messages
		SET webhook_events = COALESCE(webhook_events, '[]'::jsonb) || $1::jsonb,
		    updated_at = $2
		WHERE id = $3
	`
	if _, err := r.db.ExecContext(ctx, query, payload, time.Now(), id); err != nil {
		return fmt.Errorf("failed to append webhook event: %w", err)
	}
	return nil
}

func (r *messageRepository) ExistsInbound(ctx context.Context, whatsappMessageID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM messages
			WHERE whatsapp_message_id = $1 AND direction = $2
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, whatsappMessageID, model.DirectionInbound); err != nil {
		return false, fmt.Errorf("failed to check inbound message: %w", err)
	}
	return exists, nil
}
