package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/internal/repository"
	apperrors "github.com/waflow/waflow/pkg/errors"
)

type campaignRepository struct {
	BaseRepository
}

func NewCampaignRepository(base BaseRepository) repository.CampaignRepository {
	return &campaignRepository{base}
}

// campaignRow flattens the stats and settings columns stored inline on the
// campaigns table.
type campaignRow struct {
	model.Campaign
	TotalContacts        int  `db:"total_contacts"`
	MessagesSent         int  `db:"messages_sent"`
	MessagesDelivered    int  `db:"messages_delivered"`
	MessagesRead         int  `db:"messages_read"`
	MessagesFailed       int  `db:"messages_failed"`
	MessagesSkipped      int  `db:"messages_skipped"`
	BatchSize            int  `db:"batch_size"`
	DelayBetweenMessages int  `db:"delay_between_messages"`
	RetryFailedMessages  bool `db:"retry_failed_messages"`
	MaxRetries           int  `db:"max_retries"`
}

func (row *campaignRow) toModel() *model.Campaign {
	c := row.Campaign
	c.Stats = model.CampaignStats{
		TotalContacts:     row.TotalContacts,
		MessagesSent:      row.MessagesSent,
		MessagesDelivered: row.MessagesDelivered,
		MessagesRead:      row.MessagesRead,
		MessagesFailed:    row.MessagesFailed,
		MessagesSkipped:   row.MessagesSkipped,
	}
	c.Settings = model.CampaignSettings{
		BatchSize:            row.BatchSize,
		DelayBetweenMessages: row.DelayBetweenMessages,
		RetryFailedMessages:  row.RetryFailedMessages,
		MaxRetries:           row.MaxRetries,
	}
	return &c
}

const campaignColumns = `
	id, account_id, name, description, template_id, status, scheduled_date,
	start_date, end_date, header_value, body_parameters,
	total_contacts, messages_sent, messages_delivered, messages_read,
	messages_failed, messages_skipped,
	batch_size, delay_between_messages, retry_failed_messages, max_retries,
	created_at, updated_at
`

// Create persists the campaign and its materialized contact list in one
// transaction. The list is resolved once, here; runs read it back later.
func (r *campaignRepository) Create(ctx context.Context, campaign *model.Campaign) error {
	campaign.ID = uuid.New()
	campaign.CreatedAt = time.Now()
	campaign.UpdatedAt = time.Now()
	if campaign.Status == "" {
		campaign.Status = model.CampaignStatusDraft
	}
	if campaign.BodyParameters == nil {
		campaign.BodyParameters = pq.StringArray{}
	}
	campaign.Stats.TotalContacts = len(campaign.ContactIDs)

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO campaigns (
				id, account_id, name, description, template_id, status,
				scheduled_date, header_value, body_parameters,
				total_contacts, batch_size, delay_between_messages,
				retry_failed_messages, max_retries, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`
		if _, err := tx.ExecContext(ctx, query,
			campaign.ID,
			campaign.AccountID,
			campaign.Name,
			campaign.Description,
			campaign.TemplateID,
			campaign.Status,
			campaign.ScheduledDate,
			campaign.HeaderValue,
			campaign.BodyParameters,
			campaign.Stats.TotalContacts,
			campaign.Settings.BatchSize,
			campaign.Settings.DelayBetweenMessages,
			campaign.Settings.RetryFailedMessages,
			campaign.Settings.MaxRetries,
			campaign.CreatedAt,
			campaign.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to create campaign: %w", err)
		}

		for i, contactID := range campaign.ContactIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO campaign_contacts (campaign_id, contact_id, position) VALUES ($1, $2, $3)`,
				campaign.ID, contactID, i,
			); err != nil {
				return fmt.Errorf("failed to attach campaign contact: %w", err)
			}
		}
		return nil
	})
}

func (r *campaignRepository) Get(ctx context.Context, accountID, id uuid.UUID) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE account_id = $1 AND id = $2`

	var row campaignRow
	err := r.db.GetContext(ctx, &row, query, accountID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("campaign", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	campaign := row.toModel()
	contactIDs, err := r.GetContactIDs(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	campaign.ContactIDs = contactIDs
	return campaign, nil
}

func (r *campaignRepository) List(ctx context.Context, accountID uuid.UUID) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE account_id = $1 ORDER BY created_at DESC`

	var rows []campaignRow
	if err := r.db.SelectContext(ctx, &rows, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	campaigns := make([]*model.Campaign, 0, len(rows))
	for i := range rows {
		campaigns = append(campaigns, rows[i].toModel())
	}
	return campaigns, nil
}

func (r *campaignRepository) Update(ctx context.Context, campaign *model.Campaign) error {
	query := `
		UPDATE campaigns
		SET name = $1, description = $2, scheduled_date = $3, header_value = $4,
		    body_parameters = $5, batch_size = $6, delay_between_messages = $7,
		    retry_failed_messages = $8, max_retries = $9, updated_at = $10
		WHERE account_id = $11 AND id = $12
	`
	campaign.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		campaign.Name,
		campaign.Description,
		campaign.ScheduledDate,
		campaign.HeaderValue,
		campaign.BodyParameters,
		campaign.Settings.BatchSize,
		campaign.Settings.DelayBetweenMessages,
		campaign.Settings.RetryFailedMessages,
		campaign.Settings.MaxRetries,
		campaign.UpdatedAt,
		campaign.AccountID,
		campaign.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("campaign", nil)
	}
	return nil
}

func (r *campaignRepository) Delete(ctx context.Context, accountID, id uuid.UUID) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM campaign_contacts WHERE campaign_id = $1`, id,
		); err != nil {
			return fmt.Errorf("failed to delete campaign contacts: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`DELETE FROM campaigns WHERE account_id = $1 AND id = $2`, accountID, id,
		)
		if err != nil {
			return fmt.Errorf("failed to delete campaign: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rows == 0 {
			return apperrors.NewNotFound("campaign", nil)
		}
		return nil
	})
}

func (r *campaignRepository) GetStatus(ctx context.Context, id uuid.UUID) (model.CampaignStatus, error) {
	var status model.CampaignStatus
	err := r.db.GetContext(ctx, &status, `SELECT status FROM campaigns WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NewNotFound("campaign", err)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get campaign status: %w", err)
	}
	return status, nil
}

func (r *campaignRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.CampaignStatus) error {
	query := `UPDATE campaigns SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, time.Now(), id); err != nil {
		return fmt.Errorf("failed to update campaign status: %w", err)
	}
	return nil
}

func (r *campaignRepository) MarkRunning(ctx context.Context, id uuid.UUID, start time.Time) error {
	query := `UPDATE campaigns SET status = $1, start_date = $2, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, model.CampaignStatusRunning, start, id); err != nil {
		return fmt.Errorf("failed to mark campaign running: %w", err)
	}
	return nil
}

func (r *campaignRepository) MarkCompleted(ctx context.Context, id uuid.UUID, end time.Time, stats model.CampaignStats) error {
	query := `
		UPDATE campaigns
		SET status = $1, end_date = $2, messages_sent = $3, messages_failed = $4,
		    messages_skipped = $5, updated_at = $2
		WHERE id = $6
	`
	if _, err := r.db.ExecContext(ctx, query,
		model.CampaignStatusCompleted, end,
		stats.MessagesSent, stats.MessagesFailed, stats.MessagesSkipped, id,
	); err != nil {
		return fmt.Errorf("failed to mark campaign completed: %w", err)
	}
	return nil
}

func (r *campaignRepository) UpdateStats(ctx context.Context, id uuid.UUID, stats model.CampaignStats) error {
	query := `
		UPDATE campaigns
		SET messages_sent = $1, messages_failed = $2, messages_skipped = $3, updated_at = $4
		WHERE id = $5
	`
	if _, err := r.db.ExecContext(ctx, query,
		stats.MessagesSent, stats.MessagesFailed, stats.MessagesSkipped, time.Now(), id,
	); err != nil {
		return fmt.Errorf("failed to update campaign stats: %w", err)
	}
	return nil
}

func (r *campaignRepository) IncrementDeliveryStat(ctx context.Context, id uuid.UUID, status model.MessageStatus) error {
	var column string
	switch status {
	case model.MessageStatusDelivered:
		column = "messages_delivered"
	case model.MessageStatusRead:
		column = "messages_read"
	default:
		return nil
	}

	query := fmt.Sprintf(`UPDATE campaigns SET %s = %s + 1, updated_at = $1 WHERE id = $2`, column, column)
	if _, err := r.db.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("failed to increment campaign delivery stat: %w", err)
	}
	return nil
}

func (r *campaignRepository) GetContactIDs(ctx context.Context, campaignID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT contact_id
		FROM campaign_contacts
		WHERE campaign_id = $1
		ORDER BY position ASC
	`
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to get campaign contact ids: %w", err)
	}
	return ids, nil
}

func (r *campaignRepository) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = $1 AND scheduled_date IS NOT NULL AND scheduled_date <= $2
		ORDER BY scheduled_date ASC
		LIMIT $3
	`
	var rows []campaignRow
	if err := r.db.SelectContext(ctx, &rows, query, model.CampaignStatusScheduled, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list due scheduled campaigns: %w", err)
	}

	campaigns := make([]*model.Campaign, 0, len(rows))
	for i := range rows {
		campaigns = append(campaigns, rows[i].toModel())
	}
	return campaigns, nil
}
