package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/waflow/waflow/internal/repository"
)

type webhookEventRepository struct {
	BaseRepository
}

func NewWebhookEventRepository(base BaseRepository) repository.WebhookEventRepository {
	return &webhookEventRepository{base}
}

// MarkProcessed records the dedupe key. ON CONFLICT DO NOTHING makes the
// insert race-safe: whichever caller lands the row first owns the event.
func (r *webhookEventRepository) MarkProcessed(ctx context.Context, eventKey string) (bool, error) {
	query := `
		INSERT INTO processed_webhook_events (event_key, received_at)
		VALUES ($1, $2)
		ON CONFLICT (event_key) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, eventKey, time.Now())
	if err != nil {
		return false, fmt.Errorf("failed to mark webhook event processed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// ClearProcessed gives the key back after a failed application so the
// provider's redelivery gets a fresh attempt.
func (r *webhookEventRepository) ClearProcessed(ctx context.Context, eventKey string) error {
	query := `DELETE FROM processed_webhook_events WHERE event_key = $1`
	if _, err := r.db.ExecContext(ctx, query, eventKey); err != nil {
		return fmt.Errorf("failed to clear webhook event key: %w", err)
	}
	return nil
}
