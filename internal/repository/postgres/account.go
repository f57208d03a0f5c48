package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/internal/repository"
	apperrors "github.com/waflow/waflow/pkg/errors"
)

type accountRepository struct {
	BaseRepository
}

func NewAccountRepository(base BaseRepository) repository.AccountRepository {
	return &accountRepository{base}
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	query := `
		INSERT INTO accounts (
			id, email, password_hash, first_name, last_name, status, plan,
			message_limit, messages_used, quota_reset_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	account.ID = uuid.New()
	account.CreatedAt = time.Now()
	account.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.FirstName,
		account.LastName,
		account.Status,
		account.Plan,
		account.MessageLimit,
		account.MessagesUsed,
		account.QuotaResetAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (r *accountRepository) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, status, plan,
		       message_limit, messages_used, quota_reset_at, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	var account model.Account
	err := r.db.GetContext(ctx, &account, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("account", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, status, plan,
		       message_limit, messages_used, quota_reset_at, created_at, updated_at
		FROM accounts
		WHERE email = $1
	`
	var account model.Account
	err := r.db.GetContext(ctx, &account, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("account", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account by email: %w", err)
	}
	return &account, nil
}

func (r *accountRepository) Update(ctx context.Context, account *model.Account) error {
	query := `
		UPDATE accounts
		SET email = $1, first_name = $2, last_name = $3, status = $4, plan = $5,
		    message_limit = $6, messages_used = $7, quota_reset_at = $8, updated_at = $9
		WHERE id = $10
	`
	account.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		account.Email,
		account.FirstName,
		account.LastName,
		account.Status,
		account.Plan,
		account.MessageLimit,
		account.MessagesUsed,
		account.QuotaResetAt,
		account.UpdatedAt,
		account.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("account", nil)
	}

	return nil
}

func (r *accountRepository) GetQuota(ctx context.Context, id uuid.UUID) (int, int, error) {
	query := `
		SELECT messages_used, message_limit
		FROM accounts
		WHERE id = $1
	`
	var row struct {
		Used  int `db:"messages_used"`
		Limit int `db:"message_limit"`
	}
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return 0, 0, fmt.Errorf("failed to get quota: %w", err)
	}
	return row.Used, row.Limit, nil
}

// ConsumeQuota uses an increment-with-ceiling so that concurrent senders
// cannot push usage past the limit.
func (r *accountRepository) ConsumeQuota(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE accounts
		SET messages_used = messages_used + 1, updated_at = $1
		WHERE id = $2 AND messages_used < message_limit
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to consume quota: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// ReleaseQuota refunds a unit claimed for a dispatch that ultimately
// failed at the provider.
func (r *accountRepository) ReleaseQuota(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE accounts
		SET messages_used = messages_used - 1, updated_at = $1
		WHERE id = $2 AND messages_used > 0
	`
	if _, err := r.db.ExecContext(ctx, query, time.Now(), id); err != nil {
		return fmt.Errorf("failed to release quota: %w", err)
	}
	return nil
}

func (r *accountRepository) GetWhatsAppConfig(ctx context.Context, accountID uuid.UUID) (*model.WhatsAppConfig, error) {
	query := `
		SELECT account_id, business_account_id, access_token, phone_number_id,
		       webhook_verify_token, updated_at
		FROM whatsapp_configs
		WHERE account_id = $1
	`
	var config model.WhatsAppConfig
	err := r.db.GetContext(ctx, &config, query, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("whatsapp config", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get whatsapp config: %w", err)
	}
	return &config, nil
}

// SaveWhatsAppConfig upserts the credential set and maintains the
// phone_number_routes mapping in the same transaction, so inbound webhook
// routing is always consistent with the stored credentials.
func (r *accountRepository) SaveWhatsAppConfig(ctx context.Context, config *model.WhatsAppConfig) error {
	config.UpdatedAt = time.Now()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		configQuery := `
			INSERT INTO whatsapp_configs (
				account_id, business_account_id, access_token, phone_number_id,
				webhook_verify_token, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (account_id) DO UPDATE SET
				business_account_id = EXCLUDED.business_account_id,
				access_token = EXCLUDED.access_token,
				phone_number_id = EXCLUDED.phone_number_id,
				webhook_verify_token = EXCLUDED.webhook_verify_token,
				updated_at = EXCLUDED.updated_at
		`
		if _, err := tx.ExecContext(ctx, configQuery,
			config.AccountID,
			config.BusinessAccountID,
			config.AccessToken,
			config.PhoneNumberID,
			config.WebhookVerifyToken,
			config.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to save whatsapp config: %w", err)
		}

		if config.PhoneNumberID == "" {
			return nil
		}

		routeQuery := `
			INSERT INTO phone_number_routes (phone_number_id, account_id, updated_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (phone_number_id) DO UPDATE SET
				account_id = EXCLUDED.account_id,
				updated_at = EXCLUDED.updated_at
		`
		if _, err := tx.ExecContext(ctx, routeQuery,
			config.PhoneNumberID,
			config.AccountID,
			config.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to save phone number route: %w", err)
		}
		return nil
	})
}

func (r *accountRepository) GetAccountIDByPhoneNumberID(ctx context.Context, phoneNumberID string) (uuid.UUID, error) {
	query := `
		SELECT account_id
		FROM phone_number_routes
		WHERE phone_number_id = $1
	`
	var accountID uuid.UUID
	err := r.db.GetContext(ctx, &accountID, query, phoneNumberID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, apperrors.NewNotFound("phone number route", err)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve phone number route: %w", err)
	}
	return accountID, nil
}
