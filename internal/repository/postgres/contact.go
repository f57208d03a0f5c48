package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/internal/repository"
	apperrors "github.com/waflow/waflow/pkg/errors"
)

type contactRepository struct {
	BaseRepository
}

func NewContactRepository(base BaseRepository) repository.ContactRepository {
	return &contactRepository{base}
}

const contactColumns = `
	id, account_id, phone_number, normalized_phone_number, first_name, last_name,
	email, tags, is_unsubscribed, unsubscribe_date, last_message_date,
	message_count, status, created_at, updated_at
`

func (r *contactRepository) Create(ctx context.Context, contact *model.Contact) error {
	query := `
		INSERT INTO contacts (
			id, account_id, phone_number, normalized_phone_number, first_name,
			last_name, email, tags, is_unsubscribed, message_count, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	contact.ID = uuid.New()
	contact.CreatedAt = time.Now()
	contact.UpdatedAt = time.Now()
	if contact.Status == "" {
		contact.Status = model.ContactStatusActive
	}
	if contact.Tags == nil {
		contact.Tags = pq.StringArray{}
	}

	_, err := r.db.ExecContext(ctx, query,
		contact.ID,
		contact.AccountID,
		contact.PhoneNumber,
		contact.NormalizedPhoneNumber,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Tags,
		contact.IsUnsubscribed,
		contact.MessageCount,
		contact.Status,
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return apperrors.NewConflict("contact with this phone number already exists", err)
		}
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

func (r *contactRepository) Get(ctx context.Context, accountID, id uuid.UUID) (*model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE account_id = $1 AND id = $2`

	var contact model.Contact
	err := r.db.GetContext(ctx, &contact, query, accountID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("contact", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &contact, nil
}

func (r *contactRepository) GetByNormalizedPhone(ctx context.Context, accountID uuid.UUID, normalized string) (*model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE account_id = $1 AND normalized_phone_number = $2`

	var contact model.Contact
	err := r.db.GetContext(ctx, &contact, query, accountID, normalized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("contact", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact by phone: %w", err)
	}
	return &contact, nil
}

func (r *contactRepository) List(ctx context.Context, accountID uuid.UUID, filters *model.ContactFilters) ([]*model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE account_id = $1`
	args := []interface{}{accountID}

	if filters != nil {
		if filters.Status != "" {
			args = append(args, filters.Status)
			query += fmt.Sprintf(" AND status = $%d", len(args))
		}
		if filters.ExcludeUnsubscribed {
			query += " AND is_unsubscribed = false"
		}
		if len(filters.Tags) > 0 {
			args = append(args, pq.StringArray(filters.Tags))
			query += fmt.Sprintf(" AND tags && $%d", len(args))
		}
		if filters.Search != "" {
			args = append(args, "%"+strings.ToLower(filters.Search)+"%")
			n := len(args)
			query += fmt.Sprintf(" AND (lower(first_name) LIKE $%d OR lower(last_name) LIKE $%d OR normalized_phone_number LIKE $%d)", n, n, n)
		}
	}
	query += " ORDER BY created_at DESC"

	var contacts []*model.Contact
	if err := r.db.SelectContext(ctx, &contacts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

func (r *contactRepository) ListSendableByIDs(ctx context.Context, accountID uuid.UUID, ids []uuid.UUID) ([]*model.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE account_id = $1 AND id = ANY($2)
		  AND status = 'active' AND is_unsubscribed = false
		ORDER BY created_at ASC
	`
	var contacts []*model.Contact
	if err := r.db.SelectContext(ctx, &contacts, query, accountID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to list campaign contacts: %w", err)
	}
	return contacts, nil
}

func (r *contactRepository) Update(ctx context.Context, contact *model.Contact) error {
	query := `
		UPDATE contacts
		SET phone_number = $1, normalized_phone_number = $2, first_name = $3,
		    last_name = $4, email = $5, tags = $6, status = $7, updated_at = $8
		WHERE account_id = $9 AND id = $10
	`
	contact.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		contact.PhoneNumber,
		contact.NormalizedPhoneNumber,
		contact.FirstName,
		contact.LastName,
		contact.Email,
		contact.Tags,
		contact.Status,
		contact.UpdatedAt,
		contact.AccountID,
		contact.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("contact", nil)
	}
	return nil
}

func (r *contactRepository) Delete(ctx context.Context, accountID, id uuid.UUID) error {
	query := `DELETE FROM contacts WHERE account_id = $1 AND id = $2`

	result, err := r.db.ExecContext(ctx, query, accountID, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("contact", nil)
	}
	return nil
}

func (r *contactRepository) SetUnsubscribed(ctx context.Context, id uuid.UUID, unsubscribed bool, at time.Time) error {
	query := `
		UPDATE contacts
		SET is_unsubscribed = $1,
		    unsubscribe_date = CASE WHEN $1 THEN $2 ELSE NULL END,
		    updated_at = $2
		WHERE id = $3
	`
	if _, err := r.db.ExecContext(ctx, query, unsubscribed, at, id); err != nil {
		return fmt.Errorf("failed to update subscription state: %w", err)
	}
	return nil
}

func (r *contactRepository) IncrementMessageStats(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE contacts
		SET message_count = message_count + 1, last_message_date = $1, updated_at = $1
		WHERE id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, at, id); err != nil {
		return fmt.Errorf("failed to increment contact message stats: %w", err)
	}
	return nil
}
