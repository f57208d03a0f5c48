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

type templateRepository struct {
	BaseRepository
}

func NewTemplateRepository(base BaseRepository) repository.TemplateRepository {
	return &templateRepository{base}
}

const templateColumns = `
	id, account_id, name, language, status, category, components, header_type,
	header_requires_param, body_parameters, synced_at, created_at, updated_at
`

// Upsert keys on (account_id, name): the provider treats template names as
// identifiers, so syncing the catalog overwrites the local copy in place.
func (r *templateRepository) Upsert(ctx context.Context, template *model.Template) error {
	query := `
		INSERT INTO templates (
			id, account_id, name, language, status, category, components,
			header_type, header_requires_param, body_parameters, synced_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (account_id, name) DO UPDATE SET
			language = EXCLUDED.language,
			status = EXCLUDED.status,
			category = EXCLUDED.category,
			components = EXCLUDED.components,
			header_type = EXCLUDED.header_type,
			header_requires_param = EXCLUDED.header_requires_param,
			body_parameters = EXCLUDED.body_parameters,
			synced_at = EXCLUDED.synced_at,
			updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	if template.ID == uuid.Nil {
		template.ID = uuid.New()
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		template.ID,
		template.AccountID,
		template.Name,
		template.Language,
		template.Status,
		template.Category,
		template.Components,
		template.HeaderType,
		template.HeaderRequiresParam,
		template.BodyParameters,
		template.SyncedAt,
		template.CreatedAt,
		template.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert template: %w", err)
	}
	return nil
}

func (r *templateRepository) Get(ctx context.Context, accountID, id uuid.UUID) (*model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE account_id = $1 AND id = $2`

	var template model.Template
	err := r.db.GetContext(ctx, &template, query, accountID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("template", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &template, nil
}

func (r *templateRepository) GetByName(ctx context.Context, accountID uuid.UUID, name string) (*model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE account_id = $1 AND name = $2`

	var template model.Template
	err := r.db.GetContext(ctx, &template, query, accountID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFound("template", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template by name: %w", err)
	}
	return &template, nil
}

func (r *templateRepository) List(ctx context.Context, accountID uuid.UUID) ([]*model.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE account_id = $1 ORDER BY name ASC`

	var templates []*model.Template
	if err := r.db.SelectContext(ctx, &templates, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

func (r *templateRepository) DeleteByName(ctx context.Context, accountID uuid.UUID, name string) error {
	query := `DELETE FROM templates WHERE account_id = $1 AND name = $2`

	result, err := r.db.ExecContext(ctx, query, accountID, name)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NewNotFound("template", nil)
	}
	return nil
}
