package template

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/internal/repository"
	"github.com/waflow/waflow/internal/whatsapp"
	apperrors "github.com/waflow/waflow/pkg/errors"
)

const (
	analysisCacheTTL     = 10 * time.Minute
	analysisCacheCleanup = 30 * time.Minute
)

// Provider is the slice of the WhatsApp client the template service needs.
type Provider interface {
	FetchAllTemplates(ctx context.Context, creds whatsapp.Credentials) ([]whatsapp.TemplateDefinition, error)
	FetchTemplateDetails(ctx context.Context, creds whatsapp.Credentials, name string) (*whatsapp.TemplateDefinition, error)
	CreateTemplate(ctx context.Context, creds whatsapp.Credentials, definition map[string]interface{}) error
	DeleteTemplate(ctx context.Context, creds whatsapp.Credentials, name string) error
}

type Service struct {
	templates repository.TemplateRepository
	accounts  repository.AccountRepository
	provider  Provider
	cache     *gocache.Cache
	logger    zerolog.Logger
}

func NewService(templates repository.TemplateRepository, accounts repository.AccountRepository, provider Provider, logger zerolog.Logger) *Service {
	return &Service{
		templates: templates,
		accounts:  accounts,
		provider:  provider,
		cache:     gocache.New(analysisCacheTTL, analysisCacheCleanup),
		logger:    logger.With().Str("component", "template_service").Logger(),
	}
}

func (s *Service) credentials(ctx context.Context, accountID uuid.UUID) (whatsapp.Credentials, error) {
	config, err := s.accounts.GetWhatsAppConfig(ctx, accountID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrNotFound) {
			return whatsapp.Credentials{}, apperrors.NewBadRequest("whatsapp is not configured for this account", err)
		}
		return whatsapp.Credentials{}, err
	}
	if !config.Configured() {
		return whatsapp.Credentials{}, apperrors.NewBadRequest("whatsapp configuration is incomplete", nil)
	}
	return whatsapp.Credentials{
		AccessToken:       config.AccessToken,
		PhoneNumberID:     config.PhoneNumberID,
		BusinessAccountID: config.BusinessAccountID,
	}, nil
}

// Sync pulls the full provider catalog and upserts each entry with its
// analyzed parameter shape. Returns the number of templates synced.
func (s *Service) Sync(ctx context.Context, accountID uuid.UUID) (int, error) {
	creds, err := s.credentials(ctx, accountID)
	if err != nil {
		return 0, err
	}

	definitions, err := s.provider.FetchAllTemplates(ctx, creds)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch template catalog: %w", err)
	}

	now := time.Now()
	for _, def := range definitions {
		analysis := whatsapp.AnalyzeTemplate(def.Name, def.Language, def.Components)
		tmpl := &model.Template{
			AccountID:           accountID,
			Name:                def.Name,
			Language:            analysis.Language,
			Status:              model.TemplateStatus(def.Status),
			Category:            def.Category,
			Components:          def.Components,
			HeaderType:          analysis.HeaderType,
			HeaderRequiresParam: analysis.HeaderRequiresParam,
			BodyParameters:      analysis.BodyParameters,
			SyncedAt:            &now,
		}
		if err := s.templates.Upsert(ctx, tmpl); err != nil {
			return 0, fmt.Errorf("failed to store template %q: %w", def.Name, err)
		}
		s.cache.Set(analysisCacheKey(accountID, def.Name), analysis, gocache.DefaultExpiration)
	}

	s.logger.Info().
		Str("account_id", accountID.String()).
		Int("count", len(definitions)).
		Msg("template catalog synced")
	return len(definitions), nil
}

// Analysis returns the parameter shape for a template, served from cache
// when fresh. Cache misses fall back to the locally synced copy before
// asking the provider.
func (s *Service) Analysis(ctx context.Context, accountID uuid.UUID, name string) (whatsapp.Analysis, error) {
	key := analysisCacheKey(accountID, name)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(whatsapp.Analysis), nil
	}

	tmpl, err := s.templates.GetByName(ctx, accountID, name)
	if err == nil {
		analysis := whatsapp.AnalyzeTemplate(tmpl.Name, tmpl.Language, tmpl.Components)
		s.cache.Set(key, analysis, gocache.DefaultExpiration)
		return analysis, nil
	}
	if !apperrors.IsCode(err, apperrors.ErrNotFound) {
		return whatsapp.Analysis{}, err
	}

	creds, err := s.credentials(ctx, accountID)
	if err != nil {
		return whatsapp.Analysis{}, err
	}
	def, err := s.provider.FetchTemplateDetails(ctx, creds, name)
	if err != nil {
		return whatsapp.Analysis{}, err
	}

	analysis := whatsapp.AnalyzeTemplate(def.Name, def.Language, def.Components)
	s.cache.Set(key, analysis, gocache.DefaultExpiration)
	return analysis, nil
}

func (s *Service) Get(ctx context.Context, accountID, id uuid.UUID) (*model.Template, error) {
	return s.templates.Get(ctx, accountID, id)
}

func (s *Service) List(ctx context.Context, accountID uuid.UUID) ([]*model.Template, error) {
	return s.templates.List(ctx, accountID)
}

// Create submits a template definition for provider review and refreshes
// the local catalog.
func (s *Service) Create(ctx context.Context, accountID uuid.UUID, definition map[string]interface{}) error {
	creds, err := s.credentials(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.provider.CreateTemplate(ctx, creds, definition); err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	if _, err := s.Sync(ctx, accountID); err != nil {
		s.logger.Warn().Err(err).Msg("catalog refresh after create failed")
	}
	return nil
}

// Delete removes the template at the provider and locally, and drops any
// cached analysis.
func (s *Service) Delete(ctx context.Context, accountID uuid.UUID, name string) error {
	creds, err := s.credentials(ctx, accountID)
	if err != nil {
		return err
	}
	if err := s.provider.DeleteTemplate(ctx, creds, name); err != nil {
		return fmt.Errorf("failed to delete template at provider: %w", err)
	}

	s.cache.Delete(analysisCacheKey(accountID, name))

	if err := s.templates.DeleteByName(ctx, accountID, name); err != nil && !apperrors.IsCode(err, apperrors.ErrNotFound) {
		return err
	}
	return nil
}

func analysisCacheKey(accountID uuid.UUID, name string) string {
	return accountID.String() + ":" + name
}
