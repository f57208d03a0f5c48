package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/internal/repository"
	"github.com/waflow/waflow/internal/whatsapp"
	apperrors "github.com/waflow/waflow/pkg/errors"
)

type Service struct {
	campaigns repository.CampaignRepository
	contacts  repository.ContactRepository
	templates repository.TemplateRepository
	accounts  repository.AccountRepository
	runner    *Runner
	validate  *validator.Validate
	logger    zerolog.Logger
}

func NewService(
	campaigns repository.CampaignRepository,
	contacts repository.ContactRepository,
	templates repository.TemplateRepository,
	accounts repository.AccountRepository,
	runner *Runner,
	logger zerolog.Logger,
) *Service {
	return &Service{
		campaigns: campaigns,
		contacts:  contacts,
		templates: templates,
		accounts:  accounts,
		runner:    runner,
		validate:  validator.New(),
		logger:    logger.With().Str("component", "campaign_service").Logger(),
	}
}

type CreateInput struct {
	Name           string
	Description    string
	TemplateID     uuid.UUID
	ScheduledDate  *time.Time
	ContactIDs     []uuid.UUID
	ContactFilters *model.ContactFilters
	HeaderValue    string
	BodyParameters []string
	Settings       *model.CampaignSettings
}

// Create validates the campaign and materializes its contact list. The
// list is resolved exactly once here, from explicit IDs or from filters.
func (s *Service) Create(ctx context.Context, accountID uuid.UUID, input CreateInput) (*model.Campaign, error) {
	if input.Name == "" {
		return nil, apperrors.NewBadRequest("campaign name is required", nil)
	}

	template, err := s.templates.Get(ctx, accountID, input.TemplateID)
	if err != nil {
		return nil, err
	}
	if !template.IsApproved() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("template %q is not approved", template.Name), nil)
	}

	contactIDs := input.ContactIDs
	if len(contactIDs) == 0 && input.ContactFilters != nil {
		input.ContactFilters.ExcludeUnsubscribed = true
		matched, err := s.contacts.List(ctx, accountID, input.ContactFilters)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve contact filters: %w", err)
		}
		for _, c := range matched {
			contactIDs = append(contactIDs, c.ID)
		}
	}
	if len(contactIDs) == 0 {
		return nil, apperrors.NewBadRequest("campaign has no target contacts", nil)
	}

	settings := model.DefaultCampaignSettings()
	if input.Settings != nil {
		settings = *input.Settings
	}
	if err := s.validate.Struct(settings); err != nil {
		return nil, apperrors.NewBadRequest("invalid campaign settings", err)
	}

	status := model.CampaignStatusDraft
	if input.ScheduledDate != nil {
		status = model.CampaignStatusScheduled
	}

	campaign := &model.Campaign{
		AccountID:      accountID,
		Name:           input.Name,
		Description:    input.Description,
		TemplateID:     input.TemplateID,
		Status:         status,
		ScheduledDate:  input.ScheduledDate,
		ContactIDs:     contactIDs,
		HeaderValue:    input.HeaderValue,
		BodyParameters: input.BodyParameters,
		Settings:       settings,
	}
	if err := s.campaigns.Create(ctx, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

func (s *Service) Get(ctx context.Context, accountID, id uuid.UUID) (*model.Campaign, error) {
	return s.campaigns.Get(ctx, accountID, id)
}

func (s *Service) List(ctx context.Context, accountID uuid.UUID) ([]*model.Campaign, error) {
	return s.campaigns.List(ctx, accountID)
}

type UpdateInput struct {
	Name           string
	Description    string
	ScheduledDate  *time.Time
	HeaderValue    string
	BodyParameters []string
	Settings       *model.CampaignSettings
}

// Update edits a campaign that has not started. The contact list is fixed
// at creation and cannot be changed here.
func (s *Service) Update(ctx context.Context, accountID, id uuid.UUID, input UpdateInput) (*model.Campaign, error) {
	campaign, err := s.campaigns.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != model.CampaignStatusDraft && campaign.Status != model.CampaignStatusScheduled {
		return nil, apperrors.NewConflict(
			fmt.Sprintf("cannot edit a campaign in status %q", campaign.Status), nil)
	}

	if input.Name != "" {
		campaign.Name = input.Name
	}
	campaign.Description = input.Description
	campaign.ScheduledDate = input.ScheduledDate
	campaign.HeaderValue = input.HeaderValue
	campaign.BodyParameters = input.BodyParameters
	if input.Settings != nil {
		if err := s.validate.Struct(*input.Settings); err != nil {
			return nil, apperrors.NewBadRequest("invalid campaign settings", err)
		}
		campaign.Settings = *input.Settings
	}

	if err := s.campaigns.Update(ctx, campaign); err != nil {
		return nil, err
	}

	// Adding or clearing a start time moves the campaign between draft and
	// scheduled.
	next := model.CampaignStatusDraft
	if campaign.ScheduledDate != nil {
		next = model.CampaignStatusScheduled
	}
	if next != campaign.Status {
		if err := s.campaigns.UpdateStatus(ctx, id, next); err != nil {
			return nil, err
		}
		campaign.Status = next
	}
	return campaign, nil
}

func (s *Service) Delete(ctx context.Context, accountID, id uuid.UUID) error {
	campaign, err := s.campaigns.Get(ctx, accountID, id)
	if err != nil {
		return err
	}
	if campaign.Status == model.CampaignStatusRunning {
		return apperrors.NewConflict("cannot delete a running campaign", nil)
	}
	return s.campaigns.Delete(ctx, accountID, id)
}

// Send starts a campaign run. Preconditions are checked here; the run
// itself executes detached from the caller, which observes progress by
// polling the campaign.
func (s *Service) Send(ctx context.Context, accountID, id uuid.UUID) (*model.Campaign, error) {
	campaign, err := s.campaigns.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if !campaign.Sendable() {
		return nil, apperrors.NewConflict(
			fmt.Sprintf("campaign cannot be sent from status %q", campaign.Status), nil)
	}

	config, err := s.accounts.GetWhatsAppConfig(ctx, accountID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewBadRequest("whatsapp is not configured for this account", err)
		}
		return nil, err
	}
	if !config.Configured() {
		return nil, apperrors.NewBadRequest("whatsapp configuration is incomplete", nil)
	}

	template, err := s.templates.Get(ctx, accountID, campaign.TemplateID)
	if err != nil {
		return nil, err
	}
	if !template.IsApproved() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("template %q is not approved", template.Name), nil)
	}

	creds := whatsapp.Credentials{
		AccessToken:       config.AccessToken,
		PhoneNumberID:     config.PhoneNumberID,
		BusinessAccountID: config.BusinessAccountID,
	}

	go func() {
		// Detached from the request context: the run outlives the
		// triggering call.
		runCtx := context.Background()
		if err := s.runner.Run(runCtx, campaign, template, creds); err != nil {
			s.logger.Error().Err(err).
				Str("campaign_id", campaign.ID.String()).
				Msg("campaign run failed")
		}
	}()

	campaign.Status = model.CampaignStatusRunning
	return campaign, nil
}

// Pause requests a running campaign to stop. The runner observes the new
// status at the next contact boundary.
func (s *Service) Pause(ctx context.Context, accountID, id uuid.UUID) error {
	return s.transition(ctx, accountID, id, model.CampaignStatusPaused)
}

// Cancel terminates a campaign from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, accountID, id uuid.UUID) error {
	return s.transition(ctx, accountID, id, model.CampaignStatusCancelled)
}

func (s *Service) transition(ctx context.Context, accountID, id uuid.UUID, next model.CampaignStatus) error {
	campaign, err := s.campaigns.Get(ctx, accountID, id)
	if err != nil {
		return err
	}
	if !campaign.Status.CanTransition(next) {
		return apperrors.NewConflict(
			fmt.Sprintf("cannot move campaign from %q to %q", campaign.Status, next), nil)
	}
	return s.campaigns.UpdateStatus(ctx, id, next)
}
