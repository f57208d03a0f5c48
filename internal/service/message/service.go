package message

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/internal/repository"
	"github.com/waflow/waflow/internal/service/quota"
	"github.com/waflow/waflow/internal/whatsapp"
	apperrors "github.com/waflow/waflow/pkg/errors"
)

// Dispatcher is the slice of the provider client used for direct replies.
type Dispatcher interface {
	SendTextMessage(ctx context.Context, creds whatsapp.Credentials, phoneNumber, text string) (*whatsapp.SendResponse, error)
	SendTemplateMessage(ctx context.Context, creds whatsapp.Credentials, req whatsapp.TemplateSendRequest) (*whatsapp.SendResponse, error)
}

type Service struct {
	messages  repository.MessageRepository
	contacts  repository.ContactRepository
	accounts  repository.AccountRepository
	templates repository.TemplateRepository
	quota     *quota.Service
	dispatch  Dispatcher
	logger    zerolog.Logger
}

func NewService(
	messages repository.MessageRepository,
	contacts repository.ContactRepository,
	accounts repository.AccountRepository,
	templates repository.TemplateRepository,
	quotaSvc *quota.Service,
	dispatch Dispatcher,
	logger zerolog.Logger,
) *Service {
	return &Service{
		messages:  messages,
		contacts:  contacts,
		accounts:  accounts,
		templates: templates,
		quota:     quotaSvc,
		dispatch:  dispatch,
		logger:    logger.With().Str("component", "message_service").Logger(),
	}
}

func (s *Service) Get(ctx context.Context, accountID, id uuid.UUID) (*model.Message, error) {
	return s.messages.Get(ctx, accountID, id)
}

func (s *Service) List(ctx context.Context, accountID uuid.UUID, filters *model.MessageFilters) ([]*model.Message, error) {
	return s.messages.List(ctx, accountID, filters)
}

type ReplyInput struct {
	ContactID        uuid.UUID
	Text             string
	TemplateName     string
	HeaderValue      string
	BodyParameters   []string
	ReplyToMessageID *uuid.UUID
}

// Reply sends a direct message to a contact, typically answering an inbound
// message. Free-form text works inside the provider's service window; a
// template name sends an approved template instead. Replies pass through
// the same quota ledger as campaign sends.
func (s *Service) Reply(ctx context.Context, accountID uuid.UUID, input ReplyInput) (*model.Message, error) {
	if input.Text == "" && input.TemplateName == "" {
		return nil, apperrors.NewBadRequest("reply text or template name is required", nil)
	}

	var template *model.Template
	if input.TemplateName != "" {
		tmpl, err := s.templates.GetByName(ctx, accountID, input.TemplateName)
		if err != nil {
			return nil, err
		}
		if !tmpl.IsApproved() {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("template %q is not approved", tmpl.Name), nil)
		}
		template = tmpl
	}

	contact, err := s.contacts.Get(ctx, accountID, input.ContactID)
	if err != nil {
		return nil, err
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

	if err := s.quota.Consume(ctx, accountID); err != nil {
		return nil, err
	}

	message := &model.Message{
		AccountID:             accountID,
		ContactID:             contact.ID,
		ReplyToMessageID:      input.ReplyToMessageID,
		PhoneNumber:           contact.PhoneNumber,
		NormalizedPhoneNumber: contact.NormalizedPhoneNumber,
		Direction:             model.DirectionOutbound,
		Type:                  model.MessageTypeText,
		Status:                model.MessageStatusSending,
		Content:               model.MessageContent{Text: input.Text},
	}
	if template != nil {
		message.TemplateID = &template.ID
		message.Type = model.MessageTypeTemplate
		message.Content = model.MessageContent{
			TemplateName:     template.Name,
			TemplateLanguage: template.Language,
			HeaderValue:      input.HeaderValue,
			BodyParameters:   input.BodyParameters,
		}
	}
	if err := s.messages.Create(ctx, message); err != nil {
		if relErr := s.quota.Release(ctx, accountID); relErr != nil {
			s.logger.Warn().Err(relErr).Msg("quota release failed")
		}
		return nil, fmt.Errorf("failed to create message record: %w", err)
	}

	creds := whatsapp.Credentials{
		AccessToken:       config.AccessToken,
		PhoneNumberID:     config.PhoneNumberID,
		BusinessAccountID: config.BusinessAccountID,
	}
	var resp *whatsapp.SendResponse
	if template != nil {
		analysis := whatsapp.AnalyzeTemplate(template.Name, template.Language, template.Components)
		resp, err = s.dispatch.SendTemplateMessage(ctx, creds, whatsapp.TemplateSendRequest{
			PhoneNumber:    contact.PhoneNumber,
			TemplateName:   template.Name,
			LanguageCode:   template.Language,
			HeaderValue:    input.HeaderValue,
			BodyParameters: input.BodyParameters,
			Analysis:       analysis,
		})
	} else {
		resp, err = s.dispatch.SendTextMessage(ctx, creds, contact.PhoneNumber, input.Text)
	}
	if err != nil {
		if markErr := s.messages.MarkFailed(ctx, message.ID, "dispatch_failed", err.Error()); markErr != nil {
			s.logger.Error().Err(markErr).Msg("failed to record reply failure")
		}
		if relErr := s.quota.Release(ctx, accountID); relErr != nil {
			s.logger.Warn().Err(relErr).Msg("quota release failed")
		}
		message.Status = model.MessageStatusFailed
		message.ErrorMessage = err.Error()
		return message, fmt.Errorf("failed to send reply: %w", err)
	}

	now := time.Now()
	if err := s.messages.MarkSent(ctx, message.ID, resp.MessageID, now); err != nil {
		s.logger.Error().Err(err).Msg("failed to record sent reply")
	}
	if err := s.contacts.IncrementMessageStats(ctx, contact.ID, now); err != nil {
		s.logger.Warn().Err(err).Msg("failed to bump contact counters")
	}

	message.Status = model.MessageStatusSent
	message.WhatsAppMessageID = resp.MessageID
	message.SentDate = &now
	return message, nil
}
