package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/internal/repository"
	apperrors "github.com/waflow/waflow/pkg/errors"
)

type Service struct {
	accounts repository.AccountRepository
}

func NewService(accounts repository.AccountRepository) *Service {
	return &Service{accounts: accounts}
}

// Get returns the account profile with its provider configuration attached
// when one has been saved.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	config, err := s.accounts.GetWhatsAppConfig(ctx, id)
	if err != nil && !apperrors.IsCode(err, apperrors.ErrNotFound) {
		return nil, err
	}
	account.WhatsAppConfig = config
	return account, nil
}

type UpdateProfileInput struct {
	FirstName string
	LastName  string
}

func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateProfileInput) (*model.Account, error) {
	account, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	account.FirstName = input.FirstName
	account.LastName = input.LastName
	if err := s.accounts.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return account, nil
}

// SaveWhatsAppConfig stores the provider credential set. The repository
// keeps the phone number routing table in step inside the same transaction.
func (s *Service) SaveWhatsAppConfig(ctx context.Context, accountID uuid.UUID, config *model.WhatsAppConfig) error {
	if config.AccessToken == "" || config.PhoneNumberID == "" || config.BusinessAccountID == "" {
		return apperrors.NewBadRequest("access token, phone number id and business account id are required", nil)
	}

	config.AccountID = accountID
	if err := s.accounts.SaveWhatsAppConfig(ctx, config); err != nil {
		return fmt.Errorf("failed to save whatsapp config: %w", err)
	}
	return nil
}

// GetWhatsAppConfig returns the stored credential set, or NotFound when the
// account has never been configured.
func (s *Service) GetWhatsAppConfig(ctx context.Context, accountID uuid.UUID) (*model.WhatsAppConfig, error) {
	return s.accounts.GetWhatsAppConfig(ctx, accountID)
}
