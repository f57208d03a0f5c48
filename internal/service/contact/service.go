package contact

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/internal/repository"
	"github.com/waflow/waflow/internal/whatsapp"
	apperrors "github.com/waflow/waflow/pkg/errors"
)

type Service struct {
	contacts repository.ContactRepository
}

func NewService(contacts repository.ContactRepository) *Service {
	return &Service{contacts: contacts}
}

// Create stores a contact keyed by its normalized phone number. Duplicate
// numbers within an account are rejected.
func (s *Service) Create(ctx context.Context, contact *model.Contact) error {
	normalized := whatsapp.NormalizePhone(contact.PhoneNumber)
	if normalized == "" {
		return apperrors.NewBadRequest("phone number must contain digits", nil)
	}
	contact.NormalizedPhoneNumber = normalized

	if err := s.contacts.Create(ctx, contact); err != nil {
		return err
	}
	return nil
}

// ImportRow is one parsed contact entry. File parsing happens upstream;
// the service only validates and stores.
type ImportRow struct {
	PhoneNumber string   `json:"phone_number"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Email       string   `json:"email"`
	Tags        []string `json:"tags"`
}

type ImportResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Import stores a batch of contacts, skipping rows without digits and rows
// whose normalized number the account already has. Imports are best-effort:
// a bad row never aborts the batch.
func (s *Service) Import(ctx context.Context, accountID uuid.UUID, rows []ImportRow) (ImportResult, error) {
	var result ImportResult
	for _, row := range rows {
		normalized := whatsapp.NormalizePhone(row.PhoneNumber)
		if normalized == "" {
			result.Skipped++
			continue
		}

		if _, err := s.contacts.GetByNormalizedPhone(ctx, accountID, normalized); err == nil {
			result.Skipped++
			continue
		} else if !apperrors.IsCode(err, apperrors.ErrNotFound) {
			return result, fmt.Errorf("failed to check for existing contact: %w", err)
		}

		contact := &model.Contact{
			AccountID:             accountID,
			PhoneNumber:           row.PhoneNumber,
			NormalizedPhoneNumber: normalized,
			FirstName:             row.FirstName,
			LastName:              row.LastName,
			Email:                 row.Email,
			Tags:                  row.Tags,
		}
		if err := s.contacts.Create(ctx, contact); err != nil {
			result.Skipped++
			continue
		}
		result.Created++
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, accountID, id uuid.UUID) (*model.Contact, error) {
	return s.contacts.Get(ctx, accountID, id)
}

func (s *Service) List(ctx context.Context, accountID uuid.UUID, filters *model.ContactFilters) ([]*model.Contact, error) {
	return s.contacts.List(ctx, accountID, filters)
}

func (s *Service) Update(ctx context.Context, contact *model.Contact) error {
	existing, err := s.contacts.Get(ctx, contact.AccountID, contact.ID)
	if err != nil {
		return err
	}

	if contact.PhoneNumber != existing.PhoneNumber {
		normalized := whatsapp.NormalizePhone(contact.PhoneNumber)
		if normalized == "" {
			return apperrors.NewBadRequest("phone number must contain digits", nil)
		}
		contact.NormalizedPhoneNumber = normalized
	} else {
		contact.NormalizedPhoneNumber = existing.NormalizedPhoneNumber
	}

	if err := s.contacts.Update(ctx, contact); err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, accountID, id uuid.UUID) error {
	return s.contacts.Delete(ctx, accountID, id)
}

// Unsubscribe opts the contact out of campaign sends. Resubscribe clears
// the flag.
func (s *Service) Unsubscribe(ctx context.Context, accountID, id uuid.UUID) error {
	contact, err := s.contacts.Get(ctx, accountID, id)
	if err != nil {
		return err
	}
	return s.contacts.SetUnsubscribed(ctx, contact.ID, true, time.Now())
}

func (s *Service) Resubscribe(ctx context.Context, accountID, id uuid.UUID) error {
	contact, err := s.contacts.Get(ctx, accountID, id)
	if err != nil {
		return err
	}
	return s.contacts.SetUnsubscribed(ctx, contact.ID, false, time.Now())
}
