package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/internal/repository"
	"github.com/waflow/waflow/pkg/auth"
	apperrors "github.com/waflow/waflow/pkg/errors"
	"github.com/waflow/waflow/pkg/security"
)

// Default allowance for self-serve signups.
const freePlanMessageLimit = 1000

type Service struct {
	accounts repository.AccountRepository
	hasher   security.PasswordHasher
	tokens   *auth.TokenService
}

func NewService(accounts repository.AccountRepository, hasher security.PasswordHasher, tokens *auth.TokenService) *Service {
	return &Service{accounts: accounts, hasher: hasher, tokens: tokens}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates an account on the free plan and returns it with a
// session token.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.Account, string, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, "", apperrors.NewConflict("account with this email already exists", nil)
	} else if !apperrors.IsCode(err, apperrors.ErrNotFound) {
		return nil, "", fmt.Errorf("failed to check existing account: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	resetAt := time.Now().AddDate(0, 1, 0)
	account := &model.Account{
		Email:        email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Status:       string(model.AccountStatusActive),
		Plan:         model.PlanFree,
		MessageLimit: freePlanMessageLimit,
		QuotaResetAt: &resetAt,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, "", fmt.Errorf("failed to create account: %w", err)
	}

	token, err := s.tokens.Generate(account.ID, account.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return account, token, nil
}

// Login verifies credentials and returns the account with a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*model.Account, string, error) {
	account, err := s.accounts.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if apperrors.IsCode(err, apperrors.ErrNotFound) {
			return nil, "", apperrors.Unauthorized(nil)
		}
		return nil, "", fmt.Errorf("failed to look up account: %w", err)
	}

	if account.Status != string(model.AccountStatusActive) {
		return nil, "", apperrors.Forbidden("account is not active", nil)
	}

	if err := s.hasher.Compare(account.PasswordHash, password); err != nil {
		return nil, "", apperrors.Unauthorized(nil)
	}

	token, err := s.tokens.Generate(account.ID, account.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return account, token, nil
}
