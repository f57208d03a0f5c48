package quota

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/waflow/waflow/internal/repository"
	apperrors "github.com/waflow/waflow/pkg/errors"
	"github.com/waflow/waflow/pkg/metrics"
)

// Service is the quota ledger. Every outbound send, campaign or single,
// passes through Consume before the provider is called.
type Service struct {
	accounts repository.AccountRepository
	metrics  *metrics.Metrics
}

func NewService(accounts repository.AccountRepository, m *metrics.Metrics) *Service {
	return &Service{accounts: accounts, metrics: m}
}

// Remaining returns how many sends the account has left this period.
func (s *Service) Remaining(ctx context.Context, accountID uuid.UUID) (int, error) {
	used, limit, err := s.accounts.GetQuota(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to read quota: %w", err)
	}
	if used >= limit {
		return 0, nil
	}
	return limit - used, nil
}

// Check reports whether at least n sends fit in the current allowance. It
// is advisory only; Consume is the authoritative gate.
func (s *Service) Check(ctx context.Context, accountID uuid.UUID, n int) error {
	remaining, err := s.Remaining(ctx, accountID)
	if err != nil {
		return err
	}
	if remaining < n {
		return apperrors.NewQuotaExceeded(nil)
	}
	return nil
}

// Consume claims one send. The underlying update is a single conditional
// increment, so concurrent consumers can never overshoot the limit. A
// rejected claim surfaces as ErrQuotaExceeded.
func (s *Service) Consume(ctx context.Context, accountID uuid.UUID) error {
	consumed, err := s.accounts.ConsumeQuota(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to consume quota: %w", err)
	}
	if !consumed {
		if s.metrics != nil {
			s.metrics.QuotaRejections.Inc()
		}
		return apperrors.NewQuotaExceeded(nil)
	}
	return nil
}

// Release refunds a claimed unit when the dispatch it was claimed for did
// not reach the provider. Quota only counts accepted sends.
func (s *Service) Release(ctx context.Context, accountID uuid.UUID) error {
	if err := s.accounts.ReleaseQuota(ctx, accountID); err != nil {
		return fmt.Errorf("failed to release quota: %w", err)
	}
	return nil
}
