package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/waflow/waflow/internal/email"
	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/internal/repository"
)

// Service emails campaign lifecycle summaries to the owning account. It
// satisfies the runner's Notifier contract.
type Service struct {
	accounts repository.AccountRepository
	emailSvc email.Service
	logger   zerolog.Logger
}

func NewService(accounts repository.AccountRepository, emailSvc email.Service, logger zerolog.Logger) *Service {
	return &Service{
		accounts: accounts,
		emailSvc: emailSvc,
		logger:   logger.With().Str("component", "notification_service").Logger(),
	}
}

func (s *Service) CampaignCompleted(ctx context.Context, campaign *model.Campaign, stats model.CampaignStats) error {
	subject := fmt.Sprintf("Campaign %q completed", campaign.Name)
	body := fmt.Sprintf(
		"<p>Your campaign <b>%s</b> has finished.</p>"+
			"<p>Sent: %d<br>Failed: %d<br>Skipped: %d<br>Total contacts: %d</p>",
		campaign.Name, stats.MessagesSent, stats.MessagesFailed, stats.MessagesSkipped, stats.TotalContacts)
	return s.send(ctx, campaign, subject, body)
}

func (s *Service) CampaignPaused(ctx context.Context, campaign *model.Campaign, stats model.CampaignStats, reason string) error {
	subject := fmt.Sprintf("Campaign %q stopped", campaign.Name)
	body := fmt.Sprintf(
		"<p>Your campaign <b>%s</b> stopped early (%s).</p>"+
			"<p>Sent: %d<br>Failed: %d<br>Skipped: %d<br>Total contacts: %d</p>",
		campaign.Name, reason, stats.MessagesSent, stats.MessagesFailed, stats.MessagesSkipped, stats.TotalContacts)
	return s.send(ctx, campaign, subject, body)
}

func (s *Service) send(ctx context.Context, campaign *model.Campaign, subject, body string) error {
	account, err := s.accounts.Get(ctx, campaign.AccountID)
	if err != nil {
		return fmt.Errorf("failed to resolve account for notification: %w", err)
	}
	if err := s.emailSvc.SendCustom(ctx, account.Email, subject, body); err != nil {
		return fmt.Errorf("failed to send notification email: %w", err)
	}
	s.logger.Debug().
		Str("campaign_id", campaign.ID.String()).
		Str("recipient", account.Email).
		Msg("campaign notification sent")
	return nil
}
