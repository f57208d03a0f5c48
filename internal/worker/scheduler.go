package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/waflow/waflow/internal/repository"
	campaignService "github.com/waflow/waflow/internal/service/campaign"
)

type SchedulerConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// Scheduler promotes scheduled campaigns to running once their start time
// passes. The send path is identical to a manual trigger, so a campaign
// whose preconditions have gone stale since scheduling (template revoked,
// WhatsApp disconnected) fails the same way a manual send would.
type Scheduler struct {
	campaigns repository.CampaignRepository
	sender    *campaignService.Service
	config    SchedulerConfig
	logger    zerolog.Logger
}

func NewScheduler(
	campaigns repository.CampaignRepository,
	sender *campaignService.Service,
	config SchedulerConfig,
	logger zerolog.Logger,
) *Scheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 20
	}
	return &Scheduler{
		campaigns: campaigns,
		sender:    sender,
		config:    config,
		logger:    logger.With().Str("component", "campaign_scheduler").Logger(),
	}
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.logger.Info().
		Dur("poll_interval", s.config.PollInterval).
		Msg("campaign scheduler started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("campaign scheduler shutting down")
			return
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.logger.Error().Err(err).Msg("scheduler tick failed")
			}
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) error {
	due, err := s.campaigns.ListDueScheduled(ctx, time.Now(), s.config.BatchSize)
	if err != nil {
		return err
	}

	for _, campaign := range due {
		if _, err := s.sender.Send(ctx, campaign.AccountID, campaign.ID); err != nil {
			s.logger.Error().Err(err).
				Str("campaign_id", campaign.ID.String()).
				Msg("failed to start scheduled campaign")
			continue
		}
		s.logger.Info().
			Str("campaign_id", campaign.ID.String()).
			Str("name", campaign.Name).
			Msg("scheduled campaign started")
	}
	return nil
}
