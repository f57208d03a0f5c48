package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/waflow/waflow/internal/model"
	"github.com/waflow/waflow/internal/repository"
	"github.com/waflow/waflow/internal/service/quota"
	"github.com/waflow/waflow/internal/whatsapp"
	apperrors "github.com/waflow/waflow/pkg/errors"
	"github.com/waflow/waflow/pkg/messaging"
	"github.com/waflow/waflow/pkg/metrics"
)

// Dispatcher is the slice of the provider client the runner sends through.
type Dispatcher interface {
	SendTemplateMessage(ctx context.Context, creds whatsapp.Credentials, req whatsapp.TemplateSendRequest) (*whatsapp.SendResponse, error)
}

// Notifier receives campaign lifecycle notifications. Implementations must
// not block the run; failures are logged and ignored.
type Notifier interface {
	CampaignCompleted(ctx context.Context, campaign *model.Campaign, stats model.CampaignStats) error
	CampaignPaused(ctx context.Context, campaign *model.Campaign, stats model.CampaignStats, reason string) error
}

// Runner executes one campaign from start to completion, external stop or
// quota exhaustion. It is the only writer of campaign run stats while a run
// is in flight.
type Runner struct {
	campaigns repository.CampaignRepository
	contacts  repository.ContactRepository
	messages  repository.MessageRepository
	quota     *quota.Service
	dispatch  Dispatcher
	broker    messaging.Broker
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

func NewRunner(
	campaigns repository.CampaignRepository,
	contacts repository.ContactRepository,
	messages repository.MessageRepository,
	quotaSvc *quota.Service,
	dispatch Dispatcher,
	broker messaging.Broker,
	notifier Notifier,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Runner {
	return &Runner{
		campaigns: campaigns,
		contacts:  contacts,
		messages:  messages,
		quota:     quotaSvc,
		dispatch:  dispatch,
		broker:    broker,
		notifier:  notifier,
		metrics:   m,
		logger:    logger.With().Str("component", "campaign_runner").Logger(),
	}
}

// Run drives the batch loop. Contacts are processed strictly sequentially
// with fixed pacing between sends. The campaign status is polled at every
// contact boundary so an operator's pause or cancel takes effect without
// waiting for the run to finish. Quota exhaustion pauses the campaign and
// books every unattempted contact as skipped.
func (r *Runner) Run(ctx context.Context, campaign *model.Campaign, template *model.Template, creds whatsapp.Credentials) error {
	logger := r.logger.With().
		Str("campaign_id", campaign.ID.String()).
		Str("account_id", campaign.AccountID.String()).
		Logger()

	if err := r.campaigns.MarkRunning(ctx, campaign.ID, time.Now()); err != nil {
		return fmt.Errorf("failed to mark campaign running: %w", err)
	}
	if r.metrics != nil {
		r.metrics.CampaignRunsStarted.Inc()
	}

	contacts, err := r.contacts.ListSendableByIDs(ctx, campaign.AccountID, campaign.ContactIDs)
	if err != nil {
		return fmt.Errorf("failed to resolve campaign contacts: %w", err)
	}

	analysis := whatsapp.AnalyzeTemplate(template.Name, template.Language, template.Components)
	total := len(campaign.ContactIDs)

	batchSize := campaign.Settings.BatchSize
	if batchSize <= 0 {
		batchSize = model.DefaultBatchSize
	}
	delay := time.Duration(campaign.Settings.DelayBetweenMessages) * time.Millisecond

	var sent, failed, skipped int
	logger.Info().Int("total", total).Int("sendable", len(contacts)).Msg("campaign run started")

	// Contacts dropped by the sendable filter (inactive or unsubscribed at
	// resolution time) never get a Message record.
	skipped = total - len(contacts)

	for start := 0; start < len(contacts); start += batchSize {
		end := start + batchSize
		if end > len(contacts) {
			end = len(contacts)
		}

		for _, contact := range contacts[start:end] {
			status, err := r.campaigns.GetStatus(ctx, campaign.ID)
			if err != nil {
				logger.Warn().Err(err).Msg("status poll failed, continuing")
			} else if status != model.CampaignStatusRunning {
				r.persistStats(ctx, campaign, total, sent, failed, skipped)
				r.recordStopped(ctx, campaign, total, sent, failed, skipped, status, string(status))
				logger.Info().Str("status", string(status)).Msg("campaign run stopped externally")
				return nil
			}

			// Unsubscribe may race with the run; re-check at send time.
			fresh, err := r.contacts.Get(ctx, campaign.AccountID, contact.ID)
			if err != nil || !fresh.Sendable() {
				skipped++
				continue
			}

			if err := r.quota.Consume(ctx, campaign.AccountID); err != nil {
				if apperrors.IsCode(err, apperrors.ErrQuotaExceeded) {
					// Every contact not yet attempted, across all
					// remaining batches, counts as skipped.
					skipped = total - sent - failed
					r.persistStats(ctx, campaign, total, sent, failed, skipped)
					if err := r.campaigns.UpdateStatus(ctx, campaign.ID, model.CampaignStatusPaused); err != nil {
						logger.Error().Err(err).Msg("failed to pause campaign")
					}
					r.recordStopped(ctx, campaign, total, sent, failed, skipped, model.CampaignStatusPaused, "quota_exhausted")
					logger.Warn().Int("skipped", skipped).Msg("campaign paused on quota exhaustion")
					return nil
				}
				logger.Error().Err(err).Str("contact_id", contact.ID.String()).Msg("quota check failed")
				skipped++
				continue
			}

			message := &model.Message{
				AccountID:             campaign.AccountID,
				ContactID:             contact.ID,
				TemplateID:            &template.ID,
				CampaignID:            &campaign.ID,
				PhoneNumber:           contact.PhoneNumber,
				NormalizedPhoneNumber: contact.NormalizedPhoneNumber,
				Direction:             model.DirectionOutbound,
				Type:                  model.MessageTypeTemplate,
				Status:                model.MessageStatusSending,
				Content: model.MessageContent{
					TemplateName:     template.Name,
					TemplateLanguage: template.Language,
					HeaderValue:      campaign.HeaderValue,
					BodyParameters:   campaign.BodyParameters,
				},
			}
			if err := r.messages.Create(ctx, message); err != nil {
				logger.Error().Err(err).Str("contact_id", contact.ID.String()).Msg("failed to create message record")
				r.releaseQuota(ctx, campaign, logger)
				skipped++
				continue
			}

			dispatchStart := time.Now()
			resp, err := r.dispatch.SendTemplateMessage(ctx, creds, whatsapp.TemplateSendRequest{
				PhoneNumber:    contact.PhoneNumber,
				TemplateName:   template.Name,
				LanguageCode:   template.Language,
				HeaderValue:    campaign.HeaderValue,
				BodyParameters: campaign.BodyParameters,
				Analysis:       analysis,
			})
			if r.metrics != nil {
				r.metrics.DispatchLatency.Observe(time.Since(dispatchStart).Seconds())
			}

			if err != nil {
				if markErr := r.messages.MarkFailed(ctx, message.ID, "dispatch_failed", err.Error()); markErr != nil {
					logger.Error().Err(markErr).Msg("failed to record dispatch failure")
				}
				r.releaseQuota(ctx, campaign, logger)
				failed++
				if r.metrics != nil {
					r.metrics.MessagesDispatched.WithLabelValues("failed").Inc()
				}
				logger.Warn().Err(err).Str("contact_id", contact.ID.String()).Msg("dispatch failed")
			} else {
				now := time.Now()
				if markErr := r.messages.MarkSent(ctx, message.ID, resp.MessageID, now); markErr != nil {
					logger.Error().Err(markErr).Msg("failed to record sent message")
				}
				if statErr := r.contacts.IncrementMessageStats(ctx, contact.ID, now); statErr != nil {
					logger.Warn().Err(statErr).Msg("failed to bump contact counters")
				}
				sent++
				if r.metrics != nil {
					r.metrics.MessagesDispatched.WithLabelValues("sent").Inc()
				}
			}

			if delay > 0 {
				select {
				case <-ctx.Done():
					r.persistStats(ctx, campaign, total, sent, failed, skipped)
					return ctx.Err()
				case <-time.After(delay):
				}
			}
		}

		// Progress is observable mid-run: stats land after every batch.
		r.persistStats(ctx, campaign, total, sent, failed, skipped)
	}

	skipped = total - sent - failed
	stats := model.CampaignStats{
		TotalContacts:   total,
		MessagesSent:    sent,
		MessagesFailed:  failed,
		MessagesSkipped: skipped,
	}
	if err := r.campaigns.MarkCompleted(ctx, campaign.ID, time.Now(), stats); err != nil {
		return fmt.Errorf("failed to mark campaign completed: %w", err)
	}
	if r.metrics != nil {
		r.metrics.CampaignRunsCompleted.Inc()
	}
	r.publishProgress(ctx, campaign, string(model.CampaignStatusCompleted), sent, failed, skipped, total)
	r.publishLifecycle(ctx, campaign, string(model.CampaignStatusCompleted), "", stats)
	if r.notifier != nil {
		if err := r.notifier.CampaignCompleted(ctx, campaign, stats); err != nil {
			logger.Warn().Err(err).Msg("completion notification failed")
		}
	}

	logger.Info().Int("sent", sent).Int("failed", failed).Int("skipped", skipped).Msg("campaign run completed")
	return nil
}

func (r *Runner) releaseQuota(ctx context.Context, campaign *model.Campaign, logger zerolog.Logger) {
	if err := r.quota.Release(ctx, campaign.AccountID); err != nil {
		logger.Warn().Err(err).Msg("quota release failed")
	}
}

func (r *Runner) persistStats(ctx context.Context, campaign *model.Campaign, total, sent, failed, skipped int) {
	stats := model.CampaignStats{
		TotalContacts:   total,
		MessagesSent:    sent,
		MessagesFailed:  failed,
		MessagesSkipped: skipped,
	}
	if err := r.campaigns.UpdateStats(ctx, campaign.ID, stats); err != nil {
		r.logger.Error().Err(err).Str("campaign_id", campaign.ID.String()).Msg("failed to persist campaign stats")
	}
	r.publishProgress(ctx, campaign, string(model.CampaignStatusRunning), sent, failed, skipped, total)
}

func (r *Runner) recordStopped(ctx context.Context, campaign *model.Campaign, total, sent, failed, skipped int, status model.CampaignStatus, reason string) {
	if r.metrics != nil {
		r.metrics.CampaignRunsPaused.WithLabelValues(reason).Inc()
	}
	stats := model.CampaignStats{
		TotalContacts:   total,
		MessagesSent:    sent,
		MessagesFailed:  failed,
		MessagesSkipped: skipped,
	}
	r.publishLifecycle(ctx, campaign, string(status), reason, stats)
	if r.notifier != nil {
		if err := r.notifier.CampaignPaused(ctx, campaign, stats, reason); err != nil {
			r.logger.Warn().Err(err).Msg("pause notification failed")
		}
	}
}

func (r *Runner) publishLifecycle(ctx context.Context, campaign *model.Campaign, status, reason string, stats model.CampaignStats) {
	if r.broker == nil {
		return
	}
	event := messaging.CampaignLifecycleEvent{
		CampaignID: campaign.ID.String(),
		AccountID:  campaign.AccountID.String(),
		Status:     status,
		Reason:     reason,
		Sent:       stats.MessagesSent,
		Failed:     stats.MessagesFailed,
		Skipped:    stats.MessagesSkipped,
		Total:      stats.TotalContacts,
	}
	if err := r.broker.Publish(ctx, messaging.ChannelCampaignLifecycle, event); err != nil {
		r.logger.Warn().Err(err).Msg("lifecycle publish failed")
	}
}

func (r *Runner) publishProgress(ctx context.Context, campaign *model.Campaign, status string, sent, failed, skipped, total int) {
	if r.broker == nil {
		return
	}
	event := messaging.CampaignProgressEvent{
		CampaignID: campaign.ID.String(),
		AccountID:  campaign.AccountID.String(),
		Status:     status,
		Sent:       sent,
		Failed:     failed,
		Skipped:    skipped,
		Total:      total,
	}
	if err := r.broker.Publish(ctx, messaging.ChannelCampaignProgress, event); err != nil {
		r.logger.Warn().Err(err).Msg("progress publish failed")
	}
}
