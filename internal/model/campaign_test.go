package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCampaignStatusTransitions(t *testing.T) {
	assert.True(t, CampaignStatusDraft.CanTransition(CampaignStatusRunning))
	assert.True(t, CampaignStatusDraft.CanTransition(CampaignStatusScheduled))
	assert.True(t, CampaignStatusScheduled.CanTransition(CampaignStatusRunning))
	assert.True(t, CampaignStatusRunning.CanTransition(CampaignStatusPaused))
	assert.True(t, CampaignStatusRunning.CanTransition(CampaignStatusCompleted))
	assert.True(t, CampaignStatusPaused.CanTransition(CampaignStatusRunning))

	// any non-terminal state can be cancelled
	for _, s := range []CampaignStatus{CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusRunning, CampaignStatusPaused} {
		assert.True(t, s.CanTransition(CampaignStatusCancelled), "cancel from %s", s)
	}

	// terminal states go nowhere
	assert.True(t, CampaignStatusCompleted.Terminal())
	assert.True(t, CampaignStatusCancelled.Terminal())
	assert.False(t, CampaignStatusCompleted.CanTransition(CampaignStatusRunning))
	assert.False(t, CampaignStatusCancelled.CanTransition(CampaignStatusDraft))

	// completed is reachable only from running
	assert.False(t, CampaignStatusDraft.CanTransition(CampaignStatusCompleted))
	assert.False(t, CampaignStatusPaused.CanTransition(CampaignStatusCompleted))
}

func TestCampaignSendable(t *testing.T) {
	c := &Campaign{Status: CampaignStatusDraft}
	assert.True(t, c.Sendable())
	c.Status = CampaignStatusScheduled
	assert.True(t, c.Sendable(), "the scheduler starts due campaigns through the send path")
	c.Status = CampaignStatusPaused
	assert.True(t, c.Sendable())
	c.Status = CampaignStatusRunning
	assert.False(t, c.Sendable())
	c.Status = CampaignStatusCompleted
	assert.False(t, c.Sendable())
	c.Status = CampaignStatusCancelled
	assert.False(t, c.Sendable())
}

func TestDefaultCampaignSettings(t *testing.T) {
	s := DefaultCampaignSettings()
	assert.Equal(t, 50, s.BatchSize)
	assert.Equal(t, 500, s.DelayBetweenMessages)
	assert.Equal(t, 3, s.MaxRetries)
}
