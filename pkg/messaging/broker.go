package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels published by the dispatcher and webhook reconciler. Consumers
// (UI push, analytics) subscribe to these.
const (
	ChannelCampaignProgress  = "campaign.progress"
	ChannelCampaignLifecycle = "campaign.lifecycle"
	ChannelMessageStatus     = "message.status"
	ChannelInboundMessages   = "message.inbound"
)

// CampaignProgressEvent is published after every persisted batch.
type CampaignProgressEvent struct {
	CampaignID string `json:"campaign_id"`
	AccountID  string `json:"account_id"`
	Status     string `json:"status"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Total      int    `json:"total"`
}

// CampaignLifecycleEvent is published once per terminal or externally
// stopped run, carrying the final counters for that run.
type CampaignLifecycleEvent struct {
	CampaignID string `json:"campaign_id"`
	AccountID  string `json:"account_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	Total      int    `json:"total"`
}

// MessageStatusEvent is published when webhook reconciliation moves a
// message to a new state.
type MessageStatusEvent struct {
	MessageID         string `json:"message_id"`
	WhatsAppMessageID string `json:"whatsapp_message_id"`
	Status            string `json:"status"`
}
