package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Campaign dispatcher metrics
	CampaignRunsStarted   prometheus.Counter
	CampaignRunsCompleted prometheus.Counter
	CampaignRunsPaused    *prometheus.CounterVec
	MessagesDispatched    *prometheus.CounterVec
	DispatchLatency       prometheus.Histogram

	// Webhook reconciler metrics
	WebhookPayloads       prometheus.Counter
	WebhookStatusUpdates  *prometheus.CounterVec
	WebhookInboundCreated prometheus.Counter
	WebhookDuplicates     prometheus.Counter
	WebhookOrphans        prometheus.Counter

	// Provider client metrics
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec

	// Quota metrics
	QuotaRejections prometheus.Counter
}

// New creates and registers all application metrics
func New(namespace string) *Metrics {
	return &Metrics{
		CampaignRunsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_runs_started_total",
			Help:      "Total number of campaign runs started",
		}),
		CampaignRunsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_runs_completed_total",
			Help:      "Total number of campaign runs that finished all batches",
		}),
		CampaignRunsPaused: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "campaign_runs_paused_total",
			Help:      "Total number of campaign runs stopped early",
		}, []string{"reason"}),
		MessagesDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dispatched_total",
			Help:      "Outbound dispatch attempts by result",
		}, []string{"result"}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent on a single outbound dispatch",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		WebhookPayloads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_payloads_total",
			Help:      "Total number of webhook payloads received",
		}),
		WebhookStatusUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_status_updates_total",
			Help:      "Delivery status updates applied by status",
		}, []string{"status"}),
		WebhookInboundCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_inbound_messages_total",
			Help:      "Inbound messages created from webhook payloads",
		}),
		WebhookDuplicates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_duplicate_events_total",
			Help:      "Webhook events skipped because they were already processed",
		}),
		WebhookOrphans: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_orphan_events_total",
			Help:      "Status events referencing no known message",
		}),
		ProviderRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Requests to the WhatsApp API by operation and status",
		}, []string{"operation", "status"}),
		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Duration of WhatsApp API requests",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),
		QuotaRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_rejections_total",
			Help:      "Send attempts rejected by the quota ledger",
		}),
	}
}

// ObserveProviderRequest records one provider API call.
func (m *Metrics) ObserveProviderRequest(operation, status string, duration time.Duration) {
	m.ProviderRequests.WithLabelValues(operation, status).Inc()
	m.ProviderLatency.WithLabelValues(operation).Observe(duration.Seconds())
}
