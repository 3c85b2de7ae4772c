package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts Stripe webhook requests by event type and HTTP status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payments",
		Subsystem: "webhook",
		Name:      "requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "payments",
		Subsystem: "webhook",
		Name:      "duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// ReconciledTotal counts applied webhook reconciliations by event kind.
	ReconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payments",
		Subsystem: "webhook",
		Name:      "reconciled_total",
		Help:      "Webhook events applied to stored documents, by event kind.",
	}, []string{"kind"})

	// StripeCallsTotal counts outbound Stripe API calls by operation, mode and outcome.
	StripeCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "payments",
		Subsystem: "stripe",
		Name:      "calls_total",
		Help:      "Stripe API calls by operation, environment and outcome.",
	}, []string{"operation", "mode", "outcome"})
)

// ObserveStripeCall records the outcome of a single Stripe API call.
func ObserveStripeCall(operation, mode string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StripeCallsTotal.WithLabelValues(operation, mode, outcome).Inc()
}
