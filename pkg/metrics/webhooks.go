package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics records outcomes for inbound payment-provider webhooks.
type WebhookMetrics struct {
	duration  *prometheus.HistogramVec
	processed *prometheus.CounterVec
	duplicate *prometheus.CounterVec
	failure   *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_duration_seconds",
		Help:    "Duration of webhook processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_processed",
		Help: "Webhook events processed to completion.",
	}, []string{"event_type"})
	duplicate := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_duplicate",
		Help: "Webhook events skipped as duplicate deliveries.",
	}, []string{"event_type"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_failure",
		Help: "Webhook events that failed processing.",
	}, []string{"event_type"})
	reg.MustRegister(duration, processed, duplicate, failure)
	return &WebhookMetrics{
		duration:  duration,
		processed: processed,
		duplicate: duplicate,
		failure:   failure,
	}
}

// ObserveDuration records the processing time for the named event type.
func (w *WebhookMetrics) ObserveDuration(eventType string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

// IncProcessed increments the processed counter for the named event type.
func (w *WebhookMetrics) IncProcessed(eventType string) {
	if w == nil || w.processed == nil {
		return
	}
	w.processed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncDuplicate increments the duplicate counter for the named event type.
func (w *WebhookMetrics) IncDuplicate(eventType string) {
	if w == nil || w.duplicate == nil {
		return
	}
	w.duplicate.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncFailure increments the failure counter for the named event type.
func (w *WebhookMetrics) IncFailure(eventType string) {
	if w == nil || w.failure == nil {
		return
	}
	w.failure.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
