// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the service records to. A nil *Metrics is
// valid and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	MessagesSent         prometheus.Counter
	ConversationsCreated prometheus.Counter
	PublishFailures      prometheus.Counter
	OperationDuration    *prometheus.HistogramVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimitedTotal    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: "socialchat",
			Name:      "messages_sent_total",
			Help:      "Messages persisted and appended to a conversation.",
		}),
		ConversationsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "socialchat",
			Name:      "conversations_created_total",
			Help:      "Conversations created on first contact between a pair.",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "socialchat",
			Name:      "notify_publish_failures_total",
			Help:      "message.created events that could not be published.",
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "socialchat",
			Name:      "messaging_operation_duration_seconds",
			Help:      "Latency of messaging operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialchat",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "socialchat",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RateLimitedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialchat",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"surface"}),
	}
}

// ObserveOperation records how long op took and whether it failed.
func (m *Metrics) ObserveOperation(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.OperationDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

// MessageSent counts a persisted message.
func (m *Metrics) MessageSent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}

// ConversationCreated counts a new conversation.
func (m *Metrics) ConversationCreated() {
	if m != nil {
		m.ConversationsCreated.Inc()
	}
}

// PublishFailed counts an event that failed to publish.
func (m *Metrics) PublishFailed() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

// RateLimited counts a rejected request on surface ("grpc" or "http").
func (m *Metrics) RateLimited(surface string) {
	if m != nil {
		m.RateLimitedTotal.WithLabelValues(surface).Inc()
	}
}
