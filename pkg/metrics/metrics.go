package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all delivery-core metrics
type Metrics struct {
	// Dispatch pipeline metrics
	Dispatches      *prometheus.CounterVec
	DispatchLatency prometheus.Histogram

	// Push channel metrics
	PushAttempts *prometheus.CounterVec
	PushLatency  *prometheus.HistogramVec

	// Presence metrics
	OnlineUsers   prometheus.Gauge
	ReapedRecords prometheus.Counter

	// Live fan-out metrics
	ActiveSessions  prometheus.Gauge
	FanoutDelivered *prometheus.CounterVec

	// HTTP surface metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New creates and registers all delivery-core metrics
func New(namespace string) *Metrics {
	return &Metrics{
		Dispatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Total number of dispatched events by delivery route",
		}, []string{"route"}),
		DispatchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching a single event end to end",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		PushAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_attempts_total",
			Help:      "Total number of push delivery attempts by channel and outcome",
		}, []string{"channel", "outcome"}),
		PushLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "push_attempt_duration_seconds",
			Help:      "Duration of individual push channel attempts",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"channel"}),
		OnlineUsers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Current number of users tracked as online",
		}),
		ReapedRecords: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_reaped_total",
			Help:      "Total number of presence records flipped offline by the reaper",
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Current number of live websocket sessions",
		}),
		FanoutDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_messages_total",
			Help:      "Total number of live fan-out sends by result",
		}, []string{"result"}),
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests by method and route",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path"}),
	}
}
