package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	MessagesSentTotal  prometheus.Counter
	MessagesUnreadable prometheus.Counter

	LinkTransitionsTotal *prometheus.CounterVec
	GrantsIssuedTotal    prometheus.Counter
	GrantsExpiredOnRead  prometheus.Counter

	DBConnections prometheus.Gauge
}

func NewCollector(serviceName string) *Collector {
	return NewCollectorWith(prometheus.DefaultRegisterer, serviceName)
}

// NewCollectorWith registers all metrics against the given registerer. Use a
// fresh registry when more than one collector must coexist in a process.
func NewCollectorWith(reg prometheus.Registerer, serviceName string) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		MessagesSentTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "messaging",
			Name:      "messages_sent_total",
			Help:      "Total messages accepted and persisted.",
		}),

		MessagesUnreadable: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "messaging",
			Name:      "messages_unreadable_total",
			Help:      "Messages degraded to a placeholder because decryption failed. Alert if growing.",
		}),

		LinkTransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "trust",
			Name:      "link_transitions_total",
			Help:      "Trust link state transitions by resulting status.",
		}, []string{"status"}),

		GrantsIssuedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "trust",
			Name:      "grants_issued_total",
			Help:      "Access grants created or refreshed.",
		}),

		GrantsExpiredOnRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "trust",
			Name:      "grants_expired_on_read_total",
			Help:      "Grants lazily flipped to expired during verification.",
		}),

		DBConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: serviceName,
			Subsystem: "db",
			Name:      "open_connections",
			Help:      "Current number of open database connections.",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
