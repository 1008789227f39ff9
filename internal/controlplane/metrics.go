package controlplane

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the backend collectors. Each instance owns its registry so
// servers in the same process (tests) do not collide.
type Metrics struct {
	registry *prometheus.Registry

	eventsBroadcast *prometheus.CounterVec
	subscribers     prometheus.Gauge
	subscriberDrops prometheus.Counter
	httpRequests    *prometheus.CounterVec
	stackDepth      prometheus.Gauge
}

// NewMetrics registers the backend collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		eventsBroadcast: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskstack",
			Name:      "events_broadcast_total",
			Help:      "Update events broadcast to subscribers, by action.",
		}, []string{"action"}),
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskstack",
			Name:      "event_subscribers",
			Help:      "Live event stream subscribers.",
		}),
		subscriberDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "taskstack",
			Name:      "event_subscriber_drops_total",
			Help:      "Subscribers dropped for falling behind.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskstack",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		stackDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "taskstack",
			Name:      "stack_depth",
			Help:      "Tasks currently on the stack.",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
