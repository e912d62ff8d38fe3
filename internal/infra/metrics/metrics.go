// Package metrics exposes Prometheus collectors for the HTTP surface, the
// command and query buses, and the loaded model.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sprinter/internal/app/middleware"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	messages     *prometheus.CounterVec
	messageTime  *prometheus.HistogramVec
	modelTrees   prometheus.Gauge
	modelFeature prometheus.Gauge
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sprinter_http_requests_total",
				Help: "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sprinter_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sprinter_bus_messages_total",
				Help: "Commands and queries dispatched by outcome",
			},
			[]string{"kind", "key", "outcome"},
		),
		messageTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sprinter_bus_message_duration_seconds",
				Help:    "Command and query handling latency",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"kind", "key"},
		),
		modelTrees: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sprinter_model_trees",
			Help: "Number of trees in the loaded forest",
		}),
		modelFeature: factory.NewGauge(prometheus.GaugeOpts{
			Name: "sprinter_model_features",
			Help: "Number of feature columns the loaded model expects",
		}),
	}
}

// ObserveMessage implements middleware.Observer.
func (m *Metrics) ObserveMessage(kind, key string, elapsed time.Duration, err error) {
	m.messages.WithLabelValues(kind, key, outcome(err)).Inc()
	m.messageTime.WithLabelValues(kind, key).Observe(elapsed.Seconds())
}

func (m *Metrics) SetModel(trees, features int) {
	m.modelTrees.Set(float64(trees))
	m.modelFeature.Set(float64(features))
}

// Middleware records one sample per request, labelled by the matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, middleware.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, middleware.ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}

var _ middleware.Observer = (*Metrics)(nil)
