package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weft-dev/weft/framework/ioc"
)

// MetricsModule owns the process-wide Prometheus registry and the request
// instruments. Mount its Handler on the router to expose a scrape endpoint:
//
//	mod, _ := ioc.ResolveModule[*middleware.MetricsModule](ctx, b.App)
//	b.Router.Mount("/metrics", mod.Handler())
type MetricsModule struct {
	ioc.BaseModule

	once     sync.Once
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// setup is idempotent so the instruments exist whether the module is first
// touched at startup, by a scrape mount, or by the first request.
func (m *MetricsModule) setup() {
	m.once.Do(func() {
		m.registry = prometheus.NewRegistry()
		m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Requests handled, by method and outcome.",
		}, []string{"method", "outcome"})
		m.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Request handling latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"})
		m.registry.MustRegister(
			m.requests,
			m.latency,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

func (m *MetricsModule) OnStartup(ctx context.Context, app *ioc.App) error {
	m.setup()
	return nil
}

// Handler serves the scrape endpoint for this module's registry.
func (m *MetricsModule) Handler() http.Handler {
	m.setup()
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Metrics records a counter and latency observation per request.
type Metrics struct {
	ioc.BaseService
	Mod *MetricsModule
}

func (m *Metrics) OnRequest(c *ioc.Ctx, next ioc.Next) (any, error) {
	m.Mod.setup()
	start := time.Now()
	result, err := next()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	method := c.Request().Method
	m.Mod.requests.WithLabelValues(method, outcome).Inc()
	m.Mod.latency.WithLabelValues(method).Observe(time.Since(start).Seconds())
	return result, err
}
