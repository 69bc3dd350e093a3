package metrics

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config 指标配置
type Config struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}
	return nil
}

// Metrics holds the service's Prometheus instruments on a private registry.
// All methods are safe on a nil receiver so callers can keep metrics optional.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	collectionsTotal prometheus.Gauge
	pointsTotal      prometheus.Gauge
}

// New builds a Metrics with all instruments registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpc_requests_total",
			Help: "Total RPC requests handled, by method and status code.",
		}, []string{"method", "status"}),
		collectionsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collections_total",
			Help: "Number of collections currently registered.",
		}),
		pointsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "points_total",
			Help: "Number of points stored across all collections.",
		}),
	}

	registry.MustRegister(m.requestsTotal, m.collectionsTotal, m.pointsTotal)
	return m
}

// RecordRequest counts one handled request.
func (m *Metrics) RecordRequest(method, status string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, status).Inc()
}

// SetCollectionCount updates the collections gauge.
func (m *Metrics) SetCollectionCount(n int) {
	if m == nil {
		return
	}
	m.collectionsTotal.Set(float64(n))
}

// SetPointCount updates the points gauge.
func (m *Metrics) SetPointCount(n int) {
	if m == nil {
		return
	}
	m.pointsTotal.Set(float64(n))
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
