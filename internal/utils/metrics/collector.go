// internal/utils/metrics/collector.go
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricType представляет тип метрики
type MetricType string

const (
	VirtualPriceType       MetricType = "virtual_price"
	ExtractionFailuresType MetricType = "extraction_failures"
	StalePricesType        MetricType = "stale_prices"
	RPCLatencyType         MetricType = "rpc_latency"
)

const namespace = "stakepool"

// Collector управляет набором метрик на собственном реестре
type Collector struct {
	registry *prometheus.Registry
	metrics  sync.Map

	virtualPrice       *prometheus.GaugeVec
	extractionFailures *prometheus.CounterVec
	stalePrices        prometheus.Gauge
	rpcLatency         *prometheus.HistogramVec
}

// NewCollector создает новый экземпляр коллектора метрик
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		virtualPrice: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "virtual_price",
				Help:      "Latest virtual price of the pool token in reserve units",
			},
			[]string{"pool"},
		),
		extractionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extraction_failures_total",
				Help:      "Refreshes that produced no virtual price",
			},
			[]string{"pool", "reason"},
		),
		stalePrices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stale_prices",
				Help:      "Pools currently served from the last known price",
			},
		),
		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_latency_seconds",
				Help:      "RPC request latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"method", "endpoint"},
		),
	}
	c.initializeMetrics()
	return c
}

func (c *Collector) initializeMetrics() {
	metricsMap := map[MetricType]prometheus.Collector{
		VirtualPriceType:       c.virtualPrice,
		ExtractionFailuresType: c.extractionFailures,
		StalePricesType:        c.stalePrices,
		RPCLatencyType:         c.rpcLatency,
	}

	for metricType, metric := range metricsMap {
		c.metrics.Store(metricType, metric)
		c.registry.MustRegister(metric)
	}
}

// Registry возвращает реестр, в котором зарегистрированы все метрики
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler отдает реестр в формате Prometheus
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Reset сбрасывает все метрики (полезно для тестирования)
func (c *Collector) Reset() {
	c.metrics.Range(func(_, value interface{}) bool {
		switch m := value.(type) {
		case *prometheus.CounterVec:
			m.Reset()
		case *prometheus.GaugeVec:
			m.Reset()
		case *prometheus.HistogramVec:
			m.Reset()
		case prometheus.Gauge:
			m.Set(0)
		}
		return true
	})
}
