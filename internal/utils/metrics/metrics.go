// internal/utils/metrics/metrics.go
package metrics

import "time"

// SetVirtualPrice записывает последнюю цену пула
func (c *Collector) SetVirtualPrice(pool string, price float64) {
	c.virtualPrice.WithLabelValues(pool).Set(price)
}

// RecordExtractionFailure увеличивает счетчик неудачных вычислений цены
func (c *Collector) RecordExtractionFailure(pool, reason string) {
	c.extractionFailures.WithLabelValues(pool, reason).Inc()
}

// SetStalePrices записывает число пулов, отдающих кешированную цену
func (c *Collector) SetStalePrices(n int) {
	c.stalePrices.Set(float64(n))
}

// RecordRPCLatency записывает метрики RPC-запроса
func (c *Collector) RecordRPCLatency(method, endpoint string, duration time.Duration) {
	c.rpcLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
