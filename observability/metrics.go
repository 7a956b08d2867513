package observability

import (
	gu "github.com/xraph/go-utils/metrics"
)

// Metrics holds metric instruments for Courier, backed by any go-utils
// MetricFactory supplied by the host platform.
type Metrics struct {
	DispatchesTotal       gu.Counter
	DeliveriesTotal       gu.Counter
	DeliveryLatency       gu.Histogram
	RetriesScheduledTotal gu.Counter
	RetryQueueDepth       gu.Gauge
}

// NewMetrics creates Courier metric instruments using the supplied factory.
// Use metrics.NewMetricsCollector() for standalone usage.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		DispatchesTotal:       factory.Counter("courier_dispatches_total"),
		DeliveriesTotal:       factory.Counter("courier_deliveries_total"),
		DeliveryLatency:       factory.Histogram("courier_delivery_latency_seconds"),
		RetriesScheduledTotal: factory.Counter("courier_retries_scheduled_total"),
		RetryQueueDepth:       factory.Gauge("courier_retry_queue_depth"),
	}
}

// RecordDelivery records a delivery attempt with the given outcome and latency.
func (m *Metrics) RecordDelivery(outcome string, latencySeconds float64) {
	m.DeliveriesTotal.WithLabels(map[string]string{"outcome": outcome}).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}
