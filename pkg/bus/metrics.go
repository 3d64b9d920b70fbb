package bus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are optional transport instrumentation hooks, shared by the
// Kafka and in-process buses.
type Metrics struct {
	Messages *prometheus.CounterVec   // labels: target, task, status
	Duration *prometheus.HistogramVec // labels: operation
}

func (m Metrics) count(msg Message, status string) {
	if m.Messages != nil {
		m.Messages.WithLabelValues(string(msg.Target), string(msg.Task), status).Inc()
	}
}

func (m Metrics) observe(operation string, start time.Time) {
	if m.Duration != nil {
		m.Duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
