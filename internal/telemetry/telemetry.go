// Package telemetry exposes Prometheus counters for the goal tree pipeline.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/arnold/mandala-api/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records pipeline runs and celebrations on a private registry.
type Collector struct {
	registry *prometheus.Registry

	pipelineRuns     *prometheus.CounterVec
	pipelineLatency  *prometheus.HistogramVec
	celebrations     *prometheus.CounterVec
	metricRejections prometheus.Counter
	socketClients    prometheus.Gauge
}

// NewCollector creates a collector under the given namespace.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "mandala"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Write pipeline runs by operation and result",
		},
		[]string{"op", "result"},
	)

	c.pipelineLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Time taken by one write pipeline run",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		},
		[]string{"op"},
	)

	c.celebrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "celebrations_total",
			Help:      "Celebrations emitted by tier",
		},
		[]string{"tier"},
	)

	c.metricRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metrics",
			Name:      "rejected_updates_total",
			Help:      "Actual metric updates rejected for invalid values",
		},
	)

	c.socketClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "clients",
			Help:      "Connected celebration websocket clients",
		},
	)

	c.registry.MustRegister(
		c.pipelineRuns,
		c.pipelineLatency,
		c.celebrations,
		c.metricRejections,
		c.socketClients,
	)

	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// PipelineRun records one engine write.
func (c *Collector) PipelineRun(op string, elapsed time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	c.pipelineRuns.WithLabelValues(op, result).Inc()
	c.pipelineLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Celebrate counts a celebration.
func (c *Collector) Celebrate(_ context.Context, event models.Celebration) error {
	c.celebrations.WithLabelValues(string(event.Tier)).Inc()
	return nil
}

func (c *Collector) RecordMetricRejection() {
	c.metricRejections.Inc()
}

func (c *Collector) SetSocketClients(n int) {
	c.socketClients.Set(float64(n))
}
