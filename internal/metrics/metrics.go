// Package metrics exposes pipeline outcome counters and timings on a
// dedicated prometheus registry served by the HTTP API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the registry and the pipeline instruments.
type Collector struct {
	registry *prometheus.Registry

	pipelinesStarted      prometheus.Counter
	pipelinesCompleted    prometheus.Counter
	pipelinesUnidentified prometheus.Counter
	pipelinesFailed       *prometheus.CounterVec
	stepRetries           *prometheus.CounterVec
	pipelineDuration      prometheus.Histogram
}

// NewCollector creates and registers the pipeline instruments.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		pipelinesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "substream_pipelines_started_total",
			Help: "Pipeline instances started.",
		}),
		pipelinesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "substream_pipelines_completed_total",
			Help: "Pipeline instances that produced an identified catalog entry.",
		}),
		pipelinesUnidentified: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "substream_pipelines_unidentified_total",
			Help: "Pipeline instances that ended without an identification.",
		}),
		pipelinesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "substream_pipelines_failed_total",
			Help: "Pipeline instances that ended in a classified failure.",
		}, []string{"kind"}),
		stepRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "substream_step_retries_total",
			Help: "Retried pipeline steps by state.",
		}, []string{"state"}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "substream_pipeline_duration_seconds",
			Help:    "Wall-clock duration of terminal pipeline instances.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
		}),
	}
	registry.MustRegister(
		c.pipelinesStarted,
		c.pipelinesCompleted,
		c.pipelinesUnidentified,
		c.pipelinesFailed,
		c.stepRetries,
		c.pipelineDuration,
	)
	return c
}

func (c *Collector) PipelineStarted() {
	c.pipelinesStarted.Inc()
}

func (c *Collector) PipelineCompleted(identified bool, duration time.Duration) {
	if identified {
		c.pipelinesCompleted.Inc()
	} else {
		c.pipelinesUnidentified.Inc()
	}
	c.pipelineDuration.Observe(duration.Seconds())
}

func (c *Collector) PipelineFailed(kind string, duration time.Duration) {
	c.pipelinesFailed.WithLabelValues(kind).Inc()
	c.pipelineDuration.Observe(duration.Seconds())
}

func (c *Collector) StepRetried(state string) {
	c.stepRetries.WithLabelValues(state).Inc()
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
