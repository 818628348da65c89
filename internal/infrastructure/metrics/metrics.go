package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Selection outcomes.
const (
	OutcomeSelected            = "selected"
	OutcomeNoneAvailable       = "none_available"
	OutcomeInvalidArgument     = "invalid_argument"
	OutcomeUpstreamUnavailable = "upstream_unavailable"
)

// Collector exposes executor selection metrics.
type Collector struct {
	selections       *prometheus.CounterVec
	probeFailures    prometheus.Counter
	claimConflicts   prometheus.Counter
	verifyFailures   prometheus.Counter
	selectionLatency prometheus.Histogram
	probeLatency     prometheus.Histogram

	gatherer prometheus.Gatherer
}

// NewCollector creates a collector registered on reg. A nil reg uses a private registry.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "choreographer_selections_total",
			Help: "Executor selections by outcome",
		}, []string{"outcome"}),
		probeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "choreographer_probe_failures_total",
			Help: "Capability probes that failed or timed out",
		}),
		claimConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "choreographer_claim_conflicts_total",
			Help: "Ranked candidates skipped because they were claimed concurrently",
		}),
		verifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "choreographer_dependency_verify_failures_total",
			Help: "Candidates skipped because their dependencies could not be satisfied",
		}),
		selectionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "choreographer_selection_latency_seconds",
			Help:    "End to end executor selection latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		probeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "choreographer_probe_latency_seconds",
			Help:    "Capability probe latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		gatherer: reg,
	}

	reg.MustRegister(c.selections)
	reg.MustRegister(c.probeFailures)
	reg.MustRegister(c.claimConflicts)
	reg.MustRegister(c.verifyFailures)
	reg.MustRegister(c.selectionLatency)
	reg.MustRegister(c.probeLatency)

	return c
}

// RecordSelection counts one finished selection.
func (c *Collector) RecordSelection(outcome string, elapsed time.Duration) {
	c.selections.WithLabelValues(outcome).Inc()
	c.selectionLatency.Observe(elapsed.Seconds())
}

// RecordProbe observes one probe; failed probes are also counted.
func (c *Collector) RecordProbe(elapsed time.Duration, err error) {
	c.probeLatency.Observe(elapsed.Seconds())
	if err != nil {
		c.probeFailures.Inc()
	}
}

func (c *Collector) RecordClaimConflict() {
	c.claimConflicts.Inc()
}

func (c *Collector) RecordVerifyFailure() {
	c.verifyFailures.Inc()
}

// Handler serves the collector's registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
