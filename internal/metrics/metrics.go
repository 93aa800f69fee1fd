// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "crypto_portfolio"

// Collectors groups the service metrics. A nil *Collectors is valid and
// records nothing.
type Collectors struct {
	registry *prometheus.Registry

	snapshotRuns     prometheus.Counter
	snapshotFailures prometheus.Counter
	snapshotDuration prometheus.Histogram
	quoteFailures    prometheus.Counter
	holdingMutations *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
}

// New builds and registers the collectors on a fresh registry, together with
// the Go runtime and process collectors.
func New() *Collectors {
	reg := prometheus.NewRegistry()
	c := &Collectors{
		registry: reg,
		snapshotRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_runs_total",
			Help:      "Number of completed portfolio snapshot runs.",
		}),
		snapshotFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_failures_total",
			Help:      "Number of per-user snapshot failures.",
		}),
		snapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_run_duration_seconds",
			Help:      "Duration of a full snapshot run over every user.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		quoteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_failures_total",
			Help:      "Number of price quotes that failed during valuation and counted as zero.",
		}),
		holdingMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holding_mutations_total",
			Help:      "Number of holdings mutations by kind.",
		}, []string{"kind"}),
		upstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests sent to the market data provider by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.snapshotRuns,
		c.snapshotFailures,
		c.snapshotDuration,
		c.quoteFailures,
		c.holdingMutations,
		c.upstreamRequests,
	)
	return c
}

// Handler serves the registry in the prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SnapshotRun records a finished run and how many users failed in it.
func (c *Collectors) SnapshotRun(elapsed time.Duration, failures int) {
	if c == nil {
		return
	}
	c.snapshotRuns.Inc()
	c.snapshotFailures.Add(float64(failures))
	c.snapshotDuration.Observe(elapsed.Seconds())
}

// QuoteFailed records a price lookup that was counted as zero.
func (c *Collectors) QuoteFailed() {
	if c == nil {
		return
	}
	c.quoteFailures.Inc()
}

// HoldingMutated records an add, edit or delete of a holding.
func (c *Collectors) HoldingMutated(kind string) {
	if c == nil {
		return
	}
	c.holdingMutations.WithLabelValues(kind).Inc()
}

// UpstreamRequest records one call to the market data provider.
func (c *Collectors) UpstreamRequest(endpoint string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
}
