// Package metrics exports crawl activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
)

// Namespace prefixes every metric name.
const Namespace = "addrcrawl"

// Ensure Collector implements the interface.
var _ driven.CrawlMetrics = (*Collector)(nil)

// Collector holds the crawl metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	crawls          *prometheus.CounterVec
	crawlDuration   *prometheus.HistogramVec
	entities        *prometheus.CounterVec
	skipped         *prometheus.CounterVec
	rejected        *prometheus.CounterVec
	delegations     *prometheus.CounterVec
	delegationTimes *prometheus.HistogramVec
}

// NewCollector creates and registers the crawl metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		crawls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "crawls_total",
			Help:      "Total number of finished crawls",
		}, []string{"mode"}),
		crawlDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "crawl_duration_seconds",
			Help:      "Crawl duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		entities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "entities_total",
			Help:      "Total number of contacts and groups returned",
		}, []string{"kind"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "subtrees_skipped_total",
			Help:      "Total number of folder subtrees left out of a crawl",
		}, []string{"reason"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "entities_rejected_total",
			Help:      "Total number of contacts and groups dropped during normalisation",
		}, []string{"reason"}),
		delegations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "delegations_total",
			Help:      "Total number of cross-server delegations",
		}, []string{"server", "outcome"}),
		delegationTimes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "delegation_duration_seconds",
			Help:      "Cross-server delegation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"server"}),
	}

	c.registry.MustRegister(
		c.crawls,
		c.crawlDuration,
		c.entities,
		c.skipped,
		c.rejected,
		c.delegations,
		c.delegationTimes,
	)
	return c
}

// Registry returns the registry holding the crawl metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) CrawlCompleted(mode string, contacts, groups int, elapsed time.Duration) {
	c.crawls.WithLabelValues(mode).Inc()
	c.crawlDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	c.entities.WithLabelValues("contact").Add(float64(contacts))
	c.entities.WithLabelValues("group").Add(float64(groups))
}

func (c *Collector) SubtreeSkipped(reason string) {
	c.skipped.WithLabelValues(reason).Inc()
}

func (c *Collector) EntityRejected(reason string) {
	c.rejected.WithLabelValues(reason).Inc()
}

func (c *Collector) DelegationFinished(server, outcome string, elapsed time.Duration) {
	c.delegations.WithLabelValues(server, outcome).Inc()
	c.delegationTimes.WithLabelValues(server).Observe(elapsed.Seconds())
}
