// Package metrics collects Prometheus metrics for the catalog cache and the
// key-value store.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives catalog and storage events.
type Recorder interface {
	RecordCacheHit()
	RecordCacheMiss()
	RecordFetchFailure(reason string)
	RecordRejectedEntries(count int)
	RecordQuotaEviction()
}

// Collector records events into Prometheus metrics.
type Collector struct {
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	fetchFailures   *prometheus.CounterVec
	rejectedEntries prometheus.Counter
	quotaEvictions  prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toonshelf_catalog_cache_hits_total",
			Help: "Catalog loads served from the cached copy.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toonshelf_catalog_cache_misses_total",
			Help: "Catalog loads that had to fetch the resource.",
		}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toonshelf_catalog_fetch_failures_total",
			Help: "Failed catalog fetches by reason.",
		}, []string{"reason"}),
		rejectedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toonshelf_catalog_rejected_entries_total",
			Help: "Catalog records dropped by validation.",
		}),
		quotaEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toonshelf_store_quota_evictions_total",
			Help: "Times the catalog cache was purged to make room for a write.",
		}),
	}

	reg.MustRegister(
		c.cacheHits,
		c.cacheMisses,
		c.fetchFailures,
		c.rejectedEntries,
		c.quotaEvictions,
	)

	return c
}

func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFailures.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordRejectedEntries(count int) {
	if count > 0 {
		c.rejectedEntries.Add(float64(count))
	}
}

func (c *Collector) RecordQuotaEviction() {
	c.quotaEvictions.Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Nop discards all events.
type Nop struct{}

func (Nop) RecordCacheHit() {}
func (Nop) RecordCacheMiss() {}
func (Nop) RecordFetchFailure(string) {}
func (Nop) RecordRejectedEntries(int) {}
func (Nop) RecordQuotaEviction() {}
