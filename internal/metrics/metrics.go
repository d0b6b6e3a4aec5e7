// Package metrics declares the Prometheus collectors for the deal pipeline.
//
//   - livedeals_requests_total{result}: orchestrator Get calls by outcome (cache, live, none)
//   - livedeals_source_attempts_total{source, outcome}: source walk steps (ok, empty, not_configured, unavailable)
//   - livedeals_batch_size: size of the last committed batch
//   - scraper_cycles_total: completed scraper cycles
//   - scraper_page_failures_total: target pages that could not be fetched
//   - scraper_cached_deals: deals in the scraper cache after the last cycle
//   - marketplace_detail_failures_total: per-business detail fetches that failed
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Requests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livedeals_requests_total",
			Help: "Total number of live deal lookups by result",
		},
		[]string{"result"},
	)

	SourceAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livedeals_source_attempts_total",
			Help: "Total number of source attempts during a cache refresh",
		},
		[]string{"source", "outcome"},
	)

	BatchSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livedeals_batch_size",
			Help: "Number of deals in the last committed live batch",
		},
	)

	ScraperCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_cycles_total",
			Help: "Total number of completed scraper cycles",
		},
	)

	ScraperPageFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_page_failures_total",
			Help: "Total number of scraper target pages that failed to load",
		},
	)

	ScraperCachedDeals = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_cached_deals",
			Help: "Number of deals in the scraper cache",
		},
	)

	MarketplaceDetailFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_detail_failures_total",
			Help: "Total number of marketplace detail fetches that failed",
		},
	)
)
