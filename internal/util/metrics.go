package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carts_created_total",
		Help: "Total number of carts created",
	})

	CartsCreateRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carts_create_rejected_total",
		Help: "Total number of rejected cart creations",
	}, []string{"reason"})

	DuplicateCreateFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carts_duplicate_create_fallbacks_total",
		Help: "Total number of cart creations resolved to an existing active cart",
	})

	CartItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_items_total",
		Help: "Total number of cart line item mutations",
	}, []string{"op"})

	CartsClearedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carts_cleared_total",
		Help: "Total number of empty carts cleared",
	})

	SalesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_completed_total",
		Help: "Total number of sales recorded",
	})

	SalesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_failed_total",
		Help: "Total number of failed sale finalizations",
	}, []string{"reason"})

	// Secondary writes (table occupancy, cart status) are best-effort; a
	// failure leaves the primary record authoritative but drifted from the
	// table state. This counter makes that drift visible to operators.
	SecondaryWriteFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "secondary_write_failures_total",
		Help: "Total number of failed best-effort secondary writes",
	}, []string{"operation"})

	CatalogResolveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_resolve_latency_seconds",
		Help:    "Latency of catalog product resolution",
		Buckets: prometheus.DefBuckets,
	})

	CatalogCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_hits_total",
		Help: "Total number of catalog resolutions served from cache",
	})

	CatalogCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_cache_misses_total",
		Help: "Total number of catalog resolutions that hit the database",
	})

	DashboardCacheInvalidationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_cache_invalidations_total",
		Help: "Total number of dashboard cache invalidations",
	})

	SyncAttemptsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_sync_attempts_dropped_total",
		Help: "Total number of sync triggers dropped while a sync was in flight",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
