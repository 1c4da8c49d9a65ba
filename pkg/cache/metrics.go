package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache layers.
const (
	LayerMemory = "memory"
	LayerRedis  = "redis"
)

// Eviction reasons.
const (
	ReasonCapacity = "capacity"
	ReasonExpired  = "expired"
)

var (
	// CacheHits tracks cache hits by layer
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casedesk_cache_hits_total",
			Help: "Total number of result-set cache hits",
		},
		[]string{"layer"},
	)

	// CacheMisses tracks cache misses by layer
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casedesk_cache_misses_total",
			Help: "Total number of result-set cache misses",
		},
		[]string{"layer"},
	)

	// CacheEvictions tracks removals by reason
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casedesk_cache_evictions_total",
			Help: "Total number of cache evictions by reason",
		},
		[]string{"reason"},
	)

	// CacheEntries tracks the current entry count by layer
	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "casedesk_cache_entries",
			Help: "Current number of cached result sets",
		},
		[]string{"layer"},
	)

	// CacheErrors tracks cache backend errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casedesk_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "clear"
	)
)
