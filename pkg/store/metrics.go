package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreHits tracks reads that found a live value, by backend.
	StoreHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zato_cache_store_hits_total",
			Help: "Total number of cache store hits",
		},
		[]string{"backend"}, // "redis", "bolt"
	)

	// StoreMisses tracks reads of missing or expired keys, by backend.
	StoreMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zato_cache_store_misses_total",
			Help: "Total number of cache store misses",
		},
		[]string{"backend"},
	)

	// StoreErrors tracks backend failures.
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zato_cache_store_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"backend", "operation"}, // "get", "set", "delete"
	)
)
