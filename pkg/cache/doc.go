// Package cache stores aggregated case lists keyed by request fingerprint.
//
// Two layers are provided:
//
//   - ExpiringCache: in-process LRU with a fixed TTL counted from insertion.
//     Stale entries are evicted lazily when read; inserting into a full cache
//     evicts the least recently used entry.
//   - RedisStore: optional shared layer with the same TTL, used when several
//     processes (CLI runs, the HTTP server) should reuse each other's fetches.
//
// The cache is purely an optimisation. Every read may be treated as a miss
// and answered by a fresh fetch.
//
// # Fingerprints
//
//	key := cache.Fingerprint("/case/personal/query", map[string]any{
//		"statusCode": "01",
//	})
//	// casedesk:case/personal/query:{"statusCode":"01"}
//
// # Basic Usage
//
//	mem := cache.NewExpiringCache[[]cases.Record](50, 5*time.Minute)
//	if records, ok := mem.Get(key); ok {
//		return records
//	}
//
// # Metrics
//
//   - casedesk_cache_hits_total{layer}
//   - casedesk_cache_misses_total{layer}
//   - casedesk_cache_evictions_total{reason="capacity|expired"}
//   - casedesk_cache_entries{layer}
//   - casedesk_cache_errors_total{operation}
package cache
