// Package cache provides the request cache for idempotent reads: a bounded
// in-memory store with per-entry TTL and strict least-recently-used eviction.
//
// Expiry is enforced lazily on read, so the cache is correct without any
// background work. An optional Sweeper can be started to bound the memory
// held by stale entries; it is explicitly stoppable so shutdown and test
// teardown leave no scheduled work behind.
package cache
