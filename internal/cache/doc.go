// Package cache provides the bounded, time-to-live cache used to
// avoid repeated tenant, core-product, and primary-organization
// lookups within a short window.
//
// Three backends are available: an in-memory LRU with per-entry TTL,
// a Redis-backed cache, and a disabled cache that always misses.
// The cache is injected explicitly into its consumers so tests can
// substitute a deterministic or no-op implementation.
package cache
