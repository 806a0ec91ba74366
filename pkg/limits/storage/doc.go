// Package storage provides the counter store backing rate limits and quotas.
//
// The store is a flat keyspace of integer counters with per-key TTLs. Rate
// limiting and quota enforcement build time-bucketed keys on top of it
// (credential + window kind + bucket label) so that counters self-expire
// when their window passes.
//
// # Backends
//
// Two backends are provided:
//
//   - MemoryStore: the default. Counters live in a map; expiry is checked
//     against a pluggable clock on every read, never with timers, so tests
//     can advance time deterministically.
//   - SQLiteStore: durable counters for deployments that must survive
//     restarts. Increments are atomic at the SQL level.
//
// # Semantics
//
// Incr is atomic: concurrent increments never lose updates. A key whose TTL
// has passed behaves exactly like a missing key; Incr on an expired key
// restarts the counter at 1.
//
// Store failures are infrastructure failures. Callers in the limit-checking
// path treat them as fail-open (the request is allowed) so that a broken
// backend cannot take down generation.
package storage
