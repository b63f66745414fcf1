// Package typecache fetches and caches device-type schemas from firmware.
//
// Schemas are immutable once fetched, so a successful fetch caches forever.
// For each unresolved type key at most one fetch is in flight at a time:
// concurrent callers coalesce onto the shared fetch and all observe the
// identical result. Failed fetches are rate-limited per key; until the
// minimum retry interval elapses the cache answers "unavailable" without
// touching the network.
//
// The frame-processing path uses the non-blocking Lookup, which returns the
// cached schema or kicks off a background fetch. API users call Resolve,
// which blocks until the shared fetch settles.
package typecache
