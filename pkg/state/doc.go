// Package state owns the per-device telemetry state: attribute value
// histories sharing one timeline, online/offline lifecycle, and per-device
// sliding-window sample-rate statistics.
//
// # History Trimming
//
// Each device keeps a single monotonically-growing timeline of microsecond
// timestamps. Attribute histories grow in lock-step with it, so index i in
// any attribute's history and in the timeline refers to the same sample
// instant. When the history cap is exceeded the oldest entries are evicted
// from the timeline and from every attribute together.
//
// # Concurrency
//
// The Store and Stats trackers are mutex-guarded so the query surface can
// be used from any goroutine, but mutation is expected only from the single
// frame-processing path.
package state
