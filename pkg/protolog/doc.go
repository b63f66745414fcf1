// Package protolog captures telemetry protocol events for offline
// inspection.
//
// Events are recorded at three layers: the frame layer (raw classified
// frames), the record layer (per-device decode results), and the lifecycle
// layer (device added/removed, online-state changes). Events are CBOR
// encoded with integer keys for compactness; a FileLogger persists a
// session stream that tooling can replay.
//
// Capture logging is separate from diagnostic logging: diagnostics go to
// zerolog, capture events to a Logger. Pass NoopLogger (or nil checks at
// call sites) to disable capture entirely.
package protolog
