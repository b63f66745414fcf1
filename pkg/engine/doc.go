// Package engine is the device telemetry protocol engine.
//
// The engine consumes raw frames from an abstract transport, classifies
// them, parses binary (devbin) or JSON telemetry records, resolves
// device-type schemas through the single-flight type cache, and maintains
// per-device attribute histories with sliding-window sample statistics.
// Applications observe changes through registered callbacks: new device,
// new attribute, new data, decoded data, and device removed.
//
// # Frame Processing
//
// HandleFrame processes one frame synchronously and atomically: records
// are handled in strict sequence, then the liveness sweep runs, then
// callbacks fire. HandleFrame is not reentrant; the transport must deliver
// one frame at a time. The query surface and callback registration are
// safe from any goroutine.
//
// # Error Model
//
// No inbound data is fatal. Malformed frames abandon their remaining bytes
// with a warning; records without a resolved schema are consumed but skip
// attribute processing; decode failures stop the current group only.
package engine
