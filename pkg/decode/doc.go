// Package decode applies declarative attribute schemas to raw poll-data
// bytes, turning firmware telemetry blocks into typed numeric samples.
//
// The transform chain per attribute is pure data, applied in a fixed order:
// byte read (contiguous or scatter-gather), AND-mask, XOR-mask, arithmetic
// shift, sign-bit extraction, divisor, additive offset, lookup table. The
// same type codes drive the write path: EncodeAction packs outgoing values
// with the inverse numeric transform, guaranteeing byte-layout symmetry
// with the read path.
//
// Group decoding appends one sample per schema attribute to the device's
// histories and shared timeline, and advances the cursor by the schema's
// declared per-sample size. A cursor that would not advance is treated as
// fatal for the current group; the error never propagates past the record
// parser.
package decode
