// Package schema defines the declarative device-type schemas used by the
// telemetry decode pipeline.
//
// A DeviceTypeInfo describes one firmware device type: the size of its poll
// response block, an ordered list of attribute extraction rules, optional
// write actions and an optional custom-function descriptor. Schemas are
// fetched from firmware as JSON and are immutable once parsed.
//
// # Type Codes
//
// Attribute values are located in the poll block by struct-pack style type
// codes: an optional '<' (little-endian) or '>' (big-endian, the default)
// prefix followed by a single format character:
//
//	b/B  int8/uint8      h/H  int16/uint16
//	i/I  int32/uint32    l/L  int32/uint32
//	q/Q  int64/uint64    f/d  float32/float64
//
// The same codes drive both the read path (attribute decode) and the write
// path (action encoding), keeping the two byte layouts symmetric.
//
// # Transforms
//
// Each attribute may declare an AND-mask, XOR-mask, arithmetic shift, sign
// bit, divisor, additive offset and an ordered lookup table. The transforms
// are pure data; pkg/decode applies them.
package schema
