package schema

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Type code errors.
var (
	// ErrTypeCodeEmpty indicates an empty type code string.
	ErrTypeCodeEmpty = errors.New("type code is empty")

	// ErrTypeCodeUnknown indicates an unrecognized format character.
	ErrTypeCodeUnknown = errors.New("unknown type code")
)

// TypeCode describes the byte layout of one attribute value: width,
// signedness, endianness and whether the value is IEEE-754 float.
type TypeCode struct {
	// Code is the format character ('b', 'H', 'f', ...).
	Code byte

	// Width is the value width in bytes.
	Width int

	// Signed is true for lowercase integer codes.
	Signed bool

	// Float is true for 'f' and 'd'.
	Float bool

	// LittleEndian is true when the code carried a '<' prefix.
	LittleEndian bool
}

// typeCodeTable maps format characters to (width, signed, float).
var typeCodeTable = map[byte]struct {
	width  int
	signed bool
	float  bool
}{
	'b': {1, true, false}, 'B': {1, false, false},
	'h': {2, true, false}, 'H': {2, false, false},
	'i': {4, true, false}, 'I': {4, false, false},
	'l': {4, true, false}, 'L': {4, false, false},
	'q': {8, true, false}, 'Q': {8, false, false},
	'f': {4, false, true}, 'd': {8, false, true},
}

// ParseTypeCode parses a struct-pack style type code such as "H", "<h"
// or ">f". Big-endian is the default byte order.
func ParseTypeCode(s string) (TypeCode, error) {
	if s == "" {
		return TypeCode{}, ErrTypeCodeEmpty
	}

	tc := TypeCode{}
	switch s[0] {
	case '<':
		tc.LittleEndian = true
		s = s[1:]
	case '>':
		s = s[1:]
	}
	if len(s) != 1 {
		return TypeCode{}, fmt.Errorf("%w: %q", ErrTypeCodeUnknown, s)
	}

	entry, ok := typeCodeTable[s[0]]
	if !ok {
		return TypeCode{}, fmt.Errorf("%w: %q", ErrTypeCodeUnknown, s)
	}
	tc.Code = s[0]
	tc.Width = entry.width
	tc.Signed = entry.signed
	tc.Float = entry.float
	return tc, nil
}

// byteOrder returns the binary.ByteOrder for this type code.
func (tc TypeCode) byteOrder() binary.ByteOrder {
	if tc.LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// ReadRaw reads the type code's width in bytes from buf at offset and
// returns the raw (untransformed) bits, widened to uint64.
// Returns false if buf is too short.
func (tc TypeCode) ReadRaw(buf []byte, offset int) (uint64, bool) {
	if offset < 0 || offset+tc.Width > len(buf) {
		return 0, false
	}
	b := buf[offset : offset+tc.Width]

	var raw uint64
	if tc.LittleEndian {
		for i := tc.Width - 1; i >= 0; i-- {
			raw = raw<<8 | uint64(b[i])
		}
	} else {
		for i := 0; i < tc.Width; i++ {
			raw = raw<<8 | uint64(b[i])
		}
	}
	return raw, true
}

// SignExtend interprets raw as a two's-complement value of the code's
// width and returns it sign-extended to int64.
func (tc TypeCode) SignExtend(raw uint64) int64 {
	shift := uint(64 - tc.Width*8)
	return int64(raw<<shift) >> shift
}

// FloatValue interprets raw as IEEE-754 bits of the code's width.
func (tc TypeCode) FloatValue(raw uint64) float64 {
	if tc.Width == 4 {
		return float64(math.Float32frombits(uint32(raw)))
	}
	return math.Float64frombits(raw)
}

// Pack encodes a numeric value into wire bytes per the type code's width,
// endianness and signedness. This is the struct-pack primitive shared by
// attribute decoding and action encoding.
func (tc TypeCode) Pack(value float64) []byte {
	out := make([]byte, tc.Width)
	order := tc.byteOrder()

	switch {
	case tc.Float && tc.Width == 4:
		order.PutUint32(out, math.Float32bits(float32(value)))
	case tc.Float:
		order.PutUint64(out, math.Float64bits(value))
	default:
		var raw uint64
		if tc.Signed {
			raw = uint64(int64(value))
		} else {
			raw = uint64(value)
		}
		switch tc.Width {
		case 1:
			out[0] = byte(raw)
		case 2:
			order.PutUint16(out, uint16(raw))
		case 4:
			order.PutUint32(out, uint32(raw))
		case 8:
			order.PutUint64(out, raw)
		}
	}
	return out
}
