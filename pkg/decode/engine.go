package decode

import (
	"errors"
	"fmt"

	"github.com/robdobsn/raftgo/pkg/schema"
	"github.com/robdobsn/raftgo/pkg/state"
)

// Decode errors.
var (
	// ErrNoSchema indicates the device has no resolved type schema.
	ErrNoSchema = errors.New("no schema for device")

	// ErrNoPollBlock indicates the schema has no poll response descriptor.
	ErrNoPollBlock = errors.New("schema has no poll response block")

	// ErrInsufficientData indicates the buffer is too short for one sample.
	ErrInsufficientData = errors.New("insufficient data for sample")

	// ErrNoAdvance indicates the schema declares a non-positive sample
	// size; decoding it would never make progress.
	ErrNoAdvance = errors.New("sample size would not advance cursor")

	// ErrBadPosition indicates an attribute's byte position falls outside
	// the poll block.
	ErrBadPosition = errors.New("attribute position outside poll block")
)

// ReadRaw extracts an attribute's raw bits from a poll block. A single
// position reads the type code's width contiguously; a position list
// gathers one byte per position, assembled most-significant first.
func ReadRaw(block []byte, attr *schema.AttributeSchema, tc schema.TypeCode) (uint64, error) {
	if attr.Pos.IsGather() {
		var raw uint64
		for _, pos := range attr.Pos.Gather {
			if pos < 0 || pos >= len(block) {
				return 0, fmt.Errorf("%w: %s byte %d of %d", ErrBadPosition, attr.Name, pos, len(block))
			}
			raw = raw<<8 | uint64(block[pos])
		}
		return raw, nil
	}

	raw, ok := tc.ReadRaw(block, attr.Pos.Offset)
	if !ok {
		return 0, fmt.Errorf("%w: %s offset %d width %d of %d", ErrBadPosition, attr.Name, attr.Pos.Offset, tc.Width, len(block))
	}
	return raw, nil
}

// Transform applies the declarative transform chain to raw bits and
// returns the final numeric value. It is pure: no state is touched.
func Transform(raw uint64, tc schema.TypeCode, attr *schema.AttributeSchema) float64 {
	var v float64

	if tc.Float {
		// Float codes decode the IEEE bits directly; masks and shifts
		// only apply to integer codes.
		v = tc.FloatValue(raw)
	} else {
		preShift := raw
		if attr.ANDMask != 0 {
			preShift &= attr.ANDMask
		}
		if attr.XORMask != 0 {
			preShift ^= attr.XORMask
		}

		postShift := preShift
		switch {
		case attr.Shift > 0:
			postShift >>= uint(attr.Shift)
		case attr.Shift < 0:
			postShift <<= uint(-attr.Shift)
		}

		switch {
		case attr.SignSub != 0:
			signSource := postShift
			if attr.SignBitPreShift {
				signSource = preShift
			}
			v = float64(postShift)
			if signSource&(1<<uint(attr.SignBit)) != 0 {
				v -= attr.SignSub
			}
		case tc.Signed && attr.ANDMask == 0 && attr.Shift == 0:
			v = float64(tc.SignExtend(postShift))
		default:
			v = float64(postShift)
		}
	}

	if attr.Divisor != 0 {
		v /= attr.Divisor
	}
	v += attr.AddOffset

	return attr.Lookup.Apply(v)
}

// DecodeValue reads and transforms a single attribute from a poll block.
func DecodeValue(block []byte, attr *schema.AttributeSchema) (float64, error) {
	tc, err := attr.TypeCode()
	if err != nil {
		return 0, err
	}
	raw, err := ReadRaw(block, attr, tc)
	if err != nil {
		return 0, err
	}
	return Transform(raw, tc, attr), nil
}

// Group decodes one sample (every schema attribute) from buf at cursor and
// appends it to the device's histories and shared timeline. It returns the
// advanced cursor. On any failure the cursor is returned unchanged and no
// history is touched, so already-appended samples stay consistent.
func Group(dev *state.DeviceState, buf []byte, cursor int, timestampUs int64, maxDatapoints int) (int, error) {
	if dev.TypeInfo == nil {
		return cursor, ErrNoSchema
	}
	resp := dev.TypeInfo.Resp
	if resp == nil {
		return cursor, ErrNoPollBlock
	}

	advance := resp.SampleSize()
	if advance <= 0 {
		return cursor, ErrNoAdvance
	}
	if cursor < 0 || cursor+advance > len(buf) {
		return cursor, ErrInsufficientData
	}

	block := buf[cursor+resp.TimestampBytes : cursor+advance]

	// Decode every attribute before appending anything, so a malformed
	// schema cannot leave ragged histories behind.
	values := make([]float64, len(resp.Attrs))
	for i := range resp.Attrs {
		v, err := DecodeValue(block, &resp.Attrs[i])
		if err != nil {
			return cursor, err
		}
		values[i] = v
	}

	dev.AppendTimeline(timestampUs, maxDatapoints)
	for i := range resp.Attrs {
		attrState, _ := dev.Attribute(&resp.Attrs[i])
		dev.AppendValue(attrState, values[i], maxDatapoints)
	}

	return cursor + advance, nil
}

// GroupLoop decodes stacked samples from buf starting at cursor until the
// buffer is exhausted or a sample fails, returning the final cursor and the
// number of samples decoded. Failures stop the loop without error: partial
// poll data degrades to fewer samples, per the engine's error model.
func GroupLoop(dev *state.DeviceState, buf []byte, cursor int, timestampUs int64, maxDatapoints int) (int, int) {
	samples := 0
	for cursor < len(buf) {
		next, err := Group(dev, buf, cursor, timestampUs, maxDatapoints)
		if err != nil || next <= cursor {
			break
		}
		cursor = next
		samples++
	}
	return cursor, samples
}
