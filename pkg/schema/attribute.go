package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// BytePos locates an attribute's raw bytes inside the poll block.
// Either a single offset (contiguous read of the type code's width) or an
// ordered list of byte positions for a non-contiguous gather, assembled
// most-significant byte first.
type BytePos struct {
	// Offset is the single byte offset. Valid when Gather is nil.
	Offset int

	// Gather is the ordered list of byte positions, or nil.
	Gather []int
}

// IsGather returns true when the position is a non-contiguous gather.
func (p BytePos) IsGather() bool { return p.Gather != nil }

// UnmarshalJSON accepts either a number or an array of numbers.
func (p *BytePos) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var positions []int
		if err := json.Unmarshal(data, &positions); err != nil {
			return fmt.Errorf("invalid byte position list: %w", err)
		}
		p.Gather = positions
		return nil
	}
	var offset int
	if err := json.Unmarshal(data, &offset); err != nil {
		return fmt.Errorf("invalid byte position: %w", err)
	}
	p.Offset = offset
	p.Gather = nil
	return nil
}

// MarshalJSON emits the compact wire form.
func (p BytePos) MarshalJSON() ([]byte, error) {
	if p.Gather != nil {
		return json.Marshal(p.Gather)
	}
	return json.Marshal(p.Offset)
}

// LUTRow is one range→value substitution rule.
type LUTRow struct {
	// Range is the range spec: a literal value, a comma-separated set,
	// a hyphenated numeric range, or empty for a catch-all default.
	Range string

	// Value is the substitute output.
	Value float64
}

// UnmarshalJSON accepts the wire form [rangeSpec, outValue]. The range spec
// may be a string or a bare number.
func (r *LUTRow) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("invalid lookup row: %w", err)
	}
	if len(parts) != 2 {
		return fmt.Errorf("invalid lookup row: want 2 elements, got %d", len(parts))
	}

	if err := json.Unmarshal(parts[0], &r.Range); err != nil {
		var num float64
		if err2 := json.Unmarshal(parts[0], &num); err2 != nil {
			return fmt.Errorf("invalid lookup range: %w", err)
		}
		r.Range = strconv.FormatFloat(num, 'g', -1, 64)
	}
	if err := json.Unmarshal(parts[1], &r.Value); err != nil {
		return fmt.Errorf("invalid lookup value: %w", err)
	}
	return nil
}

// Matches reports whether v falls within this row's range spec.
// An empty spec matches everything (catch-all).
func (r LUTRow) Matches(v float64) bool {
	spec := strings.TrimSpace(r.Range)
	if spec == "" {
		return true
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := splitRange(part); ok {
			if v >= lo && v <= hi {
				return true
			}
			continue
		}
		if lit, err := strconv.ParseFloat(part, 64); err == nil && lit == v {
			return true
		}
	}
	return false
}

// splitRange parses "lo-hi" range specs. The hyphen separator is searched
// after the first character so leading minus signs survive.
func splitRange(part string) (lo, hi float64, ok bool) {
	idx := strings.Index(part[1:], "-")
	if idx < 0 {
		return 0, 0, false
	}
	idx++

	loStr := strings.TrimSpace(part[:idx])
	hiStr := strings.TrimSpace(part[idx+1:])
	lo, err1 := strconv.ParseFloat(loStr, 64)
	hi, err2 := strconv.ParseFloat(hiStr, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

// LUT is an ordered list of substitution rules evaluated first-match-wins.
type LUT []LUTRow

// Apply returns the substitute for v from the first matching row, or v
// unchanged when no row (and no catch-all) matches.
func (l LUT) Apply(v float64) float64 {
	for _, row := range l {
		if row.Matches(v) {
			return row.Value
		}
	}
	return v
}

// AttributeSchema is the declarative extraction rule for one attribute.
// Field tags follow the firmware's terse JSON key names.
type AttributeSchema struct {
	// Name is the attribute name (history key).
	Name string `json:"n"`

	// Type is the struct-pack type code, e.g. "H" or "<h".
	Type string `json:"t"`

	// Pos locates the raw bytes within the poll block.
	Pos BytePos `json:"at"`

	// ANDMask is applied first, when non-zero.
	ANDMask uint64 `json:"m,omitempty"`

	// XORMask is applied after the AND-mask, when non-zero.
	XORMask uint64 `json:"x,omitempty"`

	// Shift is the arithmetic shift: positive = right, negative = left.
	Shift int `json:"s,omitempty"`

	// SignBit is the sign-bit index, when SignSub is configured.
	SignBit int `json:"sb,omitempty"`

	// SignBitPreShift tests the sign bit on the pre-shift value.
	SignBitPreShift bool `json:"sp,omitempty"`

	// SignSub is subtracted when the sign bit is set; zero disables
	// sign-bit handling.
	SignSub float64 `json:"ss,omitempty"`

	// Divisor divides the value (float semantics); zero means no division.
	Divisor float64 `json:"d,omitempty"`

	// AddOffset is added after division.
	AddOffset float64 `json:"a,omitempty"`

	// Units is the display unit, e.g. "mm" or "degC".
	Units string `json:"u,omitempty"`

	// Range is the valid [min, max] range, when declared.
	Range []float64 `json:"r,omitempty"`

	// Format is the printf-like display format string.
	Format string `json:"f,omitempty"`

	// Output is the output-type hint ("bool", "uint8", ...).
	Output string `json:"o,omitempty"`

	// VisibleSeries controls time-series display; nil means visible.
	VisibleSeries *bool `json:"vs,omitempty"`

	// VisibleForm controls form display; nil means visible.
	VisibleForm *bool `json:"vf,omitempty"`

	// Lookup is the ordered range→value substitution table.
	Lookup LUT `json:"lut,omitempty"`
}

// TypeCode parses the attribute's type code.
func (a *AttributeSchema) TypeCode() (TypeCode, error) {
	return ParseTypeCode(a.Type)
}
