package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatValue renders an attribute value for display using the schema's
// printf-like format string "%[0][width][.precision]conv".
//
// Conversions:
//
//	f  fixed-point with the given precision, space-padded to width
//	x  lowercase hex of the floored value
//	d  decimal of the floored value
//	b  "yes" when the floored value is non-zero, else "no"
//
// For 'x' and 'd' a leading '0' flag selects zero padding; 'f' is always
// space-padded. An empty format yields the plain decimal text of the value.
func FormatValue(format string, v float64) string {
	spec, ok := parseFormat(format)
	if !ok {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}

	switch spec.conv {
	case 'f':
		text := strconv.FormatFloat(v, 'f', spec.precision, 64)
		return pad(text, spec.width, ' ')
	case 'x':
		text := strconv.FormatInt(int64(math.Floor(v)), 16)
		return pad(text, spec.width, spec.padChar())
	case 'd':
		text := strconv.FormatInt(int64(math.Floor(v)), 10)
		return pad(text, spec.width, spec.padChar())
	case 'b':
		if int64(math.Floor(v)) != 0 {
			return "yes"
		}
		return "no"
	default:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}

// formatSpec is a parsed "%[0][width][.precision]conv" format.
type formatSpec struct {
	zeroPad   bool
	width     int
	precision int
	conv      byte
}

func (s formatSpec) padChar() byte {
	if s.zeroPad {
		return '0'
	}
	return ' '
}

// parseFormat parses a format string. Returns ok=false for empty or
// unparseable formats, in which case the caller falls back to plain text.
func parseFormat(format string) (formatSpec, bool) {
	s := strings.TrimPrefix(strings.TrimSpace(format), "%")
	if s == "" {
		return formatSpec{}, false
	}

	spec := formatSpec{precision: -1}
	if s[0] == '0' {
		spec.zeroPad = true
		s = s[1:]
	}

	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		spec.width = spec.width*10 + int(s[i]-'0')
		i++
	}
	if i < len(s) && s[i] == '.' {
		i++
		spec.precision = 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			spec.precision = spec.precision*10 + int(s[i]-'0')
			i++
		}
	}
	if i != len(s)-1 {
		return formatSpec{}, false
	}
	spec.conv = s[i]
	return spec, true
}

// pad left-pads text to width with the given character.
func pad(text string, width int, ch byte) string {
	if len(text) >= width {
		return text
	}
	return strings.Repeat(string(ch), width-len(text)) + text
}

// DisplayString is a convenience wrapper used by consumers that hold a
// full attribute schema.
func (a *AttributeSchema) DisplayString(v float64) string {
	return FormatValue(a.Format, v)
}

// String implements fmt.Stringer for diagnostics.
func (a *AttributeSchema) String() string {
	return fmt.Sprintf("%s(%s)", a.Name, a.Type)
}
