package schema

import "testing"

func TestFormatValue(t *testing.T) {
	tests := []struct {
		format string
		value  float64
		want   string
	}{
		{"%06.2f", 3.14159, "  3.14"}, // 'f' is always space-padded
		{"%04x", 255, "00ff"},
		{"%4x", 255, "  ff"},
		{"%b", 0, "no"},
		{"%b", 1, "yes"},
		{"%b", 2.7, "yes"},
		{"%d", 42.9, "42"},
		{"%05d", 42, "00042"},
		{"%5d", 42, "   42"},
		{"%.3f", 1.5, "1.500"},
		{"", 12.5, "12.5"},
		{"", 3, "3"},
	}

	for _, tt := range tests {
		if got := FormatValue(tt.format, tt.value); got != tt.want {
			t.Errorf("FormatValue(%q, %v) = %q, want %q", tt.format, tt.value, got, tt.want)
		}
	}
}

func TestFormatValueGarbage(t *testing.T) {
	// Unparseable formats fall back to plain text.
	if got := FormatValue("%zz", 7); got != "7" {
		t.Errorf("garbage format = %q, want %q", got, "7")
	}
}
