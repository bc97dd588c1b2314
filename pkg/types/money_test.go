package types

import "testing"

func TestFormatMajorUnits(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{100, "1.00"},
		{12345, "123.45"},
		{-250, "-2.50"},
	}
	for _, tt := range tests {
		if got := FormatMajorUnits(tt.cents); got != tt.want {
			t.Fatalf("FormatMajorUnits(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}
