package types

import "github.com/shopspring/decimal"

// Money amounts are stored as integer minor units everywhere in the engine.
// MajorUnits is the display conversion used by read projections only.
func MajorUnits(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(decimal.NewFromInt(100))
}

// FormatMajorUnits renders cents as a fixed two-decimal string, e.g. 12345 -> "123.45".
func FormatMajorUnits(cents int64) string {
	return MajorUnits(cents).StringFixed(2)
}
