// Package format renders amounts for operator-facing output.
package format

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// USD renders v as dollars with thousands separators, e.g. $50,000.00.
func USD(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", decimal.NewFromFloat(v).Round(2).InexactFloat64())
}

// Percent renders v with two decimals and a percent sign.
func Percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

// Title upper-cases the first letter of an asset id and lower-cases the rest.
func Title(asset string) string {
	if asset == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(asset)
	return string(unicode.ToUpper(r)) + strings.ToLower(asset[size:])
}

var compactUnits = []struct {
	threshold float64
	suffix    string
}{
	{1e12, "T"},
	{1e9, "B"},
	{1e6, "M"},
	{1e3, "K"},
}

// CompactUSD renders large amounts with a unit suffix, e.g. $980.0B.
func CompactUSD(v float64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	for _, unit := range compactUnits {
		if abs >= unit.threshold {
			return "$" + decimal.NewFromFloat(v/unit.threshold).StringFixed(1) + unit.suffix
		}
	}
	return "$" + decimal.NewFromFloat(v).StringFixed(2)
}
