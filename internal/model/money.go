package model

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-retail-service/internal/apperror"
)

// MinorUnits is the number of decimal places prices are stored with.
const MinorUnits = 2

// MaxPrice is the largest accepted unit or cost price.
var MaxPrice = decimal.New(1, 12)

var (
	minMinor = decimal.NewFromInt(math.MinInt64)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// ToMinor converts an amount to integer minor units (kobo, cents). Amounts
// outside the int64 minor-unit range fail with ErrInvalidArgument.
func ToMinor(d decimal.Decimal) (int64, error) {
	m := d.Shift(MinorUnits).Round(0)
	if m.LessThan(minMinor) || m.GreaterThan(maxMinor) {
		return 0, apperror.InvalidArgument("amount %s is out of range", d.String())
	}
	return m.IntPart(), nil
}

func FromMinor(m int64) decimal.Decimal {
	return decimal.New(m, -MinorUnits)
}

// ValidPrice reports whether d is within [0, MaxPrice] and has no more
// precision than MinorUnits.
func ValidPrice(d decimal.Decimal) bool {
	return !d.IsNegative() && !d.GreaterThan(MaxPrice) && d.Equal(d.Round(MinorUnits))
}
