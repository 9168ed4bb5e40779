// Package money holds the minor-unit currency type shared by rate cards and
// quote outputs. Amounts are whole pence; conversion to pounds is left to the
// presentation layer.
package money

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Pence is an amount in minor currency units.
type Pence int64

// Decimal returns p as an exact decimal for fractional multiplication.
func (p Pence) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(p))
}

// Times multiplies p by a whole count.
func (p Pence) Times(n int) Pence {
	return p * Pence(n)
}

// String renders the amount in pence, e.g. "1250p".
func (p Pence) String() string {
	return fmt.Sprintf("%dp", int64(p))
}

// Pounds renders the amount for people, e.g. "£1,234.50".
func (p Pence) Pounds() string {
	sign, v := "", int64(p)
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s£%s.%02d", sign, humanize.Comma(v/100), v%100)
}

// RoundHalfUp converts a non-negative fractional pence amount to whole pence,
// rounding .5 upwards.
func RoundHalfUp(d decimal.Decimal) Pence {
	// decimal.Round rounds half away from zero, which is half-up for the
	// non-negative amounts used in costing.
	return Pence(d.Round(0).IntPart())
}

// MulRound returns round_half_up(p x factor).
func MulRound(p Pence, factor decimal.Decimal) Pence {
	return RoundHalfUp(p.Decimal().Mul(factor))
}

// Sum adds amounts.
func Sum(amounts ...Pence) Pence {
	var total Pence
	for _, a := range amounts {
		total += a
	}
	return total
}
