package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"math/bits"

	"github.com/shopspring/decimal"
)

// ErrOverflow is returned when balance arithmetic would exceed the range of
// an Amount. Balances never wrap or clamp silently.
var ErrOverflow = errors.New("bnpl: arithmetic overflow")

// AmountDecimals is the number of fractional digits of the stable-value unit.
const AmountDecimals = 6

// Amount is a non-negative balance in the smallest stable-value unit
// (micro-USDC). All arithmetic is integer-only.
//
// Examples:
//   - Amount(1_000_000) = 1.000000
//   - Amount(250) = 0.000250
type Amount uint64

// Units builds an Amount from whole stable-value units.
func Units(whole uint64) Amount { return Amount(whole * 1_000_000) }

// Add returns a+other or ErrOverflow.
func (a Amount) Add(other Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(other), 0)
	if carry != 0 {
		return a, ErrOverflow
	}
	return Amount(sum), nil
}

// Sub returns a-other, or ErrOverflow when other exceeds a.
func (a Amount) Sub(other Amount) (Amount, error) {
	diff, borrow := bits.Sub64(uint64(a), uint64(other), 0)
	if borrow != 0 {
		return a, ErrOverflow
	}
	return Amount(diff), nil
}

// SubFloor returns a-other, or zero when other exceeds a.
func (a Amount) SubFloor(other Amount) Amount {
	if other >= a {
		return 0
	}
	return a - other
}

// MulBps returns a × b / 10000 rounded down. The product is computed in 128
// bits; ratios above one whole that would not fit yield the maximum Amount.
func (a Amount) MulBps(b BPS) Amount {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= BPSDenominator {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, BPSDenominator)
	return Amount(q)
}

// MulBpsCeil is MulBps rounded up.
func (a Amount) MulBpsCeil(b BPS) Amount {
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= BPSDenominator {
		return math.MaxUint64
	}
	q, r := bits.Div64(hi, lo, BPSDenominator)
	if r != 0 && q < math.MaxUint64 {
		q++
	}
	return Amount(q)
}

// MulDiv returns a × num / den rounded down, or ErrOverflow when the
// quotient does not fit. den must be non-zero.
func (a Amount) MulDiv(num, den uint64) (Amount, error) {
	if den == 0 {
		panic("amount: division by zero")
	}
	hi, lo := bits.Mul64(uint64(a), num)
	if hi >= den {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, den)
	return Amount(q), nil
}

// Min returns the smaller of a and other.
func (a Amount) Min(other Amount) Amount {
	if a < other {
		return a
	}
	return other
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// Decimal returns the amount in whole units as a decimal.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(a)), -AmountDecimals)
}

// AmountFromDecimal converts whole units to an Amount, truncating digits
// beyond the unit precision. Negative or oversized values are rejected.
func AmountFromDecimal(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return 0, fmt.Errorf("amount: negative value %s", d.String())
	}
	raw := d.Shift(AmountDecimals).Truncate(0).BigInt()
	if !raw.IsUint64() {
		return 0, ErrOverflow
	}
	return Amount(raw.Uint64()), nil
}

// String renders the amount with its full unit precision, e.g. "12.500000".
func (a Amount) String() string {
	return a.Decimal().StringFixed(AmountDecimals)
}

// MarshalJSON implements json.Marshaler.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Raw     uint64 `json:"raw"`
		Display string `json:"display"`
	}{
		Raw:     uint64(a),
		Display: a.String(),
	})
}

// UnmarshalJSON accepts either the object form produced by MarshalJSON or a
// bare integer of raw units.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var raw uint64
	if err := json.Unmarshal(data, &raw); err == nil {
		*a = Amount(raw)
		return nil
	}
	var obj struct {
		Raw uint64 `json:"raw"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(obj.Raw)
	return nil
}
