package types

import (
	"math"

	"github.com/shopspring/decimal"
)

// BPSDenominator is the number of basis points in one whole (100%).
const BPSDenominator = 10_000

// BPS is a ratio in basis points: 1 bps = 0.01%, 10000 bps = 1.0.
// Health factors, loan-to-value ratios, fee rates and slippage bounds are all
// expressed in BPS.
type BPS uint32

// BPSMax is the largest representable ratio. Health factors use it to mean
// "unbounded" (no debt outstanding).
const BPSMax BPS = math.MaxUint32

// Ratio returns b as a decimal fraction, e.g. BPS(12000) -> 1.2.
func (b BPS) Ratio() decimal.Decimal {
	return decimal.New(int64(b), -4)
}

// String renders b as a decimal ratio with four places, e.g. "1.2000".
func (b BPS) String() string {
	if b == BPSMax {
		return "inf"
	}
	return b.Ratio().StringFixed(4)
}

// Valid reports whether b is at most one whole.
func (b BPS) Valid() bool { return b <= BPSDenominator }
