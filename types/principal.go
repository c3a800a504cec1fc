package types

import (
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Principal is the identity of a transaction signer or record holder: an end
// user, a merchant, a pool, or an administrative authority. Signature
// verification happens before a Principal reaches this package; here it is
// trusted as given.
type Principal string

// IsZero reports whether p is empty.
func (p Principal) IsZero() bool { return p == "" }

func (p Principal) String() string { return string(p) }

// OrderID identifies a purchase order. Installment notes are keyed by
// (OrderID, index).
type OrderID [32]byte

// NewOrderID derives an OrderID from an external order reference.
func NewOrderID(ref string) OrderID {
	return OrderID(blake2b.Sum256([]byte(ref)))
}

// ParseOrderID decodes the 64-character hex form produced by String.
func ParseOrderID(s string) (OrderID, error) {
	var o OrderID
	raw, err := hex.DecodeString(s)
	if err != nil {
		return o, fmt.Errorf("order id: %w", err)
	}
	if len(raw) != len(o) {
		return o, fmt.Errorf("order id: expected %d bytes, got %d", len(o), len(raw))
	}
	copy(o[:], raw)
	return o, nil
}

func (o OrderID) String() string { return hex.EncodeToString(o[:]) }

// IsZero reports whether o is all zero bytes.
func (o OrderID) IsZero() bool { return o == OrderID{} }

// MarshalText implements encoding.TextMarshaler.
func (o OrderID) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *OrderID) UnmarshalText(data []byte) error {
	parsed, err := ParseOrderID(string(data))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// CycleID identifies a billing cycle. The canonical form is the close date
// as YYYYMMDD, which fits the eight bytes exactly.
type CycleID [8]byte

// CycleIDFor returns the cycle identifier for a statement closed on t.
func CycleIDFor(t time.Time) CycleID {
	var c CycleID
	copy(c[:], t.UTC().Format("20060102"))
	return c
}

// ParseCycleID accepts the eight-character label form or 16 hex characters.
func ParseCycleID(s string) (CycleID, error) {
	var c CycleID
	switch len(s) {
	case len(c):
		copy(c[:], s)
		return c, nil
	case 2 * len(c):
		raw, err := hex.DecodeString(s)
		if err != nil {
			return c, fmt.Errorf("cycle id: %w", err)
		}
		copy(c[:], raw)
		return c, nil
	default:
		return c, fmt.Errorf("cycle id: invalid length %d", len(s))
	}
}

func (c CycleID) String() string {
	for _, b := range c {
		if b < 0x21 || b > 0x7e {
			return hex.EncodeToString(c[:])
		}
	}
	return string(c[:])
}

// MarshalText implements encoding.TextMarshaler.
func (c CycleID) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CycleID) UnmarshalText(data []byte) error {
	parsed, err := ParseCycleID(string(data))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
