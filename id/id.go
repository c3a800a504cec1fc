// Package id defines TypeID-based identity types for all bnpl records.
//
// Every record is addressed by a single ID struct whose prefix identifies the
// record kind. Unlike random identifiers, record IDs are derived: the same
// seed material (owner, asset, order, index) always yields the same ID, so
// related records can be located without a secondary index. IDs are URL-safe
// in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"

	"go.jetify.com/typeid/v2"
	"golang.org/x/crypto/blake2b"
)

// Prefix identifies the record kind encoded in a TypeID.
type Prefix string

// Prefix constants for all bnpl record kinds.
const (
	PrefixAccount     Prefix = "cred" // Revolving credit account
	PrefixRiskConfig  Prefix = "rcfg" // Issuer-wide risk configuration
	PrefixStatement   Prefix = "stmt" // Closed billing statement
	PrefixNote        Prefix = "note" // Installment note
	PrefixPosition    Prefix = "pos"  // Collateral position
	PrefixVaultConfig Prefix = "vcfg" // Vault price/slippage configuration
	PrefixPool        Prefix = "pool" // Advance/guarantee pool
)

// Seed tags mixed into every derivation so two record kinds never collide
// even when their remaining seeds are equal.
const (
	seedAccount     = "credit"
	seedRiskConfig  = "credit_config"
	seedStatement   = "statement"
	seedNote        = "note"
	seedPosition    = "pos"
	seedVaultConfig = "vault_cfg"
	seedPool        = "pool"
)

// ID is the primary identifier type for all bnpl records.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new random ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Derive computes the deterministic ID for prefix and seed material.
// Seeds are length-prefixed before hashing, so ("ab","c") and ("a","bc")
// derive different IDs.
func Derive(prefix Prefix, seeds ...[]byte) ID {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(fmt.Sprintf("id: blake2b: %v", err))
	}
	for _, s := range seeds {
		_, _ = h.Write(binary.BigEndian.AppendUint32(nil, uint32(len(s)))) //nolint:errcheck // hash writes never fail
		_, _ = h.Write(s)                                                  //nolint:errcheck // hash writes never fail
	}
	sum := h.Sum(nil)

	var raw [16]byte
	copy(raw[:], sum[:16])
	raw[6] = (raw[6] & 0x0f) | 0x80 // version 8: vendor-defined
	raw[8] = (raw[8] & 0x3f) | 0x80 // RFC 4122 variant

	tid, err := typeid.FromBytes(string(prefix), raw[:])
	if err != nil {
		panic(fmt.Sprintf("id: derive %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "note_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// AccountID identifies a credit account (prefix: "cred").
type AccountID = ID

// RiskConfigID identifies the risk configuration (prefix: "rcfg").
type RiskConfigID = ID

// StatementID identifies a closed statement (prefix: "stmt").
type StatementID = ID

// NoteID identifies an installment note (prefix: "note").
type NoteID = ID

// PositionID identifies a collateral position (prefix: "pos").
type PositionID = ID

// VaultConfigID identifies the vault configuration (prefix: "vcfg").
type VaultConfigID = ID

// PoolID identifies an advance pool (prefix: "pool").
type PoolID = ID

// ──────────────────────────────────────────────────
// Derivations
// ──────────────────────────────────────────────────

// AccountFor derives the credit account ID owned by owner.
func AccountFor(owner string) ID {
	return Derive(PrefixAccount, []byte(seedAccount), []byte(owner))
}

// RiskConfigFor derives the issuer-wide risk configuration ID.
func RiskConfigFor() ID {
	return Derive(PrefixRiskConfig, []byte(seedRiskConfig))
}

// StatementFor derives the statement ID for owner's billing cycle.
func StatementFor(owner string, cycleID [8]byte) ID {
	return Derive(PrefixStatement, []byte(seedStatement), []byte(owner), cycleID[:])
}

// NoteFor derives the note ID for installment index of an order.
func NoteFor(orderID [32]byte, index uint8) ID {
	return Derive(PrefixNote, []byte(seedNote), orderID[:], []byte{index})
}

// PositionFor derives the collateral position ID for (owner, asset).
func PositionFor(owner, asset string) ID {
	return Derive(PrefixPosition, []byte(seedPosition), []byte(owner), []byte(asset))
}

// VaultConfigFor derives the vault configuration ID.
func VaultConfigFor() ID {
	return Derive(PrefixVaultConfig, []byte(seedVaultConfig))
}

// PoolFor derives the pool ID administered by admin.
func PoolFor(admin string) ID {
	return Derive(PrefixPool, []byte(seedPool), []byte(admin))
}

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseAccountID parses a string and validates the "cred" prefix.
func ParseAccountID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAccount) }

// ParseRiskConfigID parses a string and validates the "rcfg" prefix.
func ParseRiskConfigID(s string) (ID, error) { return ParseWithPrefix(s, PrefixRiskConfig) }

// ParseStatementID parses a string and validates the "stmt" prefix.
func ParseStatementID(s string) (ID, error) { return ParseWithPrefix(s, PrefixStatement) }

// ParseNoteID parses a string and validates the "note" prefix.
func ParseNoteID(s string) (ID, error) { return ParseWithPrefix(s, PrefixNote) }

// ParsePositionID parses a string and validates the "pos" prefix.
func ParsePositionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPosition) }

// ParseVaultConfigID parses a string and validates the "vcfg" prefix.
func ParseVaultConfigID(s string) (ID, error) { return ParseWithPrefix(s, PrefixVaultConfig) }

// ParsePoolID parses a string and validates the "pool" prefix.
func ParsePoolID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPool) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
