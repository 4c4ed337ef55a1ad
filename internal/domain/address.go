// Package domain holds the core custody types shared across the vault,
// ledger, and storage layers.
package domain

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Address identifies an account on the ledger.
// Canonical form is a base58-encoded 32-byte ed25519 point.
type Address string

// ZeroAddress is the null identity. Never a valid owner or recipient.
const ZeroAddress Address = ""

// ParseAddress validates s and returns it as an Address.
func ParseAddress(s string) (Address, error) {
	if err := validateKey(s); err != nil {
		return ZeroAddress, fmt.Errorf("parse address: %w", err)
	}
	return Address(s), nil
}

// IsZero reports whether a is the null identity.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return string(a)
}

// TokenID identifies an externally-defined fungible token asset.
// Same canonical form as Address (the asset's mint address).
type TokenID string

// ZeroToken is the null token identifier. Never valid in the registry.
const ZeroToken TokenID = ""

// ParseTokenID validates s and returns it as a TokenID.
func ParseTokenID(s string) (TokenID, error) {
	if err := validateKey(s); err != nil {
		return ZeroToken, fmt.Errorf("parse token id: %w", err)
	}
	return TokenID(s), nil
}

// IsZero reports whether t is the null identifier.
func (t TokenID) IsZero() bool {
	return t == ZeroToken
}

func (t TokenID) String() string {
	return string(t)
}

// validateKey checks base58 encoding, 32-byte length, and that the bytes
// decode to a point on the ed25519 curve.
func validateKey(s string) error {
	if s == "" {
		return fmt.Errorf("empty identifier")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode base58: %w", err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("identifier must decode to 32 bytes, got %d", len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("identifier is not on the ed25519 curve")
	}
	return nil
}
