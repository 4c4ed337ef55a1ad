package domain

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
)

// newKey generates a valid base58-encoded ed25519 public key.
func newKey(t *testing.T) string {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return base58.Encode(pub)
}

func TestParseAddress_Valid(t *testing.T) {
	s := newKey(t)

	addr, err := ParseAddress(s)
	if err != nil {
		t.Fatalf("ParseAddress failed: %v", err)
	}
	if addr.String() != s {
		t.Errorf("Address mismatch: got %s, want %s", addr, s)
	}
	if addr.IsZero() {
		t.Error("valid address reported as zero")
	}
}

func TestParseAddress_Invalid(t *testing.T) {
	// y = 2 has no matching x coordinate, so the curve check rejects it.
	offCurve := make([]byte, 32)
	offCurve[0] = 2

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"bad base58", "0OIl+/"},
		{"too short", base58.Encode([]byte("short"))},
		{"too long", base58.Encode(make([]byte, 64))},
		{"off curve", base58.Encode(offCurve)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAddress(tt.input); err == nil {
				t.Errorf("ParseAddress(%q) succeeded, want error", tt.input)
			}
		})
	}
}

func TestParseTokenID_Valid(t *testing.T) {
	s := newKey(t)

	id, err := ParseTokenID(s)
	if err != nil {
		t.Fatalf("ParseTokenID failed: %v", err)
	}
	if id.String() != s {
		t.Errorf("TokenID mismatch: got %s, want %s", id, s)
	}
}

func TestParseTokenID_Invalid(t *testing.T) {
	if _, err := ParseTokenID(""); err == nil {
		t.Error("ParseTokenID(\"\") succeeded, want error")
	}
	if _, err := ParseTokenID("not-base58-!!"); err == nil {
		t.Error("ParseTokenID with invalid base58 succeeded, want error")
	}
}

func TestZeroValues(t *testing.T) {
	if !ZeroAddress.IsZero() {
		t.Error("ZeroAddress.IsZero() = false")
	}
	if !ZeroToken.IsZero() {
		t.Error("ZeroToken.IsZero() = false")
	}
}
