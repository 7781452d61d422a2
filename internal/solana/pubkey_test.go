package solana

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"testing"
)

func TestParsePublicKey(t *testing.T) {
	pk, err := ParsePublicKey("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	if pk.String() != "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin" {
		t.Errorf("round trip mismatch: %s", pk)
	}
}

func TestParsePublicKey_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not base58", "0OIl"},
		{"too short", "3yZe7d"},
		{"free-form name", "alice.sol"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePublicKey(tt.input)
			if !errors.Is(err, ErrInvalidPublicKey) {
				t.Errorf("expected ErrInvalidPublicKey, got %v", err)
			}
		})
	}
}

func TestSystemProgramID(t *testing.T) {
	if SystemProgramID.String() != "11111111111111111111111111111111" {
		t.Errorf("unexpected system program id: %s", SystemProgramID)
	}
}

func TestIsOnCurve(t *testing.T) {
	seed := sha256.Sum256([]byte("alice@example.com"))
	pub := ed25519.NewKeyFromSeed(seed[:]).Public().(ed25519.PublicKey)

	pk, err := PublicKeyFromEd25519(pub)
	if err != nil {
		t.Fatalf("PublicKeyFromEd25519: %v", err)
	}
	if !pk.IsOnCurve() {
		t.Error("ed25519 public key must be on curve")
	}

	// Roughly half of all 32-byte strings are not valid points
	found := false
	for i := 0; i < 64 && !found; i++ {
		h := sha256.Sum256([]byte{byte(i)})
		if !PublicKey(h).IsOnCurve() {
			found = true
		}
	}
	if !found {
		t.Error("expected at least one off-curve hash")
	}
}

func TestPublicKeyFromEd25519_WrongSize(t *testing.T) {
	if _, err := PublicKeyFromEd25519(make([]byte, 31)); !errors.Is(err, ErrInvalidPublicKey) {
		t.Errorf("expected ErrInvalidPublicKey, got %v", err)
	}
}
