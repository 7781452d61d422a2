package solana

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// PublicKeyLength is the size of an account address in bytes.
const PublicKeyLength = 32

// ErrInvalidPublicKey is returned for strings that do not decode to a 32-byte address.
var ErrInvalidPublicKey = errors.New("invalid public key")

// PublicKey is a Solana account address.
type PublicKey [PublicKeyLength]byte

// SystemProgramID is the address of the System Program (all zero bytes).
var SystemProgramID = PublicKey{}

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	decoded, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %q: %v", ErrInvalidPublicKey, s, err)
	}
	if len(decoded) != PublicKeyLength {
		return pk, fmt.Errorf("%w: %q decodes to %d bytes", ErrInvalidPublicKey, s, len(decoded))
	}
	copy(pk[:], decoded)
	return pk, nil
}

// PublicKeyFromEd25519 converts an ed25519 public key to an address.
func PublicKeyFromEd25519(key ed25519.PublicKey) (PublicKey, error) {
	var pk PublicKey
	if len(key) != PublicKeyLength {
		return pk, fmt.Errorf("%w: ed25519 key has %d bytes", ErrInvalidPublicKey, len(key))
	}
	copy(pk[:], key)
	return pk, nil
}

// String returns the base58 encoding of the address.
func (pk PublicKey) String() string {
	return base58.Encode(pk[:])
}

// IsOnCurve reports whether the address is a valid ed25519 point.
// Program derived addresses are off the curve and have no private key.
func (pk PublicKey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(pk[:])
	return err == nil
}
