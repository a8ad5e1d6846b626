// Package did encodes and decodes did:key identifiers for Ed25519 keys.
//
// A did:key identifier is the public half of a signing identity written as
// a string, so anyone holding the identifier can verify signatures without
// a registry lookup:
//
//	did:key:z<base58btc(0xed 0x01 || 32-byte public key)>
package did

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by this package.
var (
	ErrInvalidKeyDID      = errors.New("invalid did:key format")
	ErrUnsupportedKeyType = errors.New("unsupported key type in did:key (only Ed25519 supported)")
)

const (
	// KeyPrefix starts every identifier produced by this package.
	KeyPrefix = "did:key:"

	// Ed25519MulticodecPrefix is the multicodec prefix for Ed25519 public keys (0xed01).
	Ed25519MulticodecPrefix = 0xed01
)

// NewKeyDID constructs a did:key identifier from an Ed25519 public key.
// It returns the empty string if the key is not 32 bytes long.
func NewKeyDID(publicKey ed25519.PublicKey) string {
	if len(publicKey) != ed25519.PublicKeySize {
		return ""
	}

	prefixed := make([]byte, 2+len(publicKey))
	prefixed[0] = Ed25519MulticodecPrefix >> 8
	prefixed[1] = Ed25519MulticodecPrefix & 0xff
	copy(prefixed[2:], publicKey)

	return KeyPrefix + "z" + base58Encode(prefixed)
}

// PublicKey extracts the Ed25519 public key from a did:key identifier.
func PublicKey(id string) (ed25519.PublicKey, error) {
	if !strings.HasPrefix(id, KeyPrefix) {
		return nil, fmt.Errorf("%w: must start with %q", ErrInvalidKeyDID, KeyPrefix)
	}

	multibase := strings.TrimPrefix(id, KeyPrefix)
	if multibase == "" {
		return nil, fmt.Errorf("%w: empty key identifier", ErrInvalidKeyDID)
	}
	if strings.Contains(multibase, ":") {
		return nil, fmt.Errorf("%w: unexpected path segments", ErrInvalidKeyDID)
	}
	// 'z' is the multibase tag for base58btc.
	if multibase[0] != 'z' {
		return nil, fmt.Errorf("%w: expected 'z' (base58btc) prefix, got '%c'", ErrInvalidKeyDID, multibase[0])
	}

	decoded, err := base58Decode(multibase[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyDID, err)
	}
	if len(decoded) < 2 {
		return nil, fmt.Errorf("%w: decoded value too short", ErrInvalidKeyDID)
	}
	if decoded[0] != Ed25519MulticodecPrefix>>8 || decoded[1] != Ed25519MulticodecPrefix&0xff {
		return nil, fmt.Errorf("%w: got multicodec 0x%02x%02x", ErrUnsupportedKeyType, decoded[0], decoded[1])
	}

	key := decoded[2:]
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: Ed25519 public key must be %d bytes, got %d", ErrInvalidKeyDID, ed25519.PublicKeySize, len(key))
	}
	return ed25519.PublicKey(key), nil
}

// IsKeyDID reports whether id decodes to an Ed25519 did:key.
func IsKeyDID(id string) bool {
	_, err := PublicKey(id)
	return err == nil
}
