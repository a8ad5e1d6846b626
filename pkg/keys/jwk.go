package keys

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// JWK returns the key pair as a JSON Web Key with the did:key identifier
// as its key ID. Verification-only key pairs yield a public JWK.
func (k *KeyPair) JWK() jose.JSONWebKey {
	var key any = k.public
	if k.CanSign() {
		key = k.private
	}
	return jose.JSONWebKey{
		Key:       key,
		KeyID:     k.PublicKey(),
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}
}

// PublicJWK returns the public half of the key pair as a JSON Web Key.
func (k *KeyPair) PublicJWK() jose.JSONWebKey {
	jwk := k.JWK()
	jwk.Key = k.public
	return jwk
}

// FromJWK converts a JWK holding an Ed25519 key into a key pair. The JWK
// format has no room for the role, so the caller supplies it.
func FromJWK(role Role, jwk jose.JSONWebKey) (*KeyPair, error) {
	switch key := jwk.Key.(type) {
	case ed25519.PrivateKey:
		return FromPrivateKey(role, key)
	case ed25519.PublicKey:
		return &KeyPair{role: role, public: key}, nil
	default:
		return nil, fmt.Errorf("JWK %q does not hold an Ed25519 key (got %T)", jwk.KeyID, jwk.Key)
	}
}

// ParseJWK parses JSON-encoded JWK data into a key pair.
func ParseJWK(role Role, data []byte) (*KeyPair, error) {
	var jwk jose.JSONWebKey
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, fmt.Errorf("failed to parse JWK: %w", err)
	}
	return FromJWK(role, jwk)
}
