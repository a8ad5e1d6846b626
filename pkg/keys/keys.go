// Package keys provides the Ed25519 signing identities used to issue and
// describe capability claims.
//
// A KeyPair's public identifier is its did:key string. The identifier is
// the verification key: Verify needs nothing else to check a signature.
//
// Roles (account, module, ...) are a labeling convention carried next to
// the key. They are not encoded in the identifier and nothing in this
// repository rejects a signature because of the signer's role.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/capiscio/wascap/pkg/did"
)

// Role labels what a signing identity is used for.
type Role string

const (
	// RoleAccount identities issue (sign) claims.
	RoleAccount Role = "account"

	// RoleModule identities are the subjects of claims.
	RoleModule Role = "module"

	// RoleServer identities belong to hosts.
	RoleServer Role = "server"

	// RoleOperator identities manage accounts.
	RoleOperator Role = "operator"
)

// Roles lists the known roles in display order.
var Roles = []Role{RoleAccount, RoleModule, RoleServer, RoleOperator}

// ParseRole converts a role name to a Role.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Errors returned by this package.
var (
	ErrUnknownRole  = errors.New("unknown key role")
	ErrNoPrivateKey = errors.New("key pair has no private key and cannot sign")
	ErrInvalidSeed  = errors.New("invalid Ed25519 seed")
)

// KeyPair is an Ed25519 signing identity. A KeyPair created with
// FromPublicKey can verify but not sign.
type KeyPair struct {
	role    Role
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// New generates a fresh key pair for role.
func New(role Role) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating Ed25519 key pair: %w", err)
	}
	return &KeyPair{role: role, public: pub, private: priv}, nil
}

// NewAccount generates an issuer identity.
func NewAccount() (*KeyPair, error) { return New(RoleAccount) }

// NewModule generates a module (subject) identity.
func NewModule() (*KeyPair, error) { return New(RoleModule) }

// FromSeed rebuilds a key pair from a 32-byte Ed25519 seed.
func FromSeed(role Role, seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSeed, len(seed), ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{role: role, public: priv.Public().(ed25519.PublicKey), private: priv}, nil
}

// FromPrivateKey wraps an existing Ed25519 private key.
func FromPrivateKey(role Role, priv ed25519.PrivateKey) (*KeyPair, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key has %d bytes, want %d", ErrInvalidSeed, len(priv), ed25519.PrivateKeySize)
	}
	return &KeyPair{role: role, public: priv.Public().(ed25519.PublicKey), private: priv}, nil
}

// FromPublicKey builds a verification-only key pair from a did:key
// identifier. Sign on the result fails with ErrNoPrivateKey.
func FromPublicKey(role Role, id string) (*KeyPair, error) {
	pub, err := did.PublicKey(id)
	if err != nil {
		return nil, err
	}
	return &KeyPair{role: role, public: pub}, nil
}

// Role returns the role label the key pair was created with.
func (k *KeyPair) Role() Role { return k.role }

// PublicKey returns the did:key public identifier.
func (k *KeyPair) PublicKey() string { return did.NewKeyDID(k.public) }

// CanSign reports whether the key pair holds a private key.
func (k *KeyPair) CanSign() bool { return len(k.private) == ed25519.PrivateKeySize }

// Seed returns the private seed, or nil for verification-only key pairs.
func (k *KeyPair) Seed() []byte {
	if !k.CanSign() {
		return nil
	}
	return k.private.Seed()
}

// Sign signs data with the private key.
func (k *KeyPair) Sign(data []byte) ([]byte, error) {
	if !k.CanSign() {
		return nil, ErrNoPrivateKey
	}
	return ed25519.Sign(k.private, data), nil
}

// Verify checks sig over data against this key pair's public key.
func (k *KeyPair) Verify(data, sig []byte) bool {
	return ed25519.Verify(k.public, data, sig)
}

// Verify checks sig over data using the key named by publicID. It fails
// only when publicID is not a usable did:key identifier; a bad signature
// is reported as false.
func Verify(publicID string, data, sig []byte) (bool, error) {
	pub, err := did.PublicKey(publicID)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, data, sig), nil
}
